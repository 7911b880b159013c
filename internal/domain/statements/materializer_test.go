package statements

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSplitter struct {
	calls map[string][]int
}

func newFakeSplitter() *fakeSplitter {
	return &fakeSplitter{calls: make(map[string][]int)}
}

func (f *fakeSplitter) Split(_ context.Context, _ string, pages []int, outPath string) error {
	f.calls[filepath.Base(outPath)] = pages
	return os.WriteFile(outPath, []byte("%PDF-1.7 stub"), 0o600)
}

func newTestMaterializer(t *testing.T, splitter Splitter) (*Materializer, string) {
	t.Helper()
	dir := t.TempDir()
	m := NewMaterializer(splitter, dir, testLogger())
	m.now = func() time.Time {
		return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	}
	return m, dir
}

func TestMaterializeWritesDestinationPDFs(t *testing.T) {
	splitter := newFakeSplitter()
	m, dir := newTestMaterializer(t, splitter)

	units := []*StatementUnit{
		{CompanyName: "Acme Corp", Destination: DestDNM, MatchKind: MatchExact, PageRange: []int{1}},
		{CompanyName: "Maple Industries", Destination: DestForeign, MatchKind: MatchNone, PageRange: []int{2}},
		{CompanyName: "Zenith Holdings", Destination: DestNatioSingle, MatchKind: MatchNone, PageRange: []int{3}},
		{CompanyName: "Omni Group", Destination: DestNatioMulti, MatchKind: MatchNone, PageRange: []int{4, 5}},
		{CompanyName: "Acme Corp", Destination: DestDNM, MatchKind: MatchExact, PageRange: []int{6}},
	}
	refs := []ReferenceEntry{{Name: "Acme Corp"}}

	res, err := m.Materialize(context.Background(), "session_20260314_092653_deadbeef", "in.pdf", refs, units)
	require.NoError(t, err)

	require.Len(t, res.PDFFiles, 4)
	assert.Equal(t, []int{1, 6}, splitter.calls["session_20260314_092653_deadbeef_DNM.pdf"])
	assert.Equal(t, []int{2}, splitter.calls["session_20260314_092653_deadbeef_Foreign.pdf"])
	assert.Equal(t, []int{3}, splitter.calls["session_20260314_092653_deadbeef_natioSingle.pdf"])
	assert.Equal(t, []int{4, 5}, splitter.calls["session_20260314_092653_deadbeef_natioMulti.pdf"])

	for _, rf := range res.PDFFiles {
		assert.FileExists(t, rf.File)
		assert.Equal(t, dir, filepath.Dir(rf.File))
	}
}

func TestMaterializeAuditRecord(t *testing.T) {
	m, _ := newTestMaterializer(t, newFakeSplitter())

	units := []*StatementUnit{
		{CompanyName: "Acme Corp", Destination: DestDNM, MatchKind: MatchExact, PageRange: []int{1}},
	}
	refs := []ReferenceEntry{{Name: "Acme Corp"}, {Name: "Zenith Holdings"}}

	res, err := m.Materialize(context.Background(), "session_20260314_092653_deadbeef", "in.pdf", refs, units)
	require.NoError(t, err)

	assert.Equal(t, "session_20260314_092653_deadbeef_mar142026.json", filepath.Base(res.AuditFile))

	data, err := os.ReadFile(res.AuditFile)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.ElementsMatch(t, []any{"Acme Corp", "Zenith Holdings"}, record["dnm_companies"])
	assert.EqualValues(t, 1, record["total_statements_found"])
	assert.Equal(t, "2026-03-14T09:26:53Z", record["processing_timestamp"])

	extracted, ok := record["extracted_statements"].([]any)
	require.True(t, ok)
	require.Len(t, extracted, 1)
	first, ok := extracted[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Acme Corp", first["company_name"])
	assert.Equal(t, "exact_match", first["match_kind"])
	assert.NotContains(t, first, "FallbackDestination")
}

func TestMaterializeAuditNameCollision(t *testing.T) {
	m, _ := newTestMaterializer(t, newFakeSplitter())

	units := []*StatementUnit{
		{CompanyName: "Acme Corp", Destination: DestDNM, MatchKind: MatchExact, PageRange: []int{1}},
	}

	first, err := m.Materialize(context.Background(), "session_20260314_092653_deadbeef", "in.pdf", nil, units)
	require.NoError(t, err)
	second, err := m.Materialize(context.Background(), "session_20260314_092653_deadbeef", "in.pdf", nil, units)
	require.NoError(t, err)
	third, err := m.Materialize(context.Background(), "session_20260314_092653_deadbeef", "in.pdf", nil, units)
	require.NoError(t, err)

	assert.Equal(t, "session_20260314_092653_deadbeef_mar142026.json", filepath.Base(first.AuditFile))
	assert.Equal(t, "session_20260314_092653_deadbeef_mar142026-1.json", filepath.Base(second.AuditFile))
	assert.Equal(t, "session_20260314_092653_deadbeef_mar142026-2.json", filepath.Base(third.AuditFile))
}

func TestMaterializeRejectsUnsetDestination(t *testing.T) {
	m, _ := newTestMaterializer(t, newFakeSplitter())

	units := []*StatementUnit{
		{CompanyName: "Acme Corp", Destination: DestDNM, PageRange: []int{1}},
		{CompanyName: "Lost Corp", Destination: DestUnset, PageRange: []int{2}},
	}

	_, err := m.Materialize(context.Background(), "session_20260314_092653_deadbeef", "in.pdf", nil, units)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Lost Corp")
}

func TestComputeStatistics(t *testing.T) {
	units := []*StatementUnit{
		{Destination: DestDNM, MatchKind: MatchExact},
		{Destination: DestDNM, MatchKind: MatchEmail},
		{Destination: DestDNM, MatchKind: MatchFuzzy, MatchPercent: 95},
		// Operator said yes; counted as a question, not an auto match.
		{Destination: DestDNM, MatchKind: MatchFuzzy, MatchPercent: 75, UserAnswered: AnswerYes, AskQuestion: true, ManualRequired: true},
		{Destination: DestNatioSingle, MatchKind: MatchNone},
		{Destination: DestNatioMulti, MatchKind: MatchNone},
		{Destination: DestForeign, MatchKind: MatchNone},
	}

	stats := ComputeStatistics(units)

	assert.Equal(t, 7, stats.TotalStatements)
	assert.Equal(t, 4, stats.Destinations[DestDNM])
	assert.Equal(t, 1, stats.Destinations[DestNatioSingle])
	assert.Equal(t, 1, stats.Destinations[DestNatioMulti])
	assert.Equal(t, 1, stats.Destinations[DestForeign])

	assert.Equal(t, 1, stats.DNMBreakdown.Exact)
	assert.Equal(t, 1, stats.DNMBreakdown.EmailSignal)
	assert.Equal(t, 1, stats.DNMBreakdown.HighConfidence)

	assert.Equal(t, 1, stats.Manual.ManualReviewRequired)
	assert.Equal(t, 1, stats.Manual.InteractiveQuestions)
}
