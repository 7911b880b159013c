package statements

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClassifier(refs []ReferenceEntry) *Classifier {
	return NewClassifier(refs, DefaultThresholds, testLogger())
}

func TestClassifierExactMatch(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{CompanyName: "ACME CORP", PageRange: []int{1}}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchExact, unit.MatchKind)
	assert.Equal(t, DestDNM, unit.Destination)
	assert.False(t, unit.AskQuestion)
	assert.False(t, unit.ManualRequired)
}

func TestClassifierAliasExactMatch(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{
		{Name: "International Business Machines", Alias: "IBM"},
	})
	unit := &StatementUnit{CompanyName: "IBM", PageRange: []int{1}}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchExact, unit.MatchKind)
	assert.Equal(t, DestDNM, unit.Destination)
}

func TestClassifierEmailSignal(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{
		CompanyName: "Zeta Holdings",
		RestOfLines: "Contact: billing@zetaholdings.com\n123 Main St",
		PageRange:   []int{1},
	}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchEmail, unit.MatchKind)
	assert.Equal(t, DestDNM, unit.Destination)
	assert.False(t, unit.AskQuestion)
}

func TestClassifierFuzzyAutoMatch(t *testing.T) {
	// "ACME CORP INC" contains "ACME CORP": 75 + 25*9/13 = 92, above the
	// auto threshold.
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{CompanyName: "Acme Corp Inc", PageRange: []int{1}}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchFuzzy, unit.MatchKind)
	assert.Equal(t, DestDNM, unit.Destination)
	assert.Equal(t, 92, unit.MatchPercent)
	assert.Equal(t, "Acme Corp", unit.SimilarTo)
	assert.False(t, unit.AskQuestion)
}

func TestClassifierFuzzyMidBandAsks(t *testing.T) {
	// "ACME CORPORATION" contains "ACME CORP": 75 + 25*9/16 = 89, inside
	// the ask band.
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{CompanyName: "Acme Corporation", PageRange: []int{1}}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchFuzzy, unit.MatchKind)
	assert.Equal(t, DestUnset, unit.Destination)
	assert.Equal(t, 89, unit.MatchPercent)
	assert.Equal(t, "Acme Corp", unit.SimilarTo)
	assert.True(t, unit.AskQuestion)
	assert.True(t, unit.ManualRequired)
	assert.Equal(t, DestNatioSingle, unit.FallbackDestination)
}

func TestClassifierNoMatchSinglePage(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{
		CompanyName: "Zenith Holdings",
		RestOfLines: "456 Oak Ave\nSpringfield IL 62704",
		PageRange:   []int{3},
	}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchNone, unit.MatchKind)
	assert.Equal(t, DestNatioSingle, unit.Destination)
	assert.False(t, unit.AskQuestion)
}

func TestClassifierNoMatchMultiPage(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{
		CompanyName: "Zenith Holdings",
		RestOfLines: "456 Oak Ave\nSpringfield IL 62704",
		PageRange:   []int{3, 4, 5},
	}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, DestNatioMulti, unit.Destination)
}

func TestClassifierForeignSignal(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"country keyword", "100 Queen St\nToronto CANADA"},
		{"canadian postal code", "100 Queen St\nToronto ON M5V 2T6"},
		{"airmail marker", "PO Box 9\nAIRMAIL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
			unit := &StatementUnit{
				CompanyName: "Maple Industries",
				RestOfLines: tt.body,
				PageRange:   []int{1},
			}

			c.Classify([]*StatementUnit{unit})

			assert.Equal(t, DestForeign, unit.Destination)
			assert.Equal(t, MatchNone, unit.MatchKind)
		})
	}
}

func TestClassifierExactMatchBeatsForeignSignal(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{{Name: "Maple Industries"}})
	unit := &StatementUnit{
		CompanyName: "Maple Industries",
		RestOfLines: "Toronto CANADA",
		PageRange:   []int{1},
	}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, DestDNM, unit.Destination)
	assert.Equal(t, DestForeign, unit.FallbackDestination)
}

func TestClassifierEmptyCompanyName(t *testing.T) {
	c := newTestClassifier([]ReferenceEntry{{Name: "Acme Corp"}})
	unit := &StatementUnit{CompanyName: "", PageRange: []int{7}}

	c.Classify([]*StatementUnit{unit})

	assert.Equal(t, MatchNone, unit.MatchKind)
	assert.Equal(t, DestUnset, unit.Destination)
	assert.True(t, unit.ManualRequired)
	assert.True(t, unit.AskQuestion)
}

func TestClassifierFlaggedOrResolvedInvariant(t *testing.T) {
	// After classification every unit either has a destination or is
	// flagged for review; nothing slips through unresolved and unflagged.
	refs := []ReferenceEntry{{Name: "Acme Corp"}, {Name: "Zenith Holdings"}}
	units := []*StatementUnit{
		{CompanyName: "Acme Corp", PageRange: []int{1}},
		{CompanyName: "Acme Corporation", PageRange: []int{2}},
		{CompanyName: "", PageRange: []int{3}},
		{CompanyName: "Totally Different Name", PageRange: []int{4, 5}},
	}

	newTestClassifier(refs).Classify(units)

	for _, u := range units {
		if u.Destination == DestUnset {
			require.True(t, u.ManualRequired, "unit %q unresolved but not flagged", u.CompanyName)
			require.True(t, u.AskQuestion)
		}
	}
}
