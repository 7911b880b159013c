package statements

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Splitter writes a new PDF containing the selected 1-based pages of the
// source document. Satisfied by pdf.PageSplitter.
type Splitter interface {
	Split(ctx context.Context, inPath string, pages []int, outPath string) error
}

// destinationFiles maps each destination to its output PDF name. The names
// are fixed; downstream mailroom tooling expects them.
var destinationFiles = map[Destination]string{
	DestDNM:         "DNM.pdf",
	DestForeign:     "Foreign.pdf",
	DestNatioSingle: "natioSingle.pdf",
	DestNatioMulti:  "natioMulti.pdf",
}

// Materializer turns finally-classified statements into destination PDFs,
// a JSON audit record, and summary statistics.
type Materializer struct {
	splitter  Splitter
	resultDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewMaterializer creates a materializer writing into resultDir.
func NewMaterializer(splitter Splitter, resultDir string, logger *slog.Logger) *Materializer {
	return &Materializer{
		splitter:  splitter,
		resultDir: resultDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Materialize writes all artifacts for a finished session. Every unit must
// carry a final destination by now; an Unset destination is a bug upstream
// and aborts materialization.
func (m *Materializer) Materialize(ctx context.Context, sessionID, sourcePDF string, refs []ReferenceEntry, units []*StatementUnit) (*Results, error) {
	for _, u := range units {
		if u.Destination == DestUnset {
			return nil, fmt.Errorf("statement %q reached materialization without a destination", u.CompanyName)
		}
	}

	if err := os.MkdirAll(m.resultDir, 0o755); err != nil {
		return nil, fmt.Errorf("create result dir: %w", err)
	}

	auditPath, err := m.writeAudit(sessionID, refs, units)
	if err != nil {
		return nil, err
	}

	pdfFiles, err := m.writeDestinationPDFs(ctx, sessionID, sourcePDF, units)
	if err != nil {
		return nil, err
	}

	results := &Results{
		PDFFiles:  pdfFiles,
		AuditFile: auditPath,
		Stats:     ComputeStatistics(units),
	}

	m.logger.Info("materialized session results",
		slog.String("session", sessionID),
		slog.Int("statements", len(units)),
		slog.Int("output_pdfs", len(pdfFiles)),
	)

	return results, nil
}

// writeAudit persists the JSON audit record. Name collisions are resolved
// by appending an incrementing suffix until a free name is found.
func (m *Materializer) writeAudit(sessionID string, refs []ReferenceEntry, units []*StatementUnit) (string, error) {
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name
	}

	record := AuditRecord{
		DNMCompanies:        names,
		ExtractedStatements: units,
		TotalStatements:     len(units),
		ProcessingTimestamp: m.now().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit record: %w", err)
	}

	base := fmt.Sprintf("%s_%s", sessionID, strings.ToLower(m.now().Format("Jan022006")))
	path := filepath.Join(m.resultDir, base+".json")
	for counter := 1; fileExists(path); counter++ {
		path = filepath.Join(m.resultDir, fmt.Sprintf("%s-%d.json", base, counter))
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write audit record: %w", err)
	}
	return path, nil
}

// writeDestinationPDFs produces one PDF per destination containing the
// union of its statements' pages, in source page order.
func (m *Materializer) writeDestinationPDFs(ctx context.Context, sessionID, sourcePDF string, units []*StatementUnit) (map[Destination]ResultFile, error) {
	pagesByDest := make(map[Destination][]int)
	for _, u := range units {
		pagesByDest[u.Destination] = append(pagesByDest[u.Destination], u.PageRange...)
	}

	out := make(map[Destination]ResultFile, len(pagesByDest))
	for dest, pages := range pagesByDest {
		name, ok := destinationFiles[dest]
		if !ok {
			return nil, fmt.Errorf("unknown destination %q", dest)
		}
		outPath := filepath.Join(m.resultDir, fmt.Sprintf("%s_%s", sessionID, name))
		if err := m.splitter.Split(ctx, sourcePDF, pages, outPath); err != nil {
			return nil, err
		}
		out[dest] = ResultFile{File: outPath, Pages: pages}
	}
	return out, nil
}

// ComputeStatistics summarizes a classified (and reviewed) run.
func ComputeStatistics(units []*StatementUnit) Statistics {
	stats := Statistics{
		TotalStatements: len(units),
		Destinations:    make(map[Destination]int),
	}

	for _, u := range units {
		stats.Destinations[u.Destination]++

		if u.ManualRequired {
			stats.Manual.ManualReviewRequired++
		}
		if u.AskQuestion {
			stats.Manual.InteractiveQuestions++
		}

		// Auto-DNM breakdown counts only statements the classifier
		// filed on its own, not operator answers.
		if u.Destination == DestDNM && u.UserAnswered == AnswerNone {
			switch u.MatchKind {
			case MatchExact:
				stats.DNMBreakdown.Exact++
			case MatchEmail:
				stats.DNMBreakdown.EmailSignal++
			case MatchFuzzy:
				stats.DNMBreakdown.HighConfidence++
			}
		}
	}

	return stats
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
