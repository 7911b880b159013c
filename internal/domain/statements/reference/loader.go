// Package reference loads do-not-mail company lists from spreadsheet
// uploads. Both .xlsx workbooks and plain CSV exports are accepted.
package reference

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/officekit/mailroom/internal/domain/statements"
)

// ErrNoCompanyColumn is returned when no header cell names the company
// column.
var ErrNoCompanyColumn = errors.New("reference list has no company column")

// ErrEmptyList is returned when the sheet parses but contains no entries.
var ErrEmptyList = errors.New("reference list contains no companies")

// Loader reads reference lists off disk. It is stateless and safe for
// concurrent use.
type Loader struct {
	logger *slog.Logger
}

func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{logger: logger}
}

// Load parses the file at path, dispatching on extension.
func (l *Loader) Load(path string) ([]statements.ReferenceEntry, error) {
	var (
		entries []statements.ReferenceEntry
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		entries, err = l.loadExcel(path)
	case ".csv":
		entries, err = l.loadCSV(path)
	default:
		return nil, fmt.Errorf("unsupported reference list format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrEmptyList
	}

	l.logger.Info("loaded reference list",
		slog.String("file", filepath.Base(path)),
		slog.Int("companies", len(entries)),
	)
	return entries, nil
}

func (l *Loader) loadExcel(path string) ([]statements.ReferenceEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyList
	}

	nameCol, aliasCol := findColumns(rows[0])
	if nameCol < 0 {
		return nil, ErrNoCompanyColumn
	}

	var entries []statements.ReferenceEntry
	for _, row := range rows[1:] {
		entry := entryFromRow(row, nameCol, aliasCol)
		if entry.Name != "" {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// csvRow maps the normalized header names produced by csvHeaderNormalizer.
type csvRow struct {
	Company string `csv:"company"`
	Alias   string `csv:"alias"`
}

// csvHeaderNormalizer folds the header variants seen in exports
// ("Company Name", "DNM Company", "name") onto the two tags csvRow uses.
func csvHeaderNormalizer(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	switch {
	case strings.Contains(h, "alias"), strings.Contains(h, "alternate"):
		return "alias"
	case strings.Contains(h, "company"), strings.Contains(h, "name"), strings.Contains(h, "dnm"):
		return "company"
	}
	return h
}

func (l *Loader) loadCSV(path string) ([]statements.ReferenceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	var rows []csvRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var entries []statements.ReferenceEntry
	for _, row := range rows {
		name := strings.TrimSpace(row.Company)
		if name == "" {
			continue
		}
		entries = append(entries, statements.ReferenceEntry{
			Name:  name,
			Alias: strings.TrimSpace(row.Alias),
		})
	}
	if len(entries) == 0 && len(rows) > 0 {
		return nil, ErrNoCompanyColumn
	}
	return entries, nil
}

func init() {
	gocsv.SetHeaderNormalizer(csvHeaderNormalizer)
}

// findColumns locates the company and alias columns in a header row.
// Returns -1 when a column is absent.
func findColumns(header []string) (nameCol, aliasCol int) {
	nameCol, aliasCol = -1, -1
	for i, cell := range header {
		switch csvHeaderNormalizer(cell) {
		case "company":
			if nameCol < 0 {
				nameCol = i
			}
		case "alias":
			if aliasCol < 0 {
				aliasCol = i
			}
		}
	}
	return nameCol, aliasCol
}

func entryFromRow(row []string, nameCol, aliasCol int) statements.ReferenceEntry {
	var entry statements.ReferenceEntry
	if nameCol >= 0 && nameCol < len(row) {
		entry.Name = strings.TrimSpace(row[nameCol])
	}
	if aliasCol >= 0 && aliasCol < len(row) {
		entry.Alias = strings.TrimSpace(row[aliasCol])
	}
	return entry
}
