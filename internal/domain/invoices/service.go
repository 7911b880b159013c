// Package invoices splits a scanned invoice batch PDF into one PDF per
// invoice, keyed by the invoice number printed on each page.
package invoices

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/officekit/mailroom/internal/pdf"
)

// ErrNoInvoices is returned when no page carries a recognizable invoice
// number.
var ErrNoInvoices = errors.New("no invoice numbers found in document")

// invoiceNumberRe matches the P- and R-series numbers the billing system
// prints, six to eight digits.
var invoiceNumberRe = regexp.MustCompile(`\b[PR]\d{6,8}\b`)

// Extractor pulls per-page text out of a PDF.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]pdf.Page, error)
}

// Splitter writes selected 1-based pages of a source PDF to a new file.
type Splitter interface {
	Split(ctx context.Context, inPath string, pages []int, outPath string) error
}

// Service performs the batch split.
type Service struct {
	extractor Extractor
	splitter  Splitter
	logger    *slog.Logger
}

func NewService(extractor Extractor, splitter Splitter, logger *slog.Logger) *Service {
	return &Service{extractor: extractor, splitter: splitter, logger: logger}
}

// invoiceGroup is one invoice's page run, in first-seen order.
type invoiceGroup struct {
	number string
	pages  []int
}

// SplitBatch extracts invoice numbers from pdfPath, writes one PDF per
// invoice, and streams them all to w as a zip archive. Returns the number
// of invoices found.
func (s *Service) SplitBatch(ctx context.Context, pdfPath string, w io.Writer) (int, error) {
	pages, err := s.extractor.Extract(ctx, pdfPath)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}

	groups := groupByInvoice(pages)
	if len(groups) == 0 {
		return 0, ErrNoInvoices
	}

	tmpDir, err := os.MkdirTemp("", "invoice-split-*")
	if err != nil {
		return 0, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	zw := zip.NewWriter(w)
	for _, g := range groups {
		outPath := filepath.Join(tmpDir, g.number+".pdf")
		if err := s.splitter.Split(ctx, pdfPath, g.pages, outPath); err != nil {
			zw.Close()
			return 0, fmt.Errorf("split invoice %s: %w", g.number, err)
		}
		if err := addZipFile(zw, outPath); err != nil {
			zw.Close()
			return 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}

	s.logger.Info("split invoice batch",
		slog.Int("pages", len(pages)),
		slog.Int("invoices", len(groups)),
	)
	return len(groups), nil
}

// groupByInvoice assigns each page to the invoice number it carries. Pages
// without a number continue the previous invoice; leading unnumbered pages
// are dropped. A number seen again after other invoices reopens its group.
func groupByInvoice(pages []pdf.Page) []*invoiceGroup {
	var (
		groups  []*invoiceGroup
		byNum   = make(map[string]*invoiceGroup)
		current *invoiceGroup
	)
	for _, page := range pages {
		if num := invoiceNumberRe.FindString(page.Text); num != "" {
			g, ok := byNum[num]
			if !ok {
				g = &invoiceGroup{number: num}
				byNum[num] = g
				groups = append(groups, g)
			}
			current = g
		}
		if current == nil {
			continue
		}
		current.pages = append(current.pages, page.Index)
	}
	return groups
}

func addZipFile(zw *zip.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open split output: %w", err)
	}
	defer f.Close()

	entry, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(entry, f)
	return err
}
