// Package pdf wraps pdfcpu for page-level text extraction and page
// partitioning of uploaded documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page holds the text of a single PDF page. Index is 1-based, matching
// pdfcpu's page numbering.
type Page struct {
	Index int
	Text  string
}

// TextExtractor extracts per-page text from PDF files.
type TextExtractor struct {
	conf *model.Configuration
}

// NewTextExtractor creates an extractor with default pdfcpu configuration.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{conf: model.NewDefaultConfiguration()}
}

// Extract returns the ordered sequence of page texts for the PDF at path.
// It fails if the file is not a valid PDF or contains no text at all.
func (e *TextExtractor) Extract(ctx context.Context, path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pdfCtx, err := api.ReadValidateAndOptimize(f, e.conf)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages := make([]Page, 0, pdfCtx.PageCount)
	empty := 0
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := extractPageText(pdfCtx, pageNr)
		if text == "" {
			empty++
		}
		// Empty pages are kept so page indices stay aligned with the
		// source document; the segmenter folds them into the previous
		// statement.
		pages = append(pages, Page{Index: pageNr, Text: text})
	}

	if len(pages) == 0 || empty == len(pages) {
		return nil, fmt.Errorf("no text content found in PDF")
	}

	return pages, nil
}

// extractPageText pulls the raw content stream for one page and parses the
// text-showing operators out of it.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return parseContentStream(data)
}

// pdfStringRe matches PDF string literals in parentheses: (text here)
var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// parseContentStream walks PDF content stream operators and reassembles the
// visible text. Text positioning operators (Td, TD, T*, ') become line
// breaks so that downstream heuristics can still see the page's line
// structure.
func parseContentStream(data []byte) string {
	var sb strings.Builder

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")), bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}

	return normalizeText(sb.String())
}

// decodePDFString handles basic PDF escape sequences inside string literals.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] >= '0' && raw[i] <= '7' {
				// Octal escape, up to three digits (e.g. \040 for space).
				val := int(raw[i] - '0')
				for d := 0; d < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; d++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}

// normalizeText collapses runs of blanks within lines and drops empty lines
// at the edges, preserving the per-line structure of the page.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		var sb strings.Builder
		prevSpace := false
		for _, r := range line {
			switch {
			case unicode.IsSpace(r):
				if !prevSpace && sb.Len() > 0 {
					sb.WriteByte(' ')
					prevSpace = true
				}
			case unicode.IsPrint(r):
				sb.WriteRune(r)
				prevSpace = false
			}
		}
		out = append(out, strings.TrimSpace(sb.String()))
	}

	return strings.Trim(strings.Join(out, "\n"), "\n")
}
