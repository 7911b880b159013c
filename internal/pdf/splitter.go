package pdf

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageSplitter writes new PDFs containing a selection of pages from a
// source document, preserving the source page order.
type PageSplitter struct {
	conf *model.Configuration
}

// NewPageSplitter creates a splitter with default pdfcpu configuration.
func NewPageSplitter() *PageSplitter {
	return &PageSplitter{conf: model.NewDefaultConfiguration()}
}

// Split writes the given 1-based pages of inPath to outPath. Page numbers
// are deduplicated and sorted; an empty selection is an error.
func (s *PageSplitter) Split(ctx context.Context, inPath string, pages []int, outPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no pages selected for %s", outPath)
	}

	selection := pageSelection(pages)
	if err := api.TrimFile(inPath, outPath, selection, s.conf); err != nil {
		return fmt.Errorf("split %s: %w", outPath, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF at path.
func (s *PageSplitter) PageCount(ctx context.Context, path string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("page count %s: %w", path, err)
	}
	return n, nil
}

// pageSelection converts page numbers into pdfcpu's selection syntax,
// compacting consecutive runs into ranges ("1-3,7").
func pageSelection(pages []int) []string {
	uniq := make(map[int]struct{}, len(pages))
	for _, p := range pages {
		if p > 0 {
			uniq[p] = struct{}{}
		}
	}
	sorted := make([]int, 0, len(uniq))
	for p := range uniq {
		sorted = append(sorted, p)
	}
	sort.Ints(sorted)

	var out []string
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if i == j {
			out = append(out, strconv.Itoa(sorted[i]))
		} else {
			out = append(out, fmt.Sprintf("%d-%d", sorted[i], sorted[j]))
		}
		i = j + 1
	}
	return out
}
