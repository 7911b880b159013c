package statements

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/officekit/mailroom/internal/pdf"
)

func statementPage(index int, company, body string) pdf.Page {
	return pdf.Page{Index: index, Text: company + "\n" + body}
}

func TestSegmentOnePagePerCompany(t *testing.T) {
	pages := []pdf.Page{
		statementPage(1, "Acme Corp", "123 Main St\nBalance due: $40.00"),
		statementPage(2, "Zenith Holdings", "456 Oak Ave\nBalance due: $12.50"),
		statementPage(3, "Maple Industries", "789 Pine Rd\nBalance due: $7.25"),
	}

	units := Segment(pages)

	require.Len(t, units, 3)
	assert.Equal(t, "Acme Corp", units[0].CompanyName)
	assert.Equal(t, []int{1}, units[0].PageRange)
	assert.Equal(t, "Zenith Holdings", units[1].CompanyName)
	assert.Equal(t, []int{2}, units[1].PageRange)
	assert.Equal(t, "Maple Industries", units[2].CompanyName)
	assert.Equal(t, []int{3}, units[2].PageRange)
}

func TestSegmentRepeatedHeaderExtendsUnit(t *testing.T) {
	pages := []pdf.Page{
		statementPage(1, "Acme Corp", "page one body"),
		statementPage(2, "ACME CORP", "page two body"),
		statementPage(3, "Zenith Holdings", "other body"),
	}

	units := Segment(pages)

	require.Len(t, units, 2)
	assert.Equal(t, []int{1, 2}, units[0].PageRange)
	assert.Contains(t, units[0].RestOfLines, "page one body")
	assert.Contains(t, units[0].RestOfLines, "page two body")
	assert.Equal(t, []int{3}, units[1].PageRange)
}

func TestSegmentContinuationCues(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"continued marker", "Statement Continued"},
		{"parenthesized cont", "(cont.)"},
		{"page n of m", "Page 2 of 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages := []pdf.Page{
				statementPage(1, "Acme Corp", "first page"),
				statementPage(2, tt.header, "second page"),
			}

			units := Segment(pages)

			require.Len(t, units, 1)
			assert.Equal(t, []int{1, 2}, units[0].PageRange)
		})
	}
}

func TestSegmentPageOneOfIsNewStatement(t *testing.T) {
	pages := []pdf.Page{
		statementPage(1, "Acme Corp", "first statement"),
		statementPage(2, "Page 1 of 2", "second statement"),
	}

	units := Segment(pages)

	require.Len(t, units, 2)
}

func TestSegmentBlankPageFoldsIntoPrevious(t *testing.T) {
	pages := []pdf.Page{
		statementPage(1, "Acme Corp", "body"),
		{Index: 2, Text: ""},
		statementPage(3, "Zenith Holdings", "body"),
	}

	units := Segment(pages)

	require.Len(t, units, 2)
	assert.Equal(t, []int{1, 2}, units[0].PageRange)
}

func TestSegmentLeadingBlankPageBecomesOwnUnit(t *testing.T) {
	pages := []pdf.Page{
		{Index: 1, Text: ""},
		statementPage(2, "Acme Corp", "body"),
	}

	units := Segment(pages)

	require.Len(t, units, 2)
	assert.Empty(t, units[0].CompanyName)
	assert.Equal(t, []int{1}, units[0].PageRange)
	assert.Equal(t, "Acme Corp", units[1].CompanyName)
}

func TestSegmentPageRangesNeverOverlap(t *testing.T) {
	gofakeit.Seed(11)

	var pages []pdf.Page
	for i := 1; i <= 40; i++ {
		body := fmt.Sprintf("%s\n%s", gofakeit.Street(), gofakeit.City())
		switch {
		case i%7 == 0:
			pages = append(pages, statementPage(i, "Statement Continued", body))
		case i%11 == 0:
			pages = append(pages, pdf.Page{Index: i, Text: ""})
		default:
			pages = append(pages, statementPage(i, gofakeit.Company(), body))
		}
	}

	units := Segment(pages)

	seen := make(map[int]bool)
	total := 0
	for _, u := range units {
		for _, p := range u.PageRange {
			require.False(t, seen[p], "page %d assigned twice", p)
			seen[p] = true
			total++
		}
	}
	assert.Equal(t, len(pages), total, "every page belongs to exactly one unit")
}
