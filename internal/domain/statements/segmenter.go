package statements

import (
	"strings"

	"github.com/officekit/mailroom/internal/pdf"
)

// Segment groups ordered page texts into StatementUnits, one per company
// mailing. The first non-blank line of a page is taken as its company
// header; a page repeating the previous header, carrying a continuation
// cue, or carrying no text at all extends the previous unit's page range.
//
// A page with no detectable company name and no previous unit becomes its
// own unit with an empty company name, which the classifier routes to
// manual review.
func Segment(pages []pdf.Page) []*StatementUnit {
	var units []*StatementUnit

	for _, page := range pages {
		header, rest := splitHeader(page.Text)

		if len(units) > 0 {
			prev := units[len(units)-1]
			if continuesPrevious(header, rest, prev) {
				prev.PageRange = append(prev.PageRange, page.Index)
				if rest != "" {
					prev.RestOfLines = joinBody(prev.RestOfLines, rest)
				} else if header != "" {
					prev.RestOfLines = joinBody(prev.RestOfLines, header)
				}
				continue
			}
		}

		units = append(units, &StatementUnit{
			CompanyName: header,
			RestOfLines: rest,
			PageRange:   []int{page.Index},
		})
	}

	return units
}

// splitHeader returns the first non-blank line of a page and the remaining
// body text.
func splitHeader(text string) (string, string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		return line, strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
	}
	return "", ""
}

// continuesPrevious reports whether a page belongs to the unit before it.
func continuesPrevious(header, rest string, prev *StatementUnit) bool {
	if header == "" {
		// No detectable company name: fold into the previous statement.
		return true
	}
	if prev.CompanyName != "" && normalizeName(header) == normalizeName(prev.CompanyName) {
		return true
	}
	return hasContinuationCue(header)
}

// hasContinuationCue detects "page 2 of 3"-style headers and explicit
// continuation markers.
func hasContinuationCue(header string) bool {
	h := strings.ToUpper(header)
	if strings.Contains(h, "CONTINUED") || strings.HasPrefix(h, "(CONT") {
		return true
	}
	// "PAGE n OF m" with n > 1.
	fields := strings.Fields(h)
	if len(fields) >= 4 && fields[0] == "PAGE" && fields[2] == "OF" {
		return fields[1] != "1"
	}
	return false
}

func joinBody(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "\n" + b
}
