package statements

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// Thresholds are the fuzzy-match confidence bands, percentages on a 0-100
// scale. At or above Auto the statement is filed as DNM without asking;
// from Ask up to Auto the operator is prompted; below Ask the statement
// falls through to the mailing-category rule.
type Thresholds struct {
	Auto int
	Ask  int
}

// DefaultThresholds mirrors the values the mailroom has always run with.
var DefaultThresholds = Thresholds{Auto: 90, Ask: 60}

// emailRe matches a syntactically plausible email address anywhere in the
// statement body.
var emailRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// canadianPostalRe matches Canadian postal codes ("K1A 0B1"), the most
// common non-domestic pattern in these mailings.
var canadianPostalRe = regexp.MustCompile(`\b[A-Z]\d[A-Z] ?\d[A-Z]\d\b`)

// foreignKeywords feed the Aho-Corasick scanner that flags non-domestic
// addresses. Scanning all patterns in one pass keeps classification O(text)
// regardless of the keyword count.
var foreignKeywords = []string{
	"CANADA", "MEXICO", "UNITED KINGDOM", "ENGLAND", "SCOTLAND", "IRELAND",
	"FRANCE", "GERMANY", "SPAIN", "ITALY", "NETHERLANDS", "BELGIUM",
	"SWITZERLAND", "AUSTRIA", "SWEDEN", "NORWAY", "DENMARK", "FINLAND",
	"PORTUGAL", "POLAND", "JAPAN", "CHINA", "HONG KONG", "SINGAPORE",
	"AUSTRALIA", "NEW ZEALAND", "BRAZIL", "ARGENTINA", "CHILE", "COLOMBIA",
	"INDIA", "SOUTH AFRICA", "ISRAEL", "SAUDI ARABIA", "UNITED ARAB EMIRATES",
	"AIRMAIL", "AIR MAIL", "INTERNATIONAL POST",
}

// Classifier assigns a match kind, destination, and review flags to
// segmented statements using the do-not-mail reference list.
type Classifier struct {
	refs       []ReferenceEntry
	normalized map[string]struct{} // normalized names and aliases, for exact match
	foreign    *ahocorasick.Matcher
	thresholds Thresholds
	logger     *slog.Logger
}

// NewClassifier builds a classifier for one reference list. The list is
// read-only for the life of the classifier.
func NewClassifier(refs []ReferenceEntry, thresholds Thresholds, logger *slog.Logger) *Classifier {
	normalized := make(map[string]struct{}, len(refs)*2)
	for _, ref := range refs {
		if n := normalizeName(ref.Name); n != "" {
			normalized[n] = struct{}{}
		}
		if a := normalizeName(ref.Alias); a != "" {
			normalized[a] = struct{}{}
		}
	}

	patterns := make([][]byte, len(foreignKeywords))
	for i, kw := range foreignKeywords {
		patterns[i] = []byte(kw)
	}

	return &Classifier{
		refs:       refs,
		normalized: normalized,
		foreign:    ahocorasick.NewMatcher(patterns),
		thresholds: thresholds,
		logger:     logger,
	}
}

// Classify assigns match_kind, destination, manual_required, and
// ask_question to every unit. It never fails a run: an error on one unit
// leaves that unit flagged for manual review and moves on.
func (c *Classifier) Classify(units []*StatementUnit) {
	for _, unit := range units {
		c.classifyUnit(unit)
	}
}

func (c *Classifier) classifyUnit(unit *StatementUnit) {
	defer func() {
		if r := recover(); r != nil {
			// A human gets the final say rather than silently
			// mis-filing mail.
			c.logger.Error("classification failed for statement, deferring to manual review",
				slog.String("company", unit.CompanyName),
				slog.Any("panic", r),
			)
			unit.Destination = DestUnset
			unit.MatchKind = MatchNone
			unit.ManualRequired = true
			unit.AskQuestion = true
			if unit.FallbackDestination == DestUnset {
				if unit.PageCount() > 1 {
					unit.FallbackDestination = DestNatioMulti
				} else {
					unit.FallbackDestination = DestNatioSingle
				}
			}
		}
	}()

	unit.FallbackDestination = c.mailingDestination(unit)

	// A page with no detectable company header cannot be matched at all;
	// always ask.
	if strings.TrimSpace(unit.CompanyName) == "" {
		unit.MatchKind = MatchNone
		unit.ManualRequired = true
		unit.AskQuestion = true
		return
	}

	// 1. Exact match against canonical names and aliases.
	if _, ok := c.normalized[normalizeName(unit.CompanyName)]; ok {
		unit.MatchKind = MatchExact
		unit.Destination = DestDNM
		unit.ManualRequired = false
		return
	}

	// 2. Email-only contact channel is treated as an opt-out of physical
	// mail.
	if emailRe.MatchString(unit.RestOfLines) {
		unit.MatchKind = MatchEmail
		unit.Destination = DestDNM
		unit.ManualRequired = false
		return
	}

	// 3. Fuzzy match against the reference list.
	score, similarTo := bestReferenceMatch(unit.CompanyName, c.refs)
	switch {
	case score >= c.thresholds.Auto:
		unit.MatchKind = MatchFuzzy
		unit.MatchPercent = score
		unit.SimilarTo = similarTo
		unit.Destination = DestDNM
		unit.ManualRequired = false
	case score >= c.thresholds.Ask:
		unit.MatchKind = MatchFuzzy
		unit.MatchPercent = score
		unit.SimilarTo = similarTo
		unit.ManualRequired = true
		unit.AskQuestion = true
	default:
		// 4. No meaningful match: file by mailing category.
		unit.MatchKind = MatchNone
		unit.Destination = unit.FallbackDestination
		unit.ManualRequired = false
	}
}

// mailingDestination applies the mailing-category rule: Foreign when the
// text shows a non-domestic address pattern, otherwise single or multi by
// page count.
func (c *Classifier) mailingDestination(unit *StatementUnit) Destination {
	if c.hasForeignSignal(unit) {
		return DestForeign
	}
	if unit.PageCount() > 1 {
		return DestNatioMulti
	}
	return DestNatioSingle
}

func (c *Classifier) hasForeignSignal(unit *StatementUnit) bool {
	text := strings.ToUpper(unit.CompanyName + "\n" + unit.RestOfLines)
	if len(c.foreign.Match([]byte(text))) > 0 {
		return true
	}
	return canadianPostalRe.MatchString(text)
}
