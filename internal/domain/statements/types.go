// Package statements implements the monthly-statement sorting engine:
// segmenting extracted PDF text into per-company statements, classifying
// each against a do-not-mail reference list, walking the operator through
// ambiguous matches, and materializing destination PDFs plus an audit
// record.
package statements

// Destination is the output bucket a statement is filed into.
type Destination string

const (
	DestUnset       Destination = ""
	DestDNM         Destination = "DNM"
	DestForeign     Destination = "Foreign"
	DestNatioSingle Destination = "NatioSingle"
	DestNatioMulti  Destination = "NatioMulti"
)

// MatchKind records how a statement was matched against the reference list.
type MatchKind string

const (
	MatchNone  MatchKind = "no_match"
	MatchExact MatchKind = "exact_match"
	MatchFuzzy MatchKind = "fuzzy_match"
	MatchEmail MatchKind = "email_signal"
)

// Answer is the operator's response to a disambiguation question.
type Answer string

const (
	AnswerNone Answer = ""
	AnswerYes  Answer = "yes"
	AnswerNo   Answer = "no"
	AnswerSkip Answer = "skip"
)

// ReferenceEntry is one do-not-mail company record. Entries are immutable
// after loading; Alias is an optional normalized or alternate form.
type ReferenceEntry struct {
	Name  string `json:"name"`
	Alias string `json:"alias,omitempty"`
}

// StatementUnit is one logical recipient mailing, possibly spanning several
// consecutive PDF pages. Created by the segmenter, classified once, then
// optionally answered by the operator.
type StatementUnit struct {
	CompanyName string `json:"company_name"`
	RestOfLines string `json:"rest_of_lines"`

	// PageRange holds the 1-based source page numbers, ascending and
	// contiguous, never overlapping another unit from the same document.
	PageRange []int `json:"page_range"`

	Destination  Destination `json:"destination"`
	MatchKind    MatchKind   `json:"match_kind"`
	MatchPercent int         `json:"match_percent,omitempty"`

	// SimilarTo is the best-matching reference name, shown to the
	// operator when a question is asked.
	SimilarTo string `json:"similar_to,omitempty"`

	ManualRequired bool   `json:"manual_required"`
	AskQuestion    bool   `json:"ask_question"`
	UserAnswered   Answer `json:"user_answered,omitempty"`

	// FallbackDestination is the mailing-category destination computed at
	// classification time, applied when the operator answers "no" or
	// skips. Not part of the audit record; Destination is.
	FallbackDestination Destination `json:"-"`
}

// PageCount returns the number of pages the statement spans.
func (u *StatementUnit) PageCount() int {
	return len(u.PageRange)
}

// AuditRecord is the JSON artifact persisted alongside the output PDFs.
type AuditRecord struct {
	DNMCompanies        []string         `json:"dnm_companies"`
	ExtractedStatements []*StatementUnit `json:"extracted_statements"`
	TotalStatements     int              `json:"total_statements_found"`
	ProcessingTimestamp string           `json:"processing_timestamp"`
}

// DNMBreakdown counts auto-filed DNM statements by the signal that filed them.
type DNMBreakdown struct {
	Exact          int `json:"exact"`
	EmailSignal    int `json:"email"`
	HighConfidence int `json:"high_confidence"`
}

// ManualStats counts statements that needed a human.
type ManualStats struct {
	ManualReviewRequired int `json:"manual_review_required"`
	InteractiveQuestions int `json:"interactive_questions"`
}

// Statistics summarizes one processing run.
type Statistics struct {
	TotalStatements int                 `json:"total_statements"`
	Destinations    map[Destination]int `json:"destinations"`
	DNMBreakdown    DNMBreakdown        `json:"dnm_breakdown"`
	Manual          ManualStats         `json:"manual_processing"`
}

// ResultFile is one destination PDF produced by materialization.
type ResultFile struct {
	File  string `json:"file"`
	Pages []int  `json:"pages"`
}

// Results holds everything materialization produced for a session.
type Results struct {
	PDFFiles  map[Destination]ResultFile `json:"pdf_files"`
	AuditFile string                     `json:"json_file"`
	Stats     Statistics                 `json:"statistics"`
}
