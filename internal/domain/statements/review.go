package statements

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoPrevious is returned by Answer when the operator undoes with an
// empty history. The queue state is unchanged; callers re-present the same
// question.
var ErrNoPrevious = errors.New("no previous question")

// ErrInvalidCommand is returned by ParseCommand for unrecognized input.
var ErrInvalidCommand = errors.New("invalid command")

// Command is an operator action on the review queue.
type Command string

const (
	CmdYes  Command = "yes"
	CmdNo   Command = "no"
	CmdSkip Command = "skip"
	CmdUndo Command = "undo"
)

// ParseCommand accepts both the full command words and the single-letter
// forms the tool has always used (y/n/s/p, with p for "previous").
func ParseCommand(s string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y":
		return CmdYes, nil
	case "no", "n":
		return CmdNo, nil
	case "skip", "s":
		return CmdSkip, nil
	case "undo", "p":
		return CmdUndo, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidCommand, s)
}

// QuestionState is a snapshot of the review queue presented to the
// operator.
type QuestionState struct {
	Completed   bool   `json:"completed"`
	Position    int    `json:"position,omitempty"` // 1-based
	Total       int    `json:"total"`
	CompanyName string `json:"company_name,omitempty"`
	SimilarTo   string `json:"similar_to,omitempty"`
	CanUndo     bool   `json:"can_undo"`
}

// ReviewQueue walks the operator through the statements flagged with
// ask_question, in original page order. The only mutable state is the
// cursor and the undo history of prior cursor positions.
type ReviewQueue struct {
	items   []*StatementUnit
	cursor  int
	history []int
}

// NewReviewQueue collects the units needing a question. Input order is
// preserved; the segmenter already emits units in page order.
func NewReviewQueue(units []*StatementUnit) *ReviewQueue {
	q := &ReviewQueue{}
	for _, u := range units {
		if u.AskQuestion {
			q.items = append(q.items, u)
		}
	}
	return q
}

// Len returns the number of questions in the queue.
func (q *ReviewQueue) Len() int {
	return len(q.items)
}

// Completed reports whether every question has been passed.
func (q *ReviewQueue) Completed() bool {
	return q.cursor >= len(q.items)
}

// Current returns the state shown to the operator.
func (q *ReviewQueue) Current() QuestionState {
	if q.Completed() {
		return QuestionState{Completed: true, Total: len(q.items), CanUndo: len(q.history) > 0}
	}
	u := q.items[q.cursor]
	return QuestionState{
		Position:    q.cursor + 1,
		Total:       len(q.items),
		CompanyName: u.CompanyName,
		SimilarTo:   u.SimilarTo,
		CanUndo:     len(q.history) > 0,
	}
}

// Answer applies one operator command and returns the resulting state.
//
// yes files the current statement as DNM; no resolves it by the mailing
// rule; skip resolves every remaining unanswered statement the same way
// and completes the queue. undo rewinds the cursor to the previously
// answered question without reverting its answer — the operator overwrites
// it by answering again.
func (q *ReviewQueue) Answer(cmd Command) (QuestionState, error) {
	if q.Completed() {
		// Completed is terminal; control has already passed to
		// materialization.
		return q.Current(), nil
	}

	switch cmd {
	case CmdYes:
		u := q.items[q.cursor]
		q.history = append(q.history, q.cursor)
		u.Destination = DestDNM
		u.UserAnswered = AnswerYes
		q.cursor++

	case CmdNo:
		u := q.items[q.cursor]
		q.history = append(q.history, q.cursor)
		u.Destination = u.FallbackDestination
		u.UserAnswered = AnswerNo
		q.cursor++

	case CmdSkip:
		for i := q.cursor; i < len(q.items); i++ {
			u := q.items[i]
			if u.UserAnswered != AnswerNone {
				continue
			}
			u.UserAnswered = AnswerSkip
			u.Destination = u.FallbackDestination
		}
		// Skip jumps straight to completion and leaves the undo
		// history alone.
		q.cursor = len(q.items)

	case CmdUndo:
		if len(q.history) == 0 {
			return q.Current(), ErrNoPrevious
		}
		q.cursor = q.history[len(q.history)-1]
		q.history = q.history[:len(q.history)-1]

	default:
		return q.Current(), fmt.Errorf("invalid command %q", cmd)
	}

	return q.Current(), nil
}
