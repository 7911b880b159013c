package statements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func askUnit(company, similarTo string, fallback Destination) *StatementUnit {
	return &StatementUnit{
		CompanyName:         company,
		SimilarTo:           similarTo,
		AskQuestion:         true,
		ManualRequired:      true,
		FallbackDestination: fallback,
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"yes", CmdYes},
		{"y", CmdYes},
		{"no", CmdNo},
		{"n", CmdNo},
		{"skip", CmdSkip},
		{"s", CmdSkip},
		{"undo", CmdUndo},
		{"p", CmdUndo},
		{"YES", CmdYes},
		{" no ", CmdNo},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, cmd)
	}

	_, err := ParseCommand("maybe")
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestReviewQueueFiltersAskedUnits(t *testing.T) {
	units := []*StatementUnit{
		{CompanyName: "Auto DNM", Destination: DestDNM},
		askUnit("Acme Corporation", "Acme Corp", DestNatioSingle),
		{CompanyName: "Plain", Destination: DestNatioSingle},
		askUnit("Zenith Holding", "Zenith Holdings", DestNatioMulti),
	}

	q := NewReviewQueue(units)

	assert.Equal(t, 2, q.Len())
	state := q.Current()
	assert.Equal(t, 1, state.Position)
	assert.Equal(t, 2, state.Total)
	assert.Equal(t, "Acme Corporation", state.CompanyName)
	assert.Equal(t, "Acme Corp", state.SimilarTo)
	assert.False(t, state.CanUndo)
}

func TestReviewQueueYesNo(t *testing.T) {
	first := askUnit("Acme Corporation", "Acme Corp", DestNatioSingle)
	second := askUnit("Zenith Holding", "Zenith Holdings", DestNatioMulti)
	q := NewReviewQueue([]*StatementUnit{first, second})

	state, err := q.Answer(CmdYes)
	require.NoError(t, err)
	assert.Equal(t, DestDNM, first.Destination)
	assert.Equal(t, AnswerYes, first.UserAnswered)
	assert.Equal(t, 2, state.Position)
	assert.True(t, state.CanUndo)

	state, err = q.Answer(CmdNo)
	require.NoError(t, err)
	assert.Equal(t, DestNatioMulti, second.Destination)
	assert.Equal(t, AnswerNo, second.UserAnswered)
	assert.True(t, state.Completed)
	assert.True(t, q.Completed())
}

func TestReviewQueueSkipResolvesRemaining(t *testing.T) {
	first := askUnit("First", "F Corp", DestNatioSingle)
	second := askUnit("Second", "S Corp", DestForeign)
	third := askUnit("Third", "T Corp", DestNatioMulti)
	q := NewReviewQueue([]*StatementUnit{first, second, third})

	_, err := q.Answer(CmdYes)
	require.NoError(t, err)

	state, err := q.Answer(CmdSkip)
	require.NoError(t, err)
	assert.True(t, state.Completed)

	// The answered unit keeps its answer; the remaining two are skipped
	// to their mailing-category fallback.
	assert.Equal(t, AnswerYes, first.UserAnswered)
	assert.Equal(t, DestDNM, first.Destination)
	assert.Equal(t, AnswerSkip, second.UserAnswered)
	assert.Equal(t, DestForeign, second.Destination)
	assert.Equal(t, AnswerSkip, third.UserAnswered)
	assert.Equal(t, DestNatioMulti, third.Destination)
}

func TestReviewQueueUndoRewindsCursorOnly(t *testing.T) {
	first := askUnit("First", "F Corp", DestNatioSingle)
	second := askUnit("Second", "S Corp", DestNatioSingle)
	q := NewReviewQueue([]*StatementUnit{first, second})

	_, err := q.Answer(CmdYes)
	require.NoError(t, err)

	state, err := q.Answer(CmdUndo)
	require.NoError(t, err)
	assert.Equal(t, 1, state.Position)
	// The prior answer stands until overwritten.
	assert.Equal(t, DestDNM, first.Destination)
	assert.Equal(t, AnswerYes, first.UserAnswered)

	state, err = q.Answer(CmdNo)
	require.NoError(t, err)
	assert.Equal(t, DestNatioSingle, first.Destination)
	assert.Equal(t, AnswerNo, first.UserAnswered)
	assert.Equal(t, 2, state.Position)
}

func TestReviewQueueUndoEmptyHistory(t *testing.T) {
	first := askUnit("First", "F Corp", DestNatioSingle)
	q := NewReviewQueue([]*StatementUnit{first})

	before := q.Current()
	state, err := q.Answer(CmdUndo)
	assert.ErrorIs(t, err, ErrNoPrevious)
	assert.Equal(t, before, state, "failed undo leaves the queue unchanged")
}

func TestReviewQueueUndoAfterSkipRewindsToLastAnswered(t *testing.T) {
	first := askUnit("First", "F Corp", DestNatioSingle)
	second := askUnit("Second", "S Corp", DestNatioSingle)
	third := askUnit("Third", "T Corp", DestNatioSingle)
	q := NewReviewQueue([]*StatementUnit{first, second, third})

	_, err := q.Answer(CmdYes)
	require.NoError(t, err)
	state, err := q.Answer(CmdSkip)
	require.NoError(t, err)
	require.True(t, state.Completed)

	// Completed is terminal; even undo no longer reopens the queue.
	state, err = q.Answer(CmdUndo)
	require.NoError(t, err)
	assert.True(t, state.Completed)
}

func TestReviewQueueCompletedIsTerminal(t *testing.T) {
	first := askUnit("First", "F Corp", DestNatioSingle)
	q := NewReviewQueue([]*StatementUnit{first})

	_, err := q.Answer(CmdYes)
	require.NoError(t, err)
	require.True(t, q.Completed())

	for _, cmd := range []Command{CmdYes, CmdNo, CmdSkip, CmdUndo} {
		state, err := q.Answer(cmd)
		require.NoError(t, err)
		assert.True(t, state.Completed)
		assert.Equal(t, DestDNM, first.Destination)
	}
}

func TestReviewQueueUndoRoundTrip(t *testing.T) {
	// Answer M questions, undo M times, re-answer M times; the queue
	// completes and every unit carries the latest answer.
	const m = 4
	units := make([]*StatementUnit, m)
	for i := range units {
		units[i] = askUnit("Company", "Ref", DestNatioSingle)
	}
	q := NewReviewQueue(units)

	for i := 0; i < m; i++ {
		_, err := q.Answer(CmdYes)
		require.NoError(t, err)
	}
	require.True(t, q.Completed())
	// Completed is terminal for a finished queue, so rebuild mid-way
	// instead: answer m-1, then undo back to the start.
	q = NewReviewQueue(units)
	for i := 0; i < m-1; i++ {
		_, err := q.Answer(CmdYes)
		require.NoError(t, err)
	}
	for i := 0; i < m-1; i++ {
		_, err := q.Answer(CmdUndo)
		require.NoError(t, err)
	}
	state := q.Current()
	assert.Equal(t, 1, state.Position)
	assert.False(t, state.CanUndo)

	for i := 0; i < m; i++ {
		_, err := q.Answer(CmdNo)
		require.NoError(t, err)
	}
	require.True(t, q.Completed())
	for _, u := range units {
		assert.Equal(t, AnswerNo, u.UserAnswered)
		assert.Equal(t, DestNatioSingle, u.Destination)
	}
}
