package runner_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"queryrunner/internal/domain"
	"queryrunner/internal/runner"
	"queryrunner/internal/transport"
)

// scriptedService replays canned responses in order and records every call so
// tests can assert the exact sequence of service operations.
type scriptedService struct {
	t *testing.T

	handle   string
	startErr error

	states   []domain.ExecutionState
	statusAt int

	pages        []transport.ResultsPage
	expectTokens []string
	resultsAt    int

	calls []string
}

func (f *scriptedService) StartExecution(_ context.Context, queryText string) (string, error) {
	f.calls = append(f.calls, "start")
	require.NotEmpty(f.t, queryText)
	return f.handle, f.startErr
}

func (f *scriptedService) GetExecutionStatus(_ context.Context, handle string) (domain.ExecutionState, error) {
	f.calls = append(f.calls, "status")
	require.Equal(f.t, f.handle, handle)
	require.Less(f.t, f.statusAt, len(f.states), "unexpected extra status poll")
	state := f.states[f.statusAt]
	f.statusAt++
	return state, nil
}

func (f *scriptedService) GetResultsPage(_ context.Context, handle, pageToken string) (transport.ResultsPage, error) {
	f.calls = append(f.calls, "results:"+pageToken)
	require.Equal(f.t, f.handle, handle)
	require.Less(f.t, f.resultsAt, len(f.pages), "unexpected extra results fetch")
	require.Equal(f.t, f.expectTokens[f.resultsAt], pageToken)
	page := f.pages[f.resultsAt]
	f.resultsAt++
	return page, nil
}

// collector accumulates batches delivered by the runner.
type collector struct {
	batches [][]domain.Record
	err     error
}

func (c *collector) consume(_ context.Context, records []domain.Record) error {
	c.batches = append(c.batches, records)
	return c.err
}

func sp(s string) *string { return &s }

func okPage(token string, rows ...[]*string) transport.ResultsPage {
	return transport.ResultsPage{StatusCode: http.StatusOK, Rows: rows, NextPageToken: token}
}

func TestRun_HappyPathSinglePage(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-1",
		states: []domain.ExecutionState{domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage("",
				[]*string{sp("id"), sp("name")},
				[]*string{sp("1"), sp("Alice")},
				[]*string{sp("2"), sp("Bob")},
			),
		},
		expectTokens: []string{""},
	}

	var sink collector
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT id, name FROM users", sink.consume)
	require.NoError(t, err)

	require.Len(t, sink.batches, 1)
	assert.Equal(t, []domain.Record{
		{"id": "1", "name": "Alice"},
		{"id": "2", "name": "Bob"},
	}, sink.batches[0])
	assert.Equal(t, []string{"start", "status", "results:"}, svc.calls)
}

func TestRun_MultiPollMultiPage(t *testing.T) {
	tok2 := "page-2"
	tok3 := "page-3"
	svc := &scriptedService{
		t:      t,
		handle: "exec-2",
		states: []domain.ExecutionState{domain.StateQueued, domain.StateRunning, domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage(tok2,
				[]*string{sp("n")},
				[]*string{sp("1")},
			),
			okPage(tok3, []*string{sp("2")}),
			okPage("", []*string{sp("3")}),
		},
		expectTokens: []string{"", tok2, tok3},
	}

	sleeps := 0
	r := runner.New(svc,
		runner.WithPollInterval(time.Second),
		runner.WithSleep(func(context.Context, time.Duration) error {
			sleeps++
			return nil
		}),
	)

	var sink collector
	require.NoError(t, r.Run(context.Background(), "SELECT n FROM seq", sink.consume))

	require.Len(t, sink.batches, 3)
	var all []domain.Record
	for _, batch := range sink.batches {
		all = append(all, batch...)
	}
	assert.Equal(t, []domain.Record{{"n": "1"}, {"n": "2"}, {"n": "3"}}, all)
	assert.Equal(t, 2, sleeps, "one wait per non-terminal poll")
	assert.Equal(t, []string{
		"start", "status", "status", "status",
		"results:", "results:" + tok2, "results:" + tok3,
	}, svc.calls)
}

func TestRun_SubmissionFailure(t *testing.T) {
	svc := &scriptedService{t: t, handle: ""}

	var sink collector
	err := runner.New(svc).Run(context.Background(), "SELECT 1", sink.consume)

	var subErr *domain.SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Empty(t, sink.batches, "consumer must never be invoked")
	assert.Equal(t, []string{"start"}, svc.calls, "no status or results calls after failed submit")
}

func TestRun_ExecutionFailure(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-3",
		states: []domain.ExecutionState{domain.StateQueued, domain.StateFailed},
	}

	var sink collector
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume)

	var execErr *domain.ExecutionFailedError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.StateFailed, execErr.State)
	assert.Empty(t, sink.batches)
	assert.Equal(t, []string{"start", "status", "status"}, svc.calls, "no results call after failure")
}

func TestRun_UnknownTerminalStateFails(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-4",
		states: []domain.ExecutionState{domain.ExecutionState("TIMED_OUT")},
	}

	var sink collector
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume)

	var execErr *domain.ExecutionFailedError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, domain.ExecutionState("TIMED_OUT"), execErr.State)
}

func TestRun_RetrievalFailure(t *testing.T) {
	svc := &scriptedService{
		t:            t,
		handle:       "exec-5",
		states:       []domain.ExecutionState{domain.StateSucceeded},
		pages:        []transport.ResultsPage{{StatusCode: http.StatusInternalServerError}},
		expectTokens: []string{""},
	}

	var sink collector
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume)

	var retErr *domain.RetrievalError
	require.ErrorAs(t, err, &retErr)
	assert.Contains(t, err.Error(), "500")
	assert.Empty(t, sink.batches)
}

func TestRun_HeaderSynthesis(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-6",
		states: []domain.ExecutionState{domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage("",
				[]*string{sp("id"), nil, sp("city")},
				[]*string{sp("1"), sp("x"), sp("Oslo")},
			),
		},
		expectTokens: []string{""},
	}

	var sink collector
	require.NoError(t, runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume))

	require.Len(t, sink.batches, 1)
	assert.Equal(t, []domain.Record{
		{"id": "1", "col1": "x", "city": "Oslo"},
	}, sink.batches[0])
}

func TestRun_FieldNamesStableAcrossPages(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-7",
		states: []domain.ExecutionState{domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage("next",
				[]*string{sp("a"), sp("b")},
				[]*string{sp("1"), sp("2")},
			),
			// Second page has no header row; page-1 field names apply.
			okPage("", []*string{sp("3"), sp("4")}),
		},
		expectTokens: []string{"", "next"},
	}

	var sink collector
	require.NoError(t, runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume))

	require.Len(t, sink.batches, 2)
	assert.Equal(t, []domain.Record{{"a": "1", "b": "2"}}, sink.batches[0])
	assert.Equal(t, []domain.Record{{"a": "3", "b": "4"}}, sink.batches[1])
}

func TestRun_SchemaMismatch(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-8",
		states: []domain.ExecutionState{domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage("",
				[]*string{sp("only")},
				[]*string{sp("1"), sp("overflow")},
			),
		},
		expectTokens: []string{""},
	}

	var sink collector
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume)

	var schemaErr *domain.SchemaMismatchError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, err.Error(), "header row is not long enough")
	assert.Empty(t, sink.batches)
}

func TestRun_AbsentCellsOmittedFromRecord(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-9",
		states: []domain.ExecutionState{domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage("",
				[]*string{sp("a"), sp("b"), sp("c")},
				[]*string{sp("1"), nil},
			),
		},
		expectTokens: []string{""},
	}

	var sink collector
	require.NoError(t, runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume))

	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 1)
	assert.Equal(t, domain.Record{"a": "1"}, sink.batches[0][0])
}

func TestRun_EmptyPageStillInvokesConsumer(t *testing.T) {
	t.Run("header_only", func(t *testing.T) {
		svc := &scriptedService{
			t:            t,
			handle:       "exec-10",
			states:       []domain.ExecutionState{domain.StateSucceeded},
			pages:        []transport.ResultsPage{okPage("", []*string{sp("id")})},
			expectTokens: []string{""},
		}

		var sink collector
		require.NoError(t, runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume))
		require.Len(t, sink.batches, 1)
		assert.Empty(t, sink.batches[0])
	})

	t.Run("no_rows_at_all", func(t *testing.T) {
		svc := &scriptedService{
			t:            t,
			handle:       "exec-11",
			states:       []domain.ExecutionState{domain.StateSucceeded},
			pages:        []transport.ResultsPage{okPage("")},
			expectTokens: []string{""},
		}

		var sink collector
		require.NoError(t, runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume))
		require.Len(t, sink.batches, 1)
		assert.Empty(t, sink.batches[0])
	})
}

func TestRun_SingleUseEnforcement(t *testing.T) {
	svc := &scriptedService{
		t:            t,
		handle:       "exec-12",
		states:       []domain.ExecutionState{domain.StateSucceeded},
		pages:        []transport.ResultsPage{okPage("", []*string{sp("id")}, []*string{sp("1")})},
		expectTokens: []string{""},
	}
	r := runner.New(svc, runner.WithPollInterval(0))

	var sink collector
	require.NoError(t, r.Run(context.Background(), "SELECT 1", sink.consume))
	callsAfterFirst := len(svc.calls)
	batchesAfterFirst := len(sink.batches)

	err := r.Run(context.Background(), "SELECT 1", sink.consume)
	var reuseErr *domain.ReuseError
	require.ErrorAs(t, err, &reuseErr)

	assert.Equal(t, callsAfterFirst, len(svc.calls), "second call must not touch the service")
	assert.Equal(t, batchesAfterFirst, len(sink.batches))
}

func TestRun_ConsumerErrorAbortsRun(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-13",
		states: []domain.ExecutionState{domain.StateSucceeded},
		pages: []transport.ResultsPage{
			okPage("more", []*string{sp("id")}, []*string{sp("1")}),
			okPage("", []*string{sp("2")}),
		},
		expectTokens: []string{"", "more"},
	}

	sink := collector{err: errors.New("sink full")}
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink full")
	assert.Len(t, sink.batches, 1, "no page fetched after the consumer fails")
	assert.Equal(t, []string{"start", "status", "results:"}, svc.calls)
}

func TestRun_ContextCancelledDuringPoll(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-14",
		states: []domain.ExecutionState{domain.StateQueued, domain.StateQueued},
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := runner.New(svc,
		runner.WithPollInterval(time.Minute),
		runner.WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	var sink collector
	err := r.Run(ctx, "SELECT 1", sink.consume)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.batches)
}

func TestRun_MaxPollAttempts(t *testing.T) {
	svc := &scriptedService{
		t:      t,
		handle: "exec-15",
		states: []domain.ExecutionState{domain.StateQueued, domain.StateQueued, domain.StateQueued},
	}

	var sink collector
	err := runner.New(svc,
		runner.WithPollInterval(0),
		runner.WithMaxPollAttempts(3),
	).Run(context.Background(), "SELECT 1", sink.consume)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 status polls")
	assert.Empty(t, sink.batches)
}

func TestRun_StatusErrorPropagates(t *testing.T) {
	svc := &statusErrService{scriptedService{t: t, handle: "exec-16"}}

	var sink collector
	err := runner.New(svc, runner.WithPollInterval(0)).Run(context.Background(), "SELECT 1", sink.consume)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get execution status")
	assert.Empty(t, sink.batches)
}

type statusErrService struct{ scriptedService }

func (f *statusErrService) GetExecutionStatus(context.Context, string) (domain.ExecutionState, error) {
	return "", fmt.Errorf("connection reset")
}
