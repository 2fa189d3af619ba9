// Package runner orchestrates the lifecycle of one query against an
// asynchronous execution service: submit, poll until terminal, then stream
// result pages through a caller-supplied batch consumer.
package runner

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"queryrunner/internal/domain"
	"queryrunner/internal/transport"
)

// DefaultPollInterval is the wait between status polls when none is configured.
const DefaultPollInterval = 500 * time.Millisecond

// SleepFunc waits for the given duration or until the context is done.
// Injectable so tests run without real delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Option configures a Runner.
type Option func(*Runner)

// WithPollInterval sets the wait between status polls. Zero disables waiting.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.pollInterval = d }
}

// WithSleep replaces the delay function used between status polls.
func WithSleep(fn SleepFunc) Option {
	return func(r *Runner) { r.sleep = fn }
}

// WithMaxPollAttempts bounds the number of status polls before giving up.
// Zero (the default) polls until the service reports a terminal state.
func WithMaxPollAttempts(n int) Option {
	return func(r *Runner) { r.maxPollAttempts = n }
}

// Runner executes exactly one query. Submission, completion polling, and
// paginated retrieval run strictly in sequence; a second Run on the same
// instance fails immediately. Concurrent runs need independent instances.
type Runner struct {
	svc             transport.ExecutionService
	pollInterval    time.Duration
	sleep           SleepFunc
	maxPollAttempts int
	used            atomic.Bool
}

// New creates a single-use Runner over the given execution service.
func New(svc transport.ExecutionService, opts ...Option) *Runner {
	r := &Runner{
		svc:          svc,
		pollInterval: DefaultPollInterval,
		sleep:        sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run submits the query, waits for it to succeed, and delivers each result
// page to consume in continuation order. All failures are fatal to the run;
// batches delivered before a failure stay delivered.
func (r *Runner) Run(ctx context.Context, query string, consume domain.BatchConsumer) error {
	if !r.used.CompareAndSwap(false, true) {
		return domain.ErrReuse("runner already used: an instance executes at most one query")
	}

	handle, err := r.submit(ctx, query)
	if err != nil {
		return err
	}
	if err := r.awaitCompletion(ctx, handle); err != nil {
		return err
	}
	return r.retrieveAll(ctx, handle, consume)
}

func (r *Runner) submit(ctx context.Context, query string) (string, error) {
	handle, err := r.svc.StartExecution(ctx, query)
	if err != nil {
		return "", fmt.Errorf("start execution: %w", err)
	}
	if handle == "" {
		return "", domain.ErrSubmission("service returned no execution handle")
	}
	return handle, nil
}

// awaitCompletion polls the execution status until a terminal state, waiting
// pollInterval between fetches. Only SUCCEEDED lets the run proceed.
func (r *Runner) awaitCompletion(ctx context.Context, handle string) error {
	attempts := 0
	for {
		state, err := r.svc.GetExecutionStatus(ctx, handle)
		if err != nil {
			return fmt.Errorf("get execution status: %w", err)
		}
		if state.Terminal() {
			if state == domain.StateSucceeded {
				return nil
			}
			return domain.ErrExecutionFailed(state)
		}

		attempts++
		if r.maxPollAttempts > 0 && attempts >= r.maxPollAttempts {
			return fmt.Errorf("gave up after %d status polls, last state %s", attempts, state)
		}
		if err := r.sleep(ctx, r.pollInterval); err != nil {
			return fmt.Errorf("wait for completion: %w", err)
		}
	}
}

// retrieveAll walks the result pages by continuation token. Row 0 of the
// first page is the header; its cell values become the field names for every
// row of every page. The token loop is explicit so memory and stack depth
// stay constant regardless of result-set size.
func (r *Runner) retrieveAll(ctx context.Context, handle string, consume domain.BatchConsumer) error {
	var fields []string
	pageToken := ""
	firstPage := true

	for {
		page, err := r.svc.GetResultsPage(ctx, handle, pageToken)
		if err != nil {
			return domain.ErrRetrieval("fetch results page: %v", err)
		}
		if page.StatusCode != http.StatusOK {
			return domain.ErrRetrieval("results fetch returned status %d", page.StatusCode)
		}

		rows := page.Rows
		if firstPage {
			firstPage = false
			if len(rows) > 0 {
				fields = fieldNames(rows[0])
				rows = rows[1:]
			}
		}

		records, err := convertRows(fields, rows)
		if err != nil {
			return err
		}
		if err := consume(ctx, records); err != nil {
			return fmt.Errorf("batch consumer: %w", err)
		}

		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

// fieldNames derives column names from the header row. An absent header cell
// gets a synthesized name so every column can always be addressed.
func fieldNames(header []*string) []string {
	names := make([]string, len(header))
	for i, cell := range header {
		if cell == nil {
			names[i] = fmt.Sprintf("col%d", i)
			continue
		}
		names[i] = *cell
	}
	return names
}

// convertRows pairs each row's positional values with the field name at the
// same index. Absent cells are omitted from the record.
func convertRows(fields []string, rows [][]*string) ([]domain.Record, error) {
	records := make([]domain.Record, 0, len(rows))
	for _, row := range rows {
		if len(row) > len(fields) {
			return nil, domain.ErrSchemaMismatch(
				"header row is not long enough: row has %d values, header has %d names",
				len(row), len(fields))
		}
		rec := make(domain.Record, len(row))
		for i, cell := range row {
			if cell != nil {
				rec[fields[i]] = *cell
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
