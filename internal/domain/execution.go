package domain

import "context"

// ExecutionState represents the lifecycle state of a submitted query.
type ExecutionState string

// Query execution lifecycle states. The service may report states outside
// this list; any unlisted state is treated as terminal.
const (
	StateQueued    ExecutionState = "QUEUED"
	StateRunning   ExecutionState = "RUNNING"
	StateSucceeded ExecutionState = "SUCCEEDED"
	StateFailed    ExecutionState = "FAILED"
	StateCancelled ExecutionState = "CANCELLED"
)

// Terminal reports whether no further state change can occur. Only QUEUED and
// RUNNING are non-terminal; everything else, including unknown states, is.
func (s ExecutionState) Terminal() bool {
	return s != StateQueued && s != StateRunning
}

// Record maps field names to row values. Cells that are absent on the wire
// have no entry in the map.
type Record map[string]string

// BatchConsumer receives one page worth of converted records at a time.
// Invocations are strictly sequential and a batch may be empty. Returning an
// error aborts the run; batches already delivered stay delivered.
type BatchConsumer func(ctx context.Context, records []Record) error
