// Package transport defines the execution-service boundary the query runner
// drives, along with client implementations for the HTTP query agent and for
// AWS Athena. The runner never sees a wire format, only this interface.
package transport

import (
	"context"

	"queryrunner/internal/domain"
)

// ResultsPage is one page of raw query results. Cells are string-or-absent:
// a nil entry means the service returned no value for that position.
type ResultsPage struct {
	// StatusCode is the service's HTTP-equivalent status for the fetch.
	// The runner treats anything other than 200 as a retrieval failure.
	StatusCode int
	Rows       [][]*string
	// NextPageToken is the continuation token for the following page.
	// Empty means this is the last page.
	NextPageToken string
}

// ExecutionService is the capability interface over the remote query
// execution service: submit a query, inspect its lifecycle state, and fetch
// result pages by continuation token.
type ExecutionService interface {
	// StartExecution submits the query text and returns the opaque execution
	// handle. An empty handle with a nil error means the service response
	// lacked one; the runner converts that into a submission failure.
	StartExecution(ctx context.Context, queryText string) (string, error)

	// GetExecutionStatus fetches the current lifecycle state for the handle.
	GetExecutionStatus(ctx context.Context, handle string) (domain.ExecutionState, error)

	// GetResultsPage fetches one page of results. An empty pageToken requests
	// the first page.
	GetResultsPage(ctx context.Context, handle, pageToken string) (ResultsPage, error)
}
