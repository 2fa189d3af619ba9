// Package domain defines core types, interfaces, and errors for the query runner.
package domain

import "fmt"

// ReuseError indicates a single-use runner was invoked more than once.
type ReuseError struct {
	Message string
}

func (e *ReuseError) Error() string { return e.Message }

// SubmissionError indicates the execution service did not return a usable handle.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string { return e.Message }

// ExecutionFailedError indicates the query reached a terminal state other than
// SUCCEEDED. State carries the observed terminal state for diagnostics.
type ExecutionFailedError struct {
	State ExecutionState
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("query execution finished in state %s", e.State)
}

// RetrievalError indicates a results page fetch reported a non-ok status.
type RetrievalError struct {
	Message string
}

func (e *RetrievalError) Error() string { return e.Message }

// SchemaMismatchError indicates a data row carried more positional values than
// the header row provided names for.
type SchemaMismatchError struct {
	Message string
}

func (e *SchemaMismatchError) Error() string { return e.Message }

// ErrReuse creates a ReuseError with a formatted message.
func ErrReuse(format string, args ...interface{}) *ReuseError {
	return &ReuseError{Message: fmt.Sprintf(format, args...)}
}

// ErrSubmission creates a SubmissionError with a formatted message.
func ErrSubmission(format string, args ...interface{}) *SubmissionError {
	return &SubmissionError{Message: fmt.Sprintf(format, args...)}
}

// ErrExecutionFailed creates an ExecutionFailedError for the observed state.
func ErrExecutionFailed(state ExecutionState) *ExecutionFailedError {
	return &ExecutionFailedError{State: state}
}

// ErrRetrieval creates a RetrievalError with a formatted message.
func ErrRetrieval(format string, args ...interface{}) *RetrievalError {
	return &RetrievalError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchemaMismatch creates a SchemaMismatchError with a formatted message.
func ErrSchemaMismatch(format string, args ...interface{}) *SchemaMismatchError {
	return &SchemaMismatchError{Message: fmt.Sprintf(format, args...)}
}
