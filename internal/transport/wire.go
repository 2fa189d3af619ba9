package transport

// Wire types for the query-agent HTTP protocol. Used by both the HTTP client
// (internal/transport/http.go) and the agent handler (internal/agent) so the
// contract stays in sync at compile time.

// SubmitQueryRequest is the JSON body sent to POST /queries.
type SubmitQueryRequest struct {
	SQL       string `json:"sql"`
	RequestID string `json:"request_id,omitempty"`
}

// SubmitQueryResponse is returned when a query job is accepted.
type SubmitQueryResponse struct {
	QueryID   string `json:"query_id"`
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// QueryStatusResponse returns the current lifecycle state of a query job.
type QueryStatusResponse struct {
	QueryID   string `json:"query_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// FetchResultsResponse returns one page of query results. Row 0 of the first
// page is the header row carrying column names; nil cells are absent values.
type FetchResultsResponse struct {
	QueryID       string      `json:"query_id"`
	Rows          [][]*string `json:"rows"`
	NextPageToken string      `json:"next_page_token,omitempty"`
	RequestID     string      `json:"request_id,omitempty"`
}

// CancelQueryResponse is returned after cancel or delete requests.
type CancelQueryResponse struct {
	QueryID   string `json:"query_id"`
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse is the JSON error body returned by the agent on failures.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}
