// Package agent implements the reference query execution service the runner
// talks to: an async query lifecycle (submit, status, paginated results,
// cancel) over HTTP, executing SQL against a SQLite database. It is extracted
// from cmd/query-agent so integration tests can spin up an in-process agent
// via httptest.NewServer.
package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"queryrunner/internal/domain"
	"queryrunner/internal/middleware"
	"queryrunner/internal/transport"
)

// HandlerConfig holds the parameters needed to build the agent HTTP handler.
type HandlerConfig struct {
	DB         *sql.DB
	AgentToken string
	PageSize   int
	RateLimit  middleware.RateLimitConfig
	StartTime  time.Time
	Logger     *slog.Logger
}

// Agent owns the job store and the in-flight cancel functions.
type Agent struct {
	db        *sql.DB
	store     *Store
	pageSize  int
	startTime time.Time
	logger    *slog.Logger
	cancels   sync.Map // map[string]context.CancelFunc
}

// New creates an Agent and its backing job table.
func New(ctx context.Context, cfg HandlerConfig) (*Agent, error) {
	store, err := NewStore(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := domain.ClampPageSize(cfg.PageSize)
	startTime := cfg.StartTime
	if startTime.IsZero() {
		startTime = time.Now()
	}

	return &Agent{
		db:        cfg.DB,
		store:     store,
		pageSize:  pageSize,
		startTime: startTime,
		logger:    logger,
	}, nil
}

// NewHandler builds the agent's http.Handler. /health is open; the query
// lifecycle routes require X-Agent-Token.
func NewHandler(ctx context.Context, cfg HandlerConfig) (http.Handler, error) {
	a, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiter(cfg.RateLimit))
	}

	r.Get("/health", a.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AgentToken(cfg.AgentToken))
		r.Post("/queries", a.handleSubmit)
		r.Get("/queries/{queryID}", a.handleStatus)
		r.Get("/queries/{queryID}/results", a.handleResults)
		r.Delete("/queries/{queryID}", a.handleDelete)
	})

	return r, nil
}

func (a *Agent) handleSubmit(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())

	var req transport.SubmitQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "PARSE_ERROR", requestID)
		return
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "sql is required", "VALIDATION_ERROR", requestID)
		return
	}

	queryID := uuid.NewString()
	if err := a.store.CreateJob(r.Context(), queryID, req.SQL); err != nil {
		a.logger.Error("create job failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR", requestID)
		return
	}

	a.logger.Info("query accepted", "query_id", queryID, "request_id", requestID)
	go a.runJob(queryID, req.SQL)

	writeJSON(w, http.StatusAccepted, transport.SubmitQueryResponse{
		QueryID:   queryID,
		Status:    string(domain.StateQueued),
		RequestID: requestID,
	})
}

// runJob executes the submitted SQL in the background and records the
// terminal state. Cancel requests abort via the per-job context.
func (a *Agent) runJob(queryID, sqlText string) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancels.Store(queryID, cancel)
	defer a.cancels.Delete(queryID)
	defer cancel()

	_ = a.store.MarkRunning(ctx, queryID)

	columns, rows, err := a.execute(ctx, sqlText)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			_ = a.store.MarkCancelled(context.Background(), queryID)
			return
		}
		a.logger.Error("query failed", "query_id", queryID, "error", err)
		_ = a.store.MarkFailed(context.Background(), queryID, err.Error())
		return
	}

	a.logger.Info("query completed", "query_id", queryID, "row_count", len(rows))
	_ = a.store.MarkSucceeded(context.Background(), queryID, columns, rows)
}

func (a *Agent) execute(ctx context.Context, sqlText string) ([]string, [][]*string, error) {
	rows, err := a.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close() //nolint:errcheck

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]*string
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		cells := make([]*string, len(columns))
		for i, v := range values {
			cells[i] = cellValue(v)
		}
		out = append(out, cells)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

func (a *Agent) handleStatus(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())
	queryID := chi.URLParam(r, "queryID")

	job, err := a.store.GetJob(r.Context(), queryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("query %q not found", queryID), "NOT_FOUND", requestID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR", requestID)
		return
	}

	writeJSON(w, http.StatusOK, transport.QueryStatusResponse{
		QueryID:   job.ID,
		Status:    string(job.Status),
		Error:     job.Error,
		RequestID: requestID,
	})
}

// handleResults serves one page of results. The header row (column names)
// occupies position 0 of the paginated sequence, so it always lands on the
// first page exactly once.
func (a *Agent) handleResults(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())
	queryID := chi.URLParam(r, "queryID")

	job, err := a.store.GetJob(r.Context(), queryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("query %q not found", queryID), "NOT_FOUND", requestID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR", requestID)
		return
	}
	if job.Status != domain.StateSucceeded {
		writeError(w, http.StatusConflict,
			fmt.Sprintf("query %q is in state %s, results are only available after SUCCEEDED", queryID, job.Status),
			"NOT_READY", requestID)
		return
	}

	limit := a.pageSize
	if v := r.URL.Query().Get("max_results"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = domain.ClampPageSize(n)
		}
	}

	full := make([][]*string, 0, len(job.Rows)+1)
	if len(job.Columns) > 0 {
		header := make([]*string, len(job.Columns))
		for i := range job.Columns {
			header[i] = &job.Columns[i]
		}
		full = append(full, header)
	}
	full = append(full, job.Rows...)

	offset := domain.DecodePageToken(r.URL.Query().Get("page_token"))
	if offset > len(full) {
		offset = len(full)
	}
	end := offset + limit
	if end > len(full) {
		end = len(full)
	}

	writeJSON(w, http.StatusOK, transport.FetchResultsResponse{
		QueryID:       job.ID,
		Rows:          full[offset:end],
		NextPageToken: domain.NextPageToken(offset, limit, len(full)),
		RequestID:     requestID,
	})
}

func (a *Agent) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestIDFromContext(r.Context())
	queryID := chi.URLParam(r, "queryID")

	if _, err := a.store.GetJob(r.Context(), queryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("query %q not found", queryID), "NOT_FOUND", requestID)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR", requestID)
		return
	}

	if cancelRaw, ok := a.cancels.Load(queryID); ok {
		if cancelFn, ok := cancelRaw.(context.CancelFunc); ok {
			cancelFn()
		}
	}
	if err := a.store.DeleteJob(r.Context(), queryID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "STORE_ERROR", requestID)
		return
	}

	a.logger.Info("query deleted", "query_id", queryID, "request_id", requestID)
	writeJSON(w, http.StatusOK, transport.CancelQueryResponse{
		QueryID:   queryID,
		Status:    string(domain.StateCancelled),
		RequestID: requestID,
	})
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	var version string
	row := a.db.QueryRowContext(r.Context(), "SELECT sqlite_version()")
	_ = row.Scan(&version)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(a.startTime).Seconds()),
		"sqlite_version": version,
	})
}

// cellValue converts a scanned database value to a string cell. NULLs stay
// nil so absence survives onto the wire.
func cellValue(v interface{}) *string {
	if v == nil {
		return nil
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case []byte:
		s = string(val)
	case time.Time:
		s = val.UTC().Format(time.RFC3339)
	default:
		s = fmt.Sprintf("%v", val)
	}
	return &s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code, requestID string) {
	writeJSON(w, status, transport.ErrorResponse{Error: msg, Code: code, RequestID: requestID})
}
