package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"queryrunner/internal/domain"
)

// Job is the durable state of one submitted query.
type Job struct {
	ID          string
	SQLText     string
	Status      domain.ExecutionState
	Error       string
	Columns     []string
	Rows        [][]*string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Store persists query jobs and their materialized results in SQLite.
// Result rows are stored as JSON; nil cells survive the round trip as JSON
// null. Callers sharing an in-memory database must cap the pool at one
// connection, or each pooled connection sees its own empty database.
type Store struct {
	db *sql.DB
}

// NewStore creates the job table if needed and returns a Store over db.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	const schema = `
		CREATE TABLE IF NOT EXISTS query_jobs (
			id           TEXT PRIMARY KEY,
			sql_text     TEXT NOT NULL,
			status       TEXT NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			columns_json TEXT NOT NULL DEFAULT '[]',
			rows_json    TEXT NOT NULL DEFAULT '[]',
			created_at   TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create query_jobs table: %w", err)
	}
	return &Store{db: db}, nil
}

// CreateJob inserts a new job in QUEUED state.
func (s *Store) CreateJob(ctx context.Context, id, sqlText string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO query_jobs (id, sql_text, status, created_at) VALUES (?, ?, ?, ?)`,
		id, sqlText, string(domain.StateQueued), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// MarkRunning transitions the job to RUNNING.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.StateRunning, "")
}

// MarkSucceeded stores the materialized result and transitions to SUCCEEDED.
func (s *Store) MarkSucceeded(ctx context.Context, id string, columns []string, rows [][]*string) error {
	colsJSON, err := json.Marshal(columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rows: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE query_jobs SET status = ?, columns_json = ?, rows_json = ?, completed_at = ? WHERE id = ?`,
		string(domain.StateSucceeded), string(colsJSON), string(rowsJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	return nil
}

// MarkFailed transitions the job to FAILED with the error message.
func (s *Store) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.setStatus(ctx, id, domain.StateFailed, errMsg)
}

// MarkCancelled transitions the job to CANCELLED.
func (s *Store) MarkCancelled(ctx context.Context, id string) error {
	return s.setStatus(ctx, id, domain.StateCancelled, "")
}

// GetJob fetches a job by id. Returns sql.ErrNoRows when it does not exist.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sql_text, status, error, columns_json, rows_json, created_at, completed_at
		 FROM query_jobs WHERE id = ?`, id)

	var (
		job         Job
		status      string
		colsJSON    string
		rowsJSON    string
		completedAt sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.SQLText, &status, &job.Error, &colsJSON, &rowsJSON, &job.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	job.Status = domain.ExecutionState(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if err := json.Unmarshal([]byte(colsJSON), &job.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	if err := json.Unmarshal([]byte(rowsJSON), &job.Rows); err != nil {
		return nil, fmt.Errorf("unmarshal rows: %w", err)
	}
	return &job, nil
}

// DeleteJob removes a job and its stored results.
func (s *Store) DeleteJob(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM query_jobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}

func (s *Store) setStatus(ctx context.Context, id string, status domain.ExecutionState, errMsg string) error {
	var completedAt interface{}
	if status.Terminal() {
		completedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE query_jobs SET status = ?, error = ?, completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), errMsg, completedAt, id)
	if err != nil {
		return fmt.Errorf("set status %s: %w", status, err)
	}
	return nil
}
