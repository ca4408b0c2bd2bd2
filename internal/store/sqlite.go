package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seantiz/simcbot/internal/model"

	_ "modernc.org/sqlite"
)

const createJobsTable = `
CREATE TABLE IF NOT EXISTS jobs (
    id             TEXT PRIMARY KEY,
    submitter_id   TEXT NOT NULL,
    submitter_name TEXT NOT NULL,
    display_name   TEXT NOT NULL,
    mode           TEXT NOT NULL,
    delivery       TEXT NOT NULL,
    status         TEXT NOT NULL,
    error          TEXT NOT NULL DEFAULT '',
    duration_ms    INTEGER,
    created_at     DATETIME NOT NULL,
    started_at     DATETIME,
    finished_at    DATETIME
)`

const createLogLinesTable = `
CREATE TABLE IF NOT EXISTS job_output (
    job_id TEXT NOT NULL,
    seq    INTEGER NOT NULL,
    line   TEXT NOT NULL,
    PRIMARY KEY (job_id, seq)
)`

const jobColumns = `id, submitter_id, submitter_name, display_name, mode, delivery,
	status, error, duration_ms, created_at, started_at, finished_at`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createJobsTable, createLogLinesTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordJob inserts or replaces the history entry for r.ID.
func (s *SQLiteStore) RecordJob(ctx context.Context, r *model.JobRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SubmitterID, r.SubmitterName, r.DisplayName, r.Mode, r.Delivery,
		r.Status, r.Error, r.DurationMS, r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*model.JobRecord, error) {
	r := &model.JobRecord{}
	err := row.Scan(
		&r.ID, &r.SubmitterID, &r.SubmitterName, &r.DisplayName, &r.Mode, &r.Delivery,
		&r.Status, &r.Error, &r.DurationMS, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	)
	return r, err
}

// GetJob retrieves a history entry by job ID.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.JobRecord, error) {
	r, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return r, nil
}

// ListJobs returns a page of history ordered by created_at DESC, along with
// the total number of entries.
func (s *SQLiteStore) ListJobs(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.JobRecord
	for rows.Next() {
		r, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, total, nil
}

// GetStats aggregates the job history.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		CountByStatus: make(map[string]int),
		CountByMode:   make(map[string]int),
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var avg sql.NullFloat64
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM jobs",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("aggregate jobs: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	if err := countBy(ctx, tx, "status", stats.CountByStatus); err != nil {
		return nil, err
	}
	if err := countBy(ctx, tx, "mode", stats.CountByMode); err != nil {
		return nil, err
	}

	return stats, nil
}

// countBy fills dst with row counts grouped by column, which must be a
// trusted column name.
func countBy(ctx context.Context, tx *sql.Tx, column string, dst map[string]int) error {
	rows, err := tx.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM jobs GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		dst[key] = n
	}
	return rows.Err()
}

// InsertLogLines appends output lines for jobID, numbering them after any
// lines already stored.
func (s *SQLiteStore) InsertLogLines(ctx context.Context, jobID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq) + 1, 0) FROM job_output WHERE job_id = ?", jobID,
	).Scan(&next); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO job_output (job_id, seq, line) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, line := range lines {
		if _, err := stmt.ExecContext(ctx, jobID, next+i, line); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lines: %w", err)
	}
	return nil
}

// GetLogLines returns the stored output of jobID in order.
func (s *SQLiteStore) GetLogLines(ctx context.Context, jobID string) ([]model.LogLine, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT job_id, seq, line FROM job_output WHERE job_id = ? ORDER BY seq", jobID)
	if err != nil {
		return nil, fmt.Errorf("get log lines: %w", err)
	}
	defer rows.Close()

	var lines []model.LogLine
	for rows.Next() {
		var l model.LogLine
		if err := rows.Scan(&l.JobID, &l.Seq, &l.Line); err != nil {
			return nil, fmt.Errorf("scan log line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log lines: %w", err)
	}
	return lines, nil
}
