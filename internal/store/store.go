// Package store keeps the history of finished simulation jobs. It never
// holds queued work; the queue lives only in memory.
package store

import (
	"context"
	"errors"

	"github.com/seantiz/simcbot/internal/model"
)

// ErrNotFound is returned when a job is not in the history.
var ErrNotFound = errors.New("job not found")

// Stats holds aggregate job statistics.
type Stats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMode   map[string]int `json:"count_by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for job history.
type Store interface {
	RecordJob(ctx context.Context, r *model.JobRecord) error
	GetJob(ctx context.Context, id string) (*model.JobRecord, error)
	ListJobs(ctx context.Context, limit, offset int) ([]*model.JobRecord, int, error)
	GetStats(ctx context.Context) (*Stats, error)
	InsertLogLines(ctx context.Context, jobID string, lines []string) error
	GetLogLines(ctx context.Context, jobID string) ([]model.LogLine, error)
	Close() error
}
