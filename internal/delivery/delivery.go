// Package delivery sends finished reports and status texts back to the
// chat gateway, which forwards them to a direct message or a channel.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/seantiz/simcbot/internal/model"
)

// ErrArtifactMissing is returned when the executable exited cleanly but left
// no report behind.
var ErrArtifactMissing = errors.New("report file missing")

// Message types.
const (
	TypeReport = "report"
	TypeText   = "text"
)

// Deliverer sends results to a job's submitter.
type Deliverer interface {
	// DeliverReport sends the report at path under the job's report name.
	DeliverReport(ctx context.Context, job *model.Job, path string) error

	// DeliverText sends a plain text message.
	DeliverText(ctx context.Context, job *model.Job, text string) error
}

// Target is where the chat gateway should post a message.
type Target struct {
	Kind      model.Delivery `json:"kind"`
	UserID    string         `json:"user_id"`
	ChannelID string         `json:"channel_id,omitempty"`
}

// TargetFor resolves the delivery target of job.
func TargetFor(job *model.Job) Target {
	t := Target{Kind: job.Delivery, UserID: job.Submitter.ID}
	if job.Delivery == model.DeliveryChannel {
		t.ChannelID = job.Submitter.ChannelID
	}
	return t
}

// Message is the envelope handed to the chat gateway.
type Message struct {
	Type      string    `json:"type"`
	JobID     string    `json:"job_id"`
	Target    Target    `json:"target"`
	Text      string    `json:"text,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Content   []byte    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Error wraps a failed send.
type Error struct {
	JobID  string
	Target Target
	Err    error
}

func (e *Error) Error() string {
	if e.Target.Kind == model.DeliveryChannel {
		return fmt.Sprintf("deliver job %s to channel %s: %v", e.JobID, e.Target.ChannelID, e.Err)
	}
	return fmt.Sprintf("deliver job %s to user %s: %v", e.JobID, e.Target.UserID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// reportMessage reads the report at path into a message for job. Errors
// never carry path: their text is shown to the submitter.
func reportMessage(job *model.Job, path string, logger *slog.Logger) (Message, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("report file missing", "job_id", job.ID, "path", path)
		return Message{}, ErrArtifactMissing
	}
	if err != nil {
		logger.Error("read report", "job_id", job.ID, "path", path, "error", err)
		return Message{}, errors.New("read report failed")
	}
	return Message{
		Type:      TypeReport,
		JobID:     job.ID,
		Target:    TargetFor(job),
		Filename:  job.ReportName(),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func textMessage(job *model.Job, text string) Message {
	return Message{
		Type:      TypeText,
		JobID:     job.ID,
		Target:    TargetFor(job),
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}
