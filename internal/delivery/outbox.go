package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/seantiz/simcbot/internal/model"
)

// Outbox writes messages into a directory, one JSON envelope per message.
// Reports are additionally copied next to the envelope under their delivery
// name so they can be inspected directly.
type Outbox struct {
	dir    string
	logger *slog.Logger
}

// Compile-time interface satisfaction check.
var _ Deliverer = (*Outbox)(nil)

// NewOutbox creates an outbox rooted at dir.
func NewOutbox(dir string, logger *slog.Logger) (*Outbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}
	return &Outbox{dir: dir, logger: logger}, nil
}

func (o *Outbox) DeliverReport(_ context.Context, job *model.Job, path string) error {
	msg, err := reportMessage(job, path, o.logger)
	if err != nil {
		observe(TypeReport, err)
		return err
	}

	if err := os.WriteFile(filepath.Join(o.dir, job.ID+"-"+msg.Filename), msg.Content, 0o644); err != nil {
		err = &Error{JobID: job.ID, Target: msg.Target, Err: err}
		observe(TypeReport, err)
		return err
	}
	err = o.write(msg, job.ID+"-report.json")
	observe(TypeReport, err)
	return err
}

func (o *Outbox) DeliverText(_ context.Context, job *model.Job, text string) error {
	msg := textMessage(job, text)
	name := fmt.Sprintf("%s-text-%d.json", job.ID, msg.CreatedAt.UnixNano())
	err := o.write(msg, name)
	observe(TypeText, err)
	return err
}

func (o *Outbox) write(msg Message, name string) error {
	data, err := json.MarshalIndent(msg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := os.WriteFile(filepath.Join(o.dir, name), data, 0o644); err != nil {
		return &Error{JobID: msg.JobID, Target: msg.Target, Err: err}
	}

	o.logger.Debug("message written to outbox",
		"job_id", msg.JobID,
		"type", msg.Type,
		"file", name,
	)
	return nil
}
