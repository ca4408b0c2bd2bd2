package model

import "time"

// Mode selects what a simulation computes.
type Mode string

// Simulation modes.
const (
	ModeDPS     Mode = "dps"
	ModeScaling Mode = "scaling"
)

// Delivery selects where a finished report is sent.
type Delivery string

// Delivery targets.
const (
	DeliveryDirectMessage Delivery = "dm"
	DeliveryChannel       Delivery = "channel"
)

// Job status constants.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusDropped   = "dropped"
)

// ParseMode maps a command name or alias onto a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "dps", "sim":
		return ModeDPS, true
	case "scaling", "statweights", "stats":
		return ModeScaling, true
	default:
		return "", false
	}
}

// ParseDelivery maps a delivery name onto a Delivery.
func ParseDelivery(s string) (Delivery, bool) {
	switch s {
	case "dm", "direct":
		return DeliveryDirectMessage, true
	case "channel":
		return DeliveryChannel, true
	default:
		return "", false
	}
}

// Submitter identifies who asked for a job and where replies go. It is
// supplied by the chat gateway for every command.
type Submitter struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ChannelID string `json:"channel_id"`

	// Admin reports the administrator capability in the originating guild.
	// Direct messages never carry it.
	Admin   bool `json:"admin"`
	InGuild bool `json:"in_guild"`
}

// Job is one simulation request. All fields are set once when the job is
// created and are never modified afterwards.
type Job struct {
	ID        string    `json:"id"`
	Submitter Submitter `json:"submitter"`
	Character string    `json:"-"`
	Mode      Mode      `json:"mode"`
	Delivery  Delivery  `json:"delivery"`
	CreatedAt time.Time `json:"created_at"`

	DisplayName string `json:"display_name"`
	Filename    string `json:"filename"`
	ProfilePath string `json:"-"`
	OutputPath  string `json:"-"`
}

// ReportName is the filename the report is delivered under.
func (j *Job) ReportName() string {
	return j.Filename + ".html"
}

// JobRecord is the history entry written when a job reaches a terminal state.
type JobRecord struct {
	ID            string     `json:"id"`
	SubmitterID   string     `json:"submitter_id"`
	SubmitterName string     `json:"submitter_name"`
	DisplayName   string     `json:"display_name"`
	Mode          Mode       `json:"mode"`
	Delivery      Delivery   `json:"delivery"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	DurationMS    *int       `json:"duration_ms,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// NewRecord starts a history entry for j with the given status.
func NewRecord(j *Job, status string) *JobRecord {
	return &JobRecord{
		ID:            j.ID,
		SubmitterID:   j.Submitter.ID,
		SubmitterName: j.Submitter.Name,
		DisplayName:   j.DisplayName,
		Mode:          j.Mode,
		Delivery:      j.Delivery,
		Status:        status,
		CreatedAt:     j.CreatedAt,
	}
}

// LogLine is one line of simulation output kept with a job's history.
type LogLine struct {
	JobID string `json:"job_id"`
	Seq   int    `json:"seq"`
	Line  string `json:"line"`
}
