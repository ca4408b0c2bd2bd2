package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/params"
)

const (
	// OutputParam is the parameter naming the report file the executable writes.
	OutputParam = "html"

	ThreadsParam    = "threads"
	IterationsParam = "iterations"

	// ScaleFactorsDirective asks the executable for stat weights.
	ScaleFactorsDirective = "calculate_scale_factors=1"
)

// Builder creates jobs and renders their profiles from the current settings.
type Builder struct {
	registry   *params.Registry
	profileDir string
	reportDir  string
}

// NewBuilder creates a builder that places profiles under profileDir and
// reports under reportDir.
func NewBuilder(reg *params.Registry, profileDir, reportDir string) *Builder {
	return &Builder{
		registry:   reg,
		profileDir: profileDir,
		reportDir:  reportDir,
	}
}

// NewJob creates a job and computes its derived fields. The job is immutable
// from here on, so queue listings and execution agree on names and paths.
func (b *Builder) NewJob(sub model.Submitter, character string, mode model.Mode, delivery model.Delivery) *model.Job {
	id := model.NewID()
	name := DisplayName(character, sub.Name)
	filename := SanitizeFilename(name)

	return &model.Job{
		ID:          id,
		Submitter:   sub,
		Character:   character,
		Mode:        mode,
		Delivery:    delivery,
		CreatedAt:   time.Now().UTC(),
		DisplayName: name,
		Filename:    filename,
		ProfilePath: absPath(filepath.Join(b.profileDir, id+"-"+filename+".simc")),
		OutputPath:  absPath(filepath.Join(b.reportDir, id+".html")),
	}
}

// Render builds the profile for job from a snapshot of the current settings,
// with the output parameter pointing at the job's own report path.
func (b *Builder) Render(job *model.Job) string {
	snap := b.registry.Snapshot().With(OutputParam, params.String(job.OutputPath))
	return Build(job, snap)
}

// Build concatenates the settings header, the scaling directive when the job
// asks for stat weights, a blank line and the character text verbatim.
func Build(job *model.Job, snap params.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(snap.Render())
	if job.Mode == model.ModeScaling {
		sb.WriteString("\n")
		sb.WriteString(ScaleFactorsDirective)
	}
	sb.WriteString("\n\n")
	sb.WriteString(job.Character)
	return sb.String()
}

// Persist writes text to the job's profile path, creating parent directories
// as needed, and returns the path written.
func Persist(job *model.Job, text string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(job.ProfilePath), 0o755); err != nil {
		return "", fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(job.ProfilePath, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write profile: %w", err)
	}
	return job.ProfilePath, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
