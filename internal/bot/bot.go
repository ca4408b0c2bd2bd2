package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/profile"
	"github.com/seantiz/simcbot/internal/queue"
)

// Reply texts.
const (
	URLNotSupportedText = "Character armory url is not supported (yet)!"
	EmptyQueueText      = "Queue is empty!"
	MissingCharacter    = "Paste the output of /simc after the command."
	NotAdminText        = "Only server administrators can use this command."
	AddonMissingText    = "Unable to send simc addon.\nAsk bot host to add it under 'files/simulationcraft.zip'"
	ClosedText          = "The bot is shutting down and is not accepting simulations."
)

// Queue is the part of the worker the commands need.
type Queue interface {
	Enqueue(job *model.Job) (int, error)
	Snapshot() queue.Snapshot
}

// Config holds command policy.
type Config struct {
	OwnerID   string
	SendAsDM  bool
	AddonPath string
}

// Bot executes chat commands.
type Bot struct {
	cfg      Config
	registry *params.Registry
	builder  *profile.Builder
	queue    Queue
	logger   *slog.Logger
}

// New creates a Bot.
func New(cfg Config, reg *params.Registry, builder *profile.Builder, q Queue, logger *slog.Logger) *Bot {
	return &Bot{
		cfg:      cfg,
		registry: reg,
		builder:  builder,
		queue:    q,
		logger:   logger,
	}
}

// Submission is a request to simulate a character.
type Submission struct {
	Submitter model.Submitter
	Character string
	Mode      model.Mode
	// Delivery overrides the configured policy when set.
	Delivery model.Delivery
}

// Receipt acknowledges an accepted submission.
type Receipt struct {
	Job   *model.Job
	Ahead int
	Reply string
}

// IsAdmin reports whether sub may use administrative commands. Direct
// messages never qualify, not even for the owner.
func (b *Bot) IsAdmin(sub model.Submitter) bool {
	if !sub.InGuild {
		return false
	}
	return sub.Admin || (b.cfg.OwnerID != "" && sub.ID == b.cfg.OwnerID)
}

// Submit validates s, creates the job and queues it.
func (b *Bot) Submit(s Submission) (*Receipt, error) {
	trimmed := strings.TrimSpace(s.Character)
	if trimmed == "" {
		return nil, replyError(ErrValidation, MissingCharacter)
	}
	if strings.HasPrefix(trimmed, "http") {
		return nil, replyError(ErrValidation, URLNotSupportedText)
	}
	if s.Mode != model.ModeDPS && s.Mode != model.ModeScaling {
		return nil, replyError(ErrValidation, fmt.Sprintf("Unknown simulation mode %q.", s.Mode))
	}

	job := b.builder.NewJob(s.Submitter, s.Character, s.Mode, b.deliveryFor(s))

	ahead, err := b.queue.Enqueue(job)
	if errors.Is(err, queue.ErrClosed) {
		return nil, replyError(queue.ErrClosed, ClosedText)
	}
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	return &Receipt{
		Job:   job,
		Ahead: ahead,
		Reply: fmt.Sprintf("Added your character to the queue, **%s**", s.Submitter.Name),
	}, nil
}

func (b *Bot) deliveryFor(s Submission) model.Delivery {
	d := s.Delivery
	if d == "" {
		d = model.DeliveryChannel
		if b.cfg.SendAsDM {
			d = model.DeliveryDirectMessage
		}
	}
	// Without an originating channel the only way back is a direct message.
	if d == model.DeliveryChannel && s.Submitter.ChannelID == "" {
		d = model.DeliveryDirectMessage
	}
	return d
}

// QueueText renders the queue for the queue command.
func (b *Bot) QueueText() string {
	snap := b.queue.Snapshot()
	if snap.Empty() {
		return EmptyQueueText
	}

	out := []string{"```"}
	if snap.Current != nil {
		out = append(out, "Currently processing: "+snap.Current.DisplayName)
	}
	if len(snap.Pending) > 0 {
		out = append(out, "\nQueued:\n")
		for i, j := range snap.Pending {
			out = append(out, fmt.Sprintf("%d. %s", i+1, j.DisplayName))
		}
	}
	out = append(out, "```")
	return strings.Join(out, "\n")
}

// Settings returns the user-visible settings in display order.
func (b *Bot) Settings() []params.Entry {
	return b.registry.Display(profile.OutputParam)
}

// SettingsText renders the settings command reply.
func (b *Bot) SettingsText() string {
	out := []string{"```"}
	for _, e := range b.Settings() {
		out = append(out, fmt.Sprintf("%s: %s", capitalize(e.Name), e.Value))
	}
	out = append(out, "```")
	return strings.Join(out, "\n")
}

// Addon returns the path of the addon archive.
func (b *Bot) Addon() (string, error) {
	info, err := os.Stat(b.cfg.AddonPath)
	if err != nil || info.IsDir() {
		return "", replyError(ErrAddonMissing, AddonMissingText)
	}
	return b.cfg.AddonPath, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
