package bot

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/profile"
	"github.com/seantiz/simcbot/internal/queue"
)

type fakeQueue struct {
	mu      sync.Mutex
	current *model.Job
	pending []*model.Job
	err     error
}

func (q *fakeQueue) Enqueue(job *model.Job) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	ahead := len(q.pending)
	if q.current != nil {
		ahead++
	}
	q.pending = append(q.pending, job)
	return ahead, nil
}

func (q *fakeQueue) Snapshot() queue.Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Snapshot{Current: q.current, Pending: append([]*model.Job(nil), q.pending...)}
}

func newTestBot(t *testing.T, cfg Config) (*Bot, *fakeQueue, *params.Registry) {
	t.Helper()
	reg, err := params.NewRegistry(
		params.Parameter{Name: profile.OutputParam, Value: params.String("out.html")},
		params.Bounded(profile.ThreadsParam, 1, 1, 4),
		params.Bounded(profile.IterationsParam, 5000, 500, 20000),
	)
	require.NoError(t, err)

	dir := t.TempDir()
	builder := profile.NewBuilder(reg, filepath.Join(dir, "profiles"), filepath.Join(dir, "reports"))
	q := &fakeQueue{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(cfg, reg, builder, q, logger), q, reg
}

var (
	member = model.Submitter{ID: "u-1", Name: "jaina", ChannelID: "c-1", InGuild: true}
	admin  = model.Submitter{ID: "u-2", Name: "thrall", ChannelID: "c-1", InGuild: true, Admin: true}
	owner  = model.Submitter{ID: "owner", Name: "host", ChannelID: "c-1", InGuild: true}
)

func TestSubmit(t *testing.T) {
	b, q, _ := newTestBot(t, Config{})

	r, err := b.Submit(Submission{Submitter: member, Character: "mage=Jaina\nlevel=90", Mode: model.ModeDPS})
	require.NoError(t, err)

	assert.Equal(t, "Added your character to the queue, **jaina**", r.Reply)
	assert.Equal(t, 0, r.Ahead)
	assert.Equal(t, "Jaina", r.Job.DisplayName)
	assert.Equal(t, model.DeliveryChannel, r.Job.Delivery)
	require.Len(t, q.pending, 1)
	assert.Same(t, r.Job, q.pending[0])

	r2, err := b.Submit(Submission{Submitter: admin, Character: "warrior=Garrosh", Mode: model.ModeScaling})
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Ahead)
	assert.Equal(t, model.ModeScaling, r2.Job.Mode)
}

func TestSubmitKeepsCharacterTextVerbatim(t *testing.T) {
	b, _, _ := newTestBot(t, Config{})

	raw := "mage=Jaina\nlevel=90\n\n"
	r, err := b.Submit(Submission{Submitter: member, Character: raw, Mode: model.ModeDPS})
	require.NoError(t, err)

	assert.Equal(t, raw, r.Job.Character)
	assert.Equal(t, "Jaina", r.Job.DisplayName)
}

func TestSubmitRejects(t *testing.T) {
	tests := []struct {
		name      string
		character string
		mode      model.Mode
		reply     string
	}{
		{name: "armory url", character: "https://worldofwarcraft.com/en-gb/character/eu/x/y", mode: model.ModeDPS, reply: URLNotSupportedText},
		{name: "plain http", character: "  http://example.com", mode: model.ModeDPS, reply: URLNotSupportedText},
		{name: "empty", character: " \n ", mode: model.ModeDPS, reply: MissingCharacter},
		{name: "unknown mode", character: "mage=Jaina", mode: "heal", reply: `Unknown simulation mode "heal".`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, q, _ := newTestBot(t, Config{})

			_, err := b.Submit(Submission{Submitter: member, Character: tt.character, Mode: tt.mode})
			require.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.reply, err.Error())
			assert.Empty(t, q.pending)
		})
	}
}

func TestSubmitClosedQueue(t *testing.T) {
	b, q, _ := newTestBot(t, Config{})
	q.err = queue.ErrClosed

	_, err := b.Submit(Submission{Submitter: member, Character: "mage=Jaina", Mode: model.ModeDPS})
	require.ErrorIs(t, err, queue.ErrClosed)
	assert.Equal(t, ClosedText, err.Error())
}

func TestSubmitDeliveryPolicy(t *testing.T) {
	tests := []struct {
		name     string
		sendDM   bool
		sub      model.Submitter
		override model.Delivery
		want     model.Delivery
	}{
		{name: "default channel", sub: member, want: model.DeliveryChannel},
		{name: "configured dm", sendDM: true, sub: member, want: model.DeliveryDirectMessage},
		{name: "override to channel", sendDM: true, sub: member, override: model.DeliveryChannel, want: model.DeliveryChannel},
		{name: "override to dm", sub: member, override: model.DeliveryDirectMessage, want: model.DeliveryDirectMessage},
		{name: "no channel falls back to dm", sub: model.Submitter{ID: "u-9", Name: "dm user"}, want: model.DeliveryDirectMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _ := newTestBot(t, Config{SendAsDM: tt.sendDM})

			r, err := b.Submit(Submission{Submitter: tt.sub, Character: "mage=Jaina", Mode: model.ModeDPS, Delivery: tt.override})
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Job.Delivery)
		})
	}
}

func TestIsAdmin(t *testing.T) {
	b, _, _ := newTestBot(t, Config{OwnerID: "owner"})

	assert.False(t, b.IsAdmin(member))
	assert.True(t, b.IsAdmin(admin))
	assert.True(t, b.IsAdmin(owner))

	dmOwner := owner
	dmOwner.InGuild = false
	assert.False(t, b.IsAdmin(dmOwner), "direct messages never carry admin rights")

	dmAdmin := admin
	dmAdmin.InGuild = false
	assert.False(t, b.IsAdmin(dmAdmin))
}

func TestQueueText(t *testing.T) {
	b, q, _ := newTestBot(t, Config{})
	assert.Equal(t, EmptyQueueText, b.QueueText())

	q.current = &model.Job{DisplayName: "Thrall"}
	assert.Equal(t, "```\nCurrently processing: Thrall\n```", b.QueueText())

	q.pending = []*model.Job{{DisplayName: "Jaina"}, {DisplayName: "Anduin"}}
	assert.Equal(t, "```\nCurrently processing: Thrall\n\nQueued:\n\n1. Jaina\n2. Anduin\n```", b.QueueText())

	q.current = nil
	assert.Equal(t, "```\n\nQueued:\n\n1. Jaina\n2. Anduin\n```", b.QueueText())
}

func TestSettingsText(t *testing.T) {
	b, _, reg := newTestBot(t, Config{})
	assert.Equal(t, "```\nThreads: 1\nIterations: 5000\n```", b.SettingsText())

	require.NoError(t, reg.Set(profile.IterationsParam, params.Int(10000)))
	assert.Equal(t, []params.Entry{{Name: "threads", Value: "1"}, {Name: "iterations", Value: "10000"}}, b.Settings())
}

func TestSetting(t *testing.T) {
	b, _, _ := newTestBot(t, Config{OwnerID: "owner"})

	_, reply, err := b.Setting(member, profile.IterationsParam)
	require.NoError(t, err)
	assert.Equal(t, "Currently set to 5000 iterations.", reply)

	_, _, err = b.Setting(member, profile.ThreadsParam)
	require.ErrorIs(t, err, ErrPermission)
	assert.Equal(t, NotAdminText, err.Error())

	p, reply, err := b.Setting(owner, profile.ThreadsParam)
	require.NoError(t, err)
	assert.Equal(t, "Currently set to 1 threads.", reply)
	assert.Equal(t, 4, *p.Max)

	_, _, err = b.Setting(admin, profile.OutputParam)
	assert.ErrorIs(t, err, params.ErrNotFound)

	_, _, err = b.Setting(admin, "seed")
	assert.ErrorIs(t, err, params.ErrNotFound)
	assert.Equal(t, `Unknown setting "seed".`, err.Error())
}

func TestSetSetting(t *testing.T) {
	tests := []struct {
		name    string
		sub     model.Submitter
		param   string
		raw     string
		reply   string
		wantErr error
	}{
		{name: "iterations by anyone", sub: member, param: profile.IterationsParam, raw: "10000", reply: "Number of iterations set to 10000."},
		{name: "iterations too low", sub: member, param: profile.IterationsParam, raw: "100", reply: "Number of iterations must be >=500!", wantErr: params.ErrOutOfRange},
		{name: "iterations too high", sub: member, param: profile.IterationsParam, raw: "50000", reply: "Number of iterations must be <=20000!", wantErr: params.ErrOutOfRange},
		{name: "iterations not a number", sub: member, param: profile.IterationsParam, raw: "lots", reply: "Number of iterations must be a whole number!", wantErr: params.ErrTypeMismatch},
		{name: "threads by admin", sub: admin, param: profile.ThreadsParam, raw: "4", reply: "Number of threads set to 4."},
		{name: "threads by owner", sub: owner, param: profile.ThreadsParam, raw: "2", reply: "Number of threads set to 2."},
		{name: "threads by member", sub: member, param: profile.ThreadsParam, raw: "2", reply: NotAdminText, wantErr: ErrPermission},
		{name: "threads above max", sub: admin, param: profile.ThreadsParam, raw: "8", reply: "Number of threads must be <=4!", wantErr: params.ErrOutOfRange},
		{name: "output path hidden", sub: admin, param: profile.OutputParam, raw: "x.html", reply: `Unknown setting "html".`, wantErr: params.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, reg := newTestBot(t, Config{OwnerID: "owner"})
			before := reg.Render()

			_, reply, err := b.SetSetting(tt.sub, tt.param, tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.reply, err.Error())
				assert.Equal(t, before, reg.Render(), "registry must be unchanged on error")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.reply, reply)

			p, err := reg.Get(tt.param)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, p.Value.String())
		})
	}
}

func TestAddon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulationcraft.zip")

	b, _, _ := newTestBot(t, Config{AddonPath: path})
	_, err := b.Addon()
	require.ErrorIs(t, err, ErrAddonMissing)
	assert.Equal(t, AddonMissingText, err.Error())

	require.NoError(t, os.WriteFile(path, []byte("PK"), 0o644))
	got, err := b.Addon()
	require.NoError(t, err)
	assert.Equal(t, path, got)
}
