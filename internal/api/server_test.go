package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/seantiz/simcbot/internal/bot"
	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/profile"
	"github.com/seantiz/simcbot/internal/queue"
	"github.com/seantiz/simcbot/internal/store"
)

// fakeWorker is an in-memory queue whose event streams are fed by tests.
type fakeWorker struct {
	mu      sync.Mutex
	current *model.Job
	pending []*model.Job
	streams map[string]chan queue.Event
}

func (f *fakeWorker) Enqueue(job *model.Job) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ahead := len(f.pending)
	if f.current != nil {
		ahead++
	}
	f.pending = append(f.pending, job)
	return ahead, nil
}

func (f *fakeWorker) Snapshot() queue.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return queue.Snapshot{Current: f.current, Pending: append([]*model.Job(nil), f.pending...)}
}

func (f *fakeWorker) Lookup(id string) (*model.Job, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current != nil && f.current.ID == id {
		return f.current, 0, true
	}
	for i, j := range f.pending {
		if j.ID == id {
			return j, i + 1, true
		}
	}
	return nil, 0, false
}

func (f *fakeWorker) Subscribe(id string) (<-chan queue.Event, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.streams == nil {
		f.streams = make(map[string]chan queue.Event)
	}
	ch := make(chan queue.Event, 16)
	f.streams[id] = ch
	return ch, func() {}
}

func (f *fakeWorker) stream(id string) chan queue.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[id]
}

// start moves the head of the pending list into current.
func (f *fakeWorker) start() *model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current, f.pending = f.pending[0], f.pending[1:]
	return f.current
}

const testOwner = "owner-1"

func newTestServer(t *testing.T) (*Server, *fakeWorker) {
	t.Helper()
	return newTestServerWithAddon(t, filepath.Join(t.TempDir(), "files", "simulationcraft.zip"))
}

func newTestServerWithAddon(t *testing.T, addonPath string) (*Server, *fakeWorker) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	reg, err := params.NewRegistry(
		params.Parameter{Name: profile.OutputParam, Value: params.String("out.html")},
		params.Bounded(profile.ThreadsParam, 1, 1, 4),
		params.Bounded(profile.IterationsParam, 5000, 500, 20000),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	dir := t.TempDir()
	builder := profile.NewBuilder(reg, filepath.Join(dir, "profiles"), filepath.Join(dir, "reports"))
	fw := &fakeWorker{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	b := bot.New(bot.Config{
		OwnerID:   testOwner,
		AddonPath: addonPath,
	}, reg, builder, fw, logger)

	return NewServer(":0", b, fw, s, logger), fw
}

// asUser sets the identity headers of a guild member.
func asUser(req *http.Request, id string, admin bool) {
	req.Header.Set(headerUserID, id)
	req.Header.Set(headerUserName, "user "+id)
	req.Header.Set(headerChannelID, "chan-1")
	req.Header.Set(headerGuild, "true")
	if admin {
		req.Header.Set(headerAdmin, "true")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	var reqID string
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		reqID = r.Header.Get("X-Request-Id")
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("GET", ts.URL+"/test", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if reqID != "abc-123" {
		t.Errorf("request id = %q, want %q", reqID, "abc-123")
	}
}

func TestPanicRecovery(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest("OPTIONS", ts.URL+"/test", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS /test: %v", err)
	}
	defer resp.Body.Close()

	if v := resp.Header.Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
}

func TestSubmitterFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    model.Submitter
		ok      bool
	}{
		{name: "missing id", headers: map[string]string{headerUserName: "x"}, ok: false},
		{
			name:    "guild admin",
			headers: map[string]string{headerUserID: "1", headerUserName: "thrall", headerChannelID: "c", headerGuild: "true", headerAdmin: "true"},
			want:    model.Submitter{ID: "1", Name: "thrall", ChannelID: "c", InGuild: true, Admin: true},
			ok:      true,
		},
		{
			name:    "admin flag ignored outside guild",
			headers: map[string]string{headerUserID: "1", headerAdmin: "true"},
			want:    model.Submitter{ID: "1", Name: "1"},
			ok:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			got, ok := submitterFromRequest(req)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("submitter = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// getJSON issues a GET, checks the status and decodes the body into v when
// v is non-nil.
func getJSON(t *testing.T, url string, wantStatus int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	decodeResponse(t, resp, wantStatus, v)
}

// doJSON sends body as JSON with the identity headers of userID. An empty
// userID sends no identity.
func doJSON(t *testing.T, method, url, userID string, admin bool, body string, wantStatus int, v any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		asUser(req, userID, admin)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	decodeResponse(t, resp, wantStatus, v)
}

func decodeResponse(t *testing.T, resp *http.Response, wantStatus int, v any) {
	t.Helper()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, wantStatus, body)
	}
	if v == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
