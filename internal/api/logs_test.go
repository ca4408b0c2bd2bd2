package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/queue"
)

func TestStreamEventsNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestStreamEventsFinishedJob(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := &model.JobRecord{
		ID:        model.NewID(),
		Mode:      model.ModeDPS,
		Delivery:  model.DeliveryDirectMessage,
		Status:    model.StatusCompleted,
		CreatedAt: time.Now().UTC(),
	}
	if err := srv.store.RecordJob(context.Background(), rec); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/" + rec.ID + "/events")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	lines := readSSELines(t, resp)
	if len(lines) < 2 || lines[0] != "event: done" {
		t.Errorf("lines = %q, want a done event", lines)
	}
}

func TestStreamEventsLiveJob(t *testing.T) {
	srv, fw := newTestServer(t)

	job := &model.Job{ID: model.NewID(), Mode: model.ModeDPS, CreatedAt: time.Now().UTC()}
	if _, err := fw.Enqueue(job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	fw.start()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/v1/jobs/"+job.ID+"/events", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// Headers arrive after the handler subscribed.
	ch := fw.stream(job.ID)
	if ch == nil {
		t.Fatal("handler did not subscribe")
	}
	ch <- queue.Event{Type: queue.EventOutput, JobID: job.ID, Line: "Generating baseline"}
	ch <- queue.Event{Type: queue.EventOutput, JobID: job.ID, Line: "Simulating 5000 iterations"}
	ch <- queue.Event{Type: queue.EventCompleted, JobID: job.ID}
	close(ch)

	var data, events []string
	for _, line := range readSSELines(t, resp) {
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = append(data, v)
		}
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			events = append(events, v)
		}
	}

	wantEvents := []string{queue.EventRunning, queue.EventCompleted, "done"}
	if strings.Join(events, ",") != strings.Join(wantEvents, ",") {
		t.Errorf("events = %q, want %q", events, wantEvents)
	}
	if !slices.Contains(data, "Generating baseline") || !slices.Contains(data, "Simulating 5000 iterations") {
		t.Errorf("data = %q, missing output lines", data)
	}
}

func TestGetOutput(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()

	rec := &model.JobRecord{
		ID:        model.NewID(),
		Mode:      model.ModeDPS,
		Delivery:  model.DeliveryDirectMessage,
		Status:    model.StatusCompleted,
		CreatedAt: time.Now().UTC(),
	}
	if err := srv.store.RecordJob(ctx, rec); err != nil {
		t.Fatalf("RecordJob: %v", err)
	}
	if err := srv.store.InsertLogLines(ctx, rec.ID, []string{"one", "two"}); err != nil {
		t.Fatalf("InsertLogLines: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var out outputResponse
	getJSON(t, ts.URL+"/v1/jobs/"+rec.ID+"/output", http.StatusOK, &out)
	if len(out.Lines) != 2 || out.Lines[0].Line != "one" || out.Lines[1].Line != "two" {
		t.Errorf("lines = %+v, want [one two]", out.Lines)
	}

	getJSON(t, ts.URL+"/v1/jobs/missing/output", http.StatusNotFound, nil)
}

func TestWriteSSEDataMultiLine(t *testing.T) {
	w := httptest.NewRecorder()
	if err := writeSSEData(w, "line1\nline2\nline3"); err != nil {
		t.Fatalf("writeSSEData: %v", err)
	}

	want := "data: line1\ndata: line2\ndata: line3\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriteSSEEvent(t *testing.T) {
	w := httptest.NewRecorder()
	if err := writeSSEEvent(w, "done", "stream complete"); err != nil {
		t.Fatalf("writeSSEEvent: %v", err)
	}

	want := "event: done\ndata: stream complete\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// readSSELines reads non-empty lines until the stream ends.
func readSSELines(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var lines []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
