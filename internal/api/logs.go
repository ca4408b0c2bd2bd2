package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/queue"
	"github.com/seantiz/simcbot/internal/store"
)

// handleStreamEvents streams a live job's events as SSE. Output lines are
// sent as plain data frames; state changes as named events with a JSON
// payload. Finished jobs get an immediate done event.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, pos, live := s.worker.Lookup(id)
	if !live {
		if _, err := s.store.GetJob(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "job not found")
				return
			}
			s.logger.Error("get job for events", "job_id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to get job")
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if !live {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, "done", "stream complete")
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// A job that finished since Lookup has a closed topic, so the loop below
	// ends at once.
	ch, unsub := s.worker.Subscribe(id)
	defer unsub()

	sseStreams.Inc()
	defer sseStreams.Dec()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)

	initial := queue.Event{Type: queue.EventQueued, JobID: job.ID, Position: pos}
	if pos == 0 {
		initial.Type = queue.EventRunning
	}
	if err := writeEvent(w, initial); err != nil {
		return
	}
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeEvent(w, ev); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, ev queue.Event) error {
	if ev.Type == queue.EventOutput {
		return writeSSEData(w, ev.Line)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return writeSSEEvent(w, ev.Type, string(data))
}

// outputResponse is the JSON response for GET /v1/jobs/{id}/output.
type outputResponse struct {
	JobID string          `json:"job_id"`
	Lines []model.LogLine `json:"lines"`
}

func (s *Server) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	_, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job for output", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	lines, err := s.store.GetLogLines(r.Context(), id)
	if err != nil {
		s.logger.Error("get output lines", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get output")
		return
	}
	if lines == nil {
		lines = []model.LogLine{}
	}

	s.writeJSON(w, http.StatusOK, outputResponse{JobID: id, Lines: lines})
}

// writeSSEData writes a line as an SSE data event. Multi-line strings are
// split so that each segment gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, line string) error {
	for seg := range strings.SplitSeq(line, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
