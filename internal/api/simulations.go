package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/seantiz/simcbot/internal/bot"
	"github.com/seantiz/simcbot/internal/model"
)

const maxBodySize = 1 << 20 // 1 MB

// submitRequest is the JSON body for POST /v1/simulations.
type submitRequest struct {
	Character string `json:"character"`
	Mode      string `json:"mode"`
	Delivery  string `json:"delivery"`
}

type submitResponse struct {
	Job   *jobResponse `json:"job"`
	Ahead int          `json:"ahead"`
	Reply string       `json:"reply"`
}

// jobResponse describes a live or finished job. Position is set for live
// jobs only: 0 while executing, 1-based while pending.
type jobResponse struct {
	*model.JobRecord
	Position *int `json:"position,omitempty"`
}

func liveJob(j *model.Job, position int) *jobResponse {
	status := model.StatusQueued
	if position == 0 {
		status = model.StatusRunning
	}
	return &jobResponse{JobRecord: model.NewRecord(j, status), Position: &position}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sub, ok := submitterFromRequest(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, headerUserID+" header is required")
		return
	}

	var req submitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	mode := model.ModeDPS
	if req.Mode != "" {
		var ok bool
		if mode, ok = model.ParseMode(req.Mode); !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown mode %q", req.Mode))
			return
		}
	}

	var delivery model.Delivery
	if req.Delivery != "" {
		var ok bool
		if delivery, ok = model.ParseDelivery(req.Delivery); !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown delivery %q", req.Delivery))
			return
		}
	}

	receipt, err := s.bot.Submit(bot.Submission{
		Submitter: sub,
		Character: req.Character,
		Mode:      mode,
		Delivery:  delivery,
	})
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	job := &jobResponse{JobRecord: model.NewRecord(receipt.Job, model.StatusQueued)}
	if _, pos, ok := s.worker.Lookup(receipt.Job.ID); ok {
		job = liveJob(receipt.Job, pos)
	}

	s.writeJSON(w, http.StatusAccepted, submitResponse{
		Job:   job,
		Ahead: receipt.Ahead,
		Reply: receipt.Reply,
	})
}

type queueResponse struct {
	Current *jobResponse   `json:"current"`
	Pending []*jobResponse `json:"pending"`
	Text    string         `json:"text"`
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	snap := s.worker.Snapshot()

	resp := queueResponse{
		Pending: make([]*jobResponse, len(snap.Pending)),
		Text:    s.bot.QueueText(),
	}
	if snap.Current != nil {
		resp.Current = liveJob(snap.Current, 0)
	}
	for i, j := range snap.Pending {
		resp.Pending[i] = liveJob(j, i+1)
	}

	s.writeJSON(w, http.StatusOK, resp)
}
