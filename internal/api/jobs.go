package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listHistoryResponse wraps the paginated history response.
type listHistoryResponse struct {
	Jobs   []*model.JobRecord `json:"jobs"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// handleGetJob answers from the live queue first, then from history.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if j, pos, ok := s.worker.Lookup(id); ok {
		s.writeJSON(w, http.StatusOK, liveJob(j, pos))
		return
	}

	rec, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job", "job_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	s.writeJSON(w, http.StatusOK, &jobResponse{JobRecord: rec})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	jobs, total, err := s.store.ListJobs(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	if jobs == nil {
		jobs = []*model.JobRecord{}
	}

	s.writeJSON(w, http.StatusOK, listHistoryResponse{
		Jobs:   jobs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
