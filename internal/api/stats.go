package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByMode        map[string]int `json:"by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	Pending       int            `json:"pending"`
	Executing     bool           `json:"executing"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.logger.Error("get job stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	snap := s.worker.Snapshot()
	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:         stats.Total,
		ByStatus:      stats.CountByStatus,
		ByMode:        stats.CountByMode,
		AvgDurationMS: stats.AvgDurationMS,
		Pending:       len(snap.Pending),
		Executing:     snap.Current != nil,
	})
}
