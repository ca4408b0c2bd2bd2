package api

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
	Busy    bool   `json:"busy"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.worker.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:  "ok",
		Pending: len(snap.Pending),
		Busy:    snap.Current != nil,
	}); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}
