package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/simcbot/internal/params"
)

type settingsResponse struct {
	Settings []params.Entry `json:"settings"`
	Text     string         `json:"text"`
}

type settingResponse struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Min   *int   `json:"min,omitempty"`
	Max   *int   `json:"max,omitempty"`
	Reply string `json:"reply"`
}

// putSettingRequest is the JSON body for PUT /v1/settings/{name}. Value is
// kept raw so that numbers and strings are both accepted.
type putSettingRequest struct {
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleListSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, settingsResponse{
		Settings: s.bot.Settings(),
		Text:     s.bot.SettingsText(),
	})
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	sub, _ := submitterFromRequest(r)
	name := chi.URLParam(r, "name")

	p, reply, err := s.bot.Setting(sub, name)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSettingResponse(p, reply))
}

func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	sub, ok := submitterFromRequest(r)
	if !ok {
		s.writeError(w, http.StatusBadRequest, headerUserID+" header is required")
		return
	}
	name := chi.URLParam(r, "name")

	var req putSettingRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	raw := string(req.Value)
	var str string
	if err := json.Unmarshal(req.Value, &str); err == nil {
		raw = str
	}

	p, reply, err := s.bot.SetSetting(sub, name, raw)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newSettingResponse(p, reply))
}

func newSettingResponse(p params.Parameter, reply string) settingResponse {
	return settingResponse{
		Name:  p.Name,
		Value: p.Value.String(),
		Min:   p.Min,
		Max:   p.Max,
		Reply: reply,
	}
}
