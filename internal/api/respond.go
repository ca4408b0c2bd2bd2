package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/seantiz/simcbot/internal/bot"
	"github.com/seantiz/simcbot/internal/model"
	"github.com/seantiz/simcbot/internal/params"
	"github.com/seantiz/simcbot/internal/queue"
)

// Identity headers set by the chat gateway on every command request.
const (
	headerUserID    = "X-Simcbot-User-Id"
	headerUserName  = "X-Simcbot-User-Name"
	headerChannelID = "X-Simcbot-Channel-Id"
	headerGuild     = "X-Simcbot-Guild"
	headerAdmin     = "X-Simcbot-Admin"
)

// submitterFromRequest reads the caller identity. Admin is only honoured for
// messages sent in a guild.
func submitterFromRequest(r *http.Request) (model.Submitter, bool) {
	sub := model.Submitter{
		ID:        r.Header.Get(headerUserID),
		Name:      r.Header.Get(headerUserName),
		ChannelID: r.Header.Get(headerChannelID),
	}
	if sub.ID == "" {
		return sub, false
	}
	if sub.Name == "" {
		sub.Name = sub.ID
	}
	sub.InGuild, _ = strconv.ParseBool(r.Header.Get(headerGuild))
	if sub.InGuild {
		sub.Admin, _ = strconv.ParseBool(r.Header.Get(headerAdmin))
	}
	return sub, true
}

// writeJSON writes v as a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeCommandError maps a command failure to a status code. The body
// carries the reply text meant for the chat user.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	var berr *bot.Error
	if !errors.As(err, &berr) {
		commandRejections.WithLabelValues(reasonInternal).Inc()
		s.logger.Error("command failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status, reason := commandStatus(err)
	commandRejections.WithLabelValues(reason).Inc()
	s.writeError(w, status, berr.Reply)
}

func commandStatus(err error) (int, string) {
	switch {
	case errors.Is(err, bot.ErrValidation):
		return http.StatusBadRequest, reasonValidation
	case errors.Is(err, bot.ErrPermission):
		return http.StatusForbidden, reasonPermission
	case errors.Is(err, params.ErrNotFound), errors.Is(err, bot.ErrAddonMissing):
		return http.StatusNotFound, reasonNotFound
	case errors.Is(err, params.ErrOutOfRange):
		return http.StatusUnprocessableEntity, reasonOutOfRange
	case errors.Is(err, params.ErrTypeMismatch):
		return http.StatusConflict, reasonTypeMismatch
	case errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, reasonClosed
	}
	return http.StatusInternalServerError, reasonInternal
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
