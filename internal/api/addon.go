package api

import (
	"net/http"
	"path/filepath"
)

// handleAddon serves the addon archive as a download.
func (s *Server) handleAddon(w http.ResponseWriter, r *http.Request) {
	path, err := s.bot.Addon()
	if err != nil {
		s.writeCommandError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
