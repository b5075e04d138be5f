package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/inboxdesk/inboxdesk/internal/settings"
)

// Keys whose values are never echoed back in full.
var secretKeys = map[string]bool{
	settings.KeySMTPPass: true,
	settings.KeyIMAPPass: true,
}

// GET /api/settings
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := s.Store.GetConfiguration()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	for key, value := range values {
		if secretKeys[key] && value != "" {
			values[key] = mask(value)
		}
	}
	writeJSON(w, http.StatusOK, values)
}

// POST /api/settings
// Accepts a flat key/value map; empty secret values keep the stored one.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if secretKeys[key] && (value == "" || strings.Contains(value, "****")) {
			// Masked or blank secret submitted back: leave as-is.
			continue
		}
		if err := s.Store.SetConfiguration(key, value); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to save settings")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mask(value string) string {
	if len(value) > 8 {
		return value[:4] + "****" + value[len(value)-4:]
	}
	return "****"
}
