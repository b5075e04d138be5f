package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inboxdesk/inboxdesk/internal/core"
)

// POST /api/webhook/inbound
//
// Ingress for the mail-parsing service. The payload is a parsed email:
// from/subject/text plus optional attachments and raw threading headers.
func (s *Server) handleInboundWebhook(w http.ResponseWriter, r *http.Request) {
	var in core.InboundEmail
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if in.From == "" {
		writeError(w, http.StatusBadRequest, "from is required")
		return
	}

	result, err := s.Inbound.Process(r.Context(), &in)
	if err != nil {
		if errors.Is(err, core.ErrClientOnly) {
			writeError(w, http.StatusForbidden, "sender is not a registered client")
			return
		}
		// Matcher/persistence/confirmation errors bubble up here as a
		// structured response; already-written rows are not rolled back.
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":  "failed to process inbound email",
			"detail": err.Error(),
		})
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}
