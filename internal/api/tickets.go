package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inboxdesk/inboxdesk/internal/core"
	"github.com/inboxdesk/inboxdesk/internal/mailer"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
)

// GET /api/tickets?status=open&assigned_to=3&client=7
func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	var filter store.TicketFilter
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = models.TicketStatus(v)
	}
	if v := r.URL.Query().Get("assigned_to"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			uid := uint(id)
			filter.AssignedToID = &uid
		}
	}
	if v := r.URL.Query().Get("client"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cid := uint(id)
			filter.ClientID = &cid
		}
	}

	tickets, err := s.Store.ListTickets(filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

// GET /api/tickets/{ticketID}
func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := s.Store.GetTicketWithThread(chi.URLParam(r, "ticketID"))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

var validStatuses = map[models.TicketStatus]bool{
	models.TicketOpen:       true,
	models.TicketInProgress: true,
	models.TicketResolved:   true,
	models.TicketClosed:     true,
}

var validPriorities = map[models.TicketPriority]bool{
	models.PriorityLow:    true,
	models.PriorityNormal: true,
	models.PriorityHigh:   true,
	models.PriorityUrgent: true,
}

// PATCH /api/tickets/{ticketID}
func (s *Server) handleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	if _, err := s.Store.FindTicketByID(id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}

	var req struct {
		Status   *string `json:"status"`
		Priority *string `json:"priority"`
		Subject  *string `json:"subject"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	patch := map[string]interface{}{}
	if req.Status != nil {
		st := models.TicketStatus(*req.Status)
		if !validStatuses[st] {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		patch["status"] = st
	}
	if req.Priority != nil {
		p := models.TicketPriority(*req.Priority)
		if !validPriorities[p] {
			writeError(w, http.StatusBadRequest, "invalid priority")
			return
		}
		patch["priority"] = p
	}
	if req.Subject != nil && strings.TrimSpace(*req.Subject) != "" {
		patch["subject"] = *req.Subject
	}
	if len(patch) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	if err := s.Store.UpdateTicket(id, patch); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// POST /api/tickets/{ticketID}/assign
func (s *Server) handleAssignTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	var req struct {
		UserID *uint `json:"user_id"` // null unassigns
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if _, err := s.Store.FindTicketByID(id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}
	if req.UserID != nil {
		if _, err := s.Store.GetUserByID(*req.UserID); err != nil {
			if err == store.ErrNotFound {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}
	}

	if err := s.Store.UpdateTicket(id, map[string]interface{}{"assigned_to_id": req.UserID}); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to assign ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// POST /api/tickets/{ticketID}/reply
//
// Creates the agent's outbound message first, then sends the email best
// effort: a mail failure must never lose the reply content.
func (s *Server) handleReplyTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ticket, err := s.Store.FindTicketByID(id)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}

	branding, err := s.Inbound.Settings.Branding()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	agent := userFromContext(r.Context())
	messageID := core.NewMessageID(branding.MailDomain)
	// Stored and transmitted References must agree, including the id this
	// reply introduces.
	references := strings.Join(append(ticket.MessageIDs, messageID), " ")
	msg := &models.Message{
		TicketID:   ticket.ID,
		Content:    req.Content,
		IsFromUser: false,
		MessageID:  messageID,
		InReplyTo:  ticket.EmailID,
		References: references,
		UserID:     &agent.ID,
		CreatedAt:  time.Now(),
	}
	if err := s.Store.AppendMessage(msg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save reply")
		return
	}
	if err := s.Store.AppendOutboundMessageID(ticket.ID, messageID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record message id")
		return
	}

	// Best effort from here on: the reply is already durable.
	smtpCfg, err := s.Inbound.Settings.SMTP()
	if err != nil {
		log.Printf("[tickets] reply on %s saved but not sent, SMTP not configured: %v", ticket.ID, err)
	} else {
		out := &mailer.Email{
			To:      ticket.FromEmail,
			ToName:  ticket.FromName,
			Subject: fmt.Sprintf("[%s] Re: %s", ticket.ID, ticket.Subject),
			Text:    req.Content + "\n\n" + branding.Signature,
			Headers: map[string]string{
				"Message-ID":  messageID,
				"In-Reply-To": ticket.EmailID,
				"References":  references,
			},
		}
		if err := s.Inbound.Mailer.Send(r.Context(), smtpCfg, out); err != nil {
			log.Printf("[tickets] reply send failed for %s: %v", ticket.ID, err)
		}
	}

	writeJSON(w, http.StatusCreated, msg)
}

// DELETE /api/tickets/{ticketID}
func (s *Server) handleDeleteTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	if _, err := s.Store.FindTicketByID(id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}
	if err := s.Store.DeleteTicket(id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete ticket")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/tickets/{ticketID}/attachments
func (s *Server) handleUploadAttachment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "ticketID")
	if _, err := s.Store.FindTicketByID(id); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "ticket not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load ticket")
		return
	}

	maxBytes := s.Config.Uploads.MaxBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "file too big")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.Config.Uploads.Dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	name := uuid.New().String() + filepath.Ext(header.Filename)
	path := filepath.Join(s.Config.Uploads.Dir, name)
	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}
	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, "failed to store file")
		return
	}

	att := &models.Attachment{
		TicketID:     id,
		Filename:     name,
		OriginalName: header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Size:         size,
		URL:          "/uploads/" + name,
	}
	if err := s.Store.CreateAttachment(att); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save attachment")
		return
	}
	writeJSON(w, http.StatusCreated, att)
}

// GET /api/tickets/export
func (s *Server) handleExportTickets(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=tickets-%s.jsonl.zst", time.Now().Format("2006-01-02")))
	if err := core.ExportTickets(w, s.Store); err != nil {
		// Headers are out; all we can do is log.
		log.Printf("[tickets] export failed: %v", err)
	}
}
