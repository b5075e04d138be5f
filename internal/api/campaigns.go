package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inboxdesk/inboxdesk/internal/core"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
	"github.com/inboxdesk/inboxdesk/internal/validation"
)

// GET /api/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.Store.ListCampaigns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}
	writeJSON(w, http.StatusOK, campaigns)
}

// GET /api/campaigns/{campaignID}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "campaignID"))
	campaign, err := s.Store.GetCampaignByID(uint(id))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

type campaignRequest struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	Concurrency int    `json:"concurrency"`
}

// POST /api/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	v := validation.New().
		Required("name", req.Name).
		Required("subject", req.Subject).
		Required("body", req.Body)
	if !v.Valid() {
		writeError(w, http.StatusBadRequest, v.Errors()[0].Error())
		return
	}

	campaign := &models.Campaign{
		Name:        req.Name,
		Subject:     req.Subject,
		Body:        req.Body,
		Status:      models.CampaignDraft,
		Concurrency: req.Concurrency,
	}
	if campaign.Concurrency <= 0 {
		campaign.Concurrency = 10
	}
	if err := s.Store.CreateCampaign(campaign); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

// PUT /api/campaigns/{campaignID} — drafts only.
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "campaignID"))
	campaign, err := s.Store.GetCampaignByID(uint(id))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if campaign.Status != models.CampaignDraft {
		writeError(w, http.StatusBadRequest, "only draft campaigns can be edited")
		return
	}

	var req campaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name != "" {
		campaign.Name = req.Name
	}
	if req.Subject != "" {
		campaign.Subject = req.Subject
	}
	if req.Body != "" {
		campaign.Body = req.Body
	}
	if req.Concurrency > 0 {
		campaign.Concurrency = req.Concurrency
	}
	campaign.Recipients = nil // don't resave the recipient set

	if err := s.Store.UpdateCampaign(campaign); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// DELETE /api/campaigns/{campaignID}
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "campaignID"))
	if _, err := s.Store.GetCampaignByID(uint(id)); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if err := s.Store.DeleteCampaign(uint(id)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete campaign")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/campaigns/{campaignID}/import
func (s *Server) handleImportRecipients(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "campaignID"))
	campaign, err := s.Store.GetCampaignByID(uint(id))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if campaign.Status != models.CampaignDraft {
		writeError(w, http.StatusBadRequest, "recipients can only be imported into drafts")
		return
	}

	// Max 10MB CSV
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "file too big")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	count, err := core.ImportRecipientsFromCSV(s.Store, campaign.ID, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("import failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "imported",
		"count":  count,
	})
}

// Campaign lifecycle transitions. Start/pause/cancel are explicit admin
// actions; completed is only ever set by the batch processor.
func (s *Server) handleStartCampaign(w http.ResponseWriter, r *http.Request) {
	s.transitionCampaign(w, r, models.CampaignActive,
		map[models.CampaignStatus]bool{models.CampaignDraft: true, models.CampaignPaused: true})
}

func (s *Server) handlePauseCampaign(w http.ResponseWriter, r *http.Request) {
	s.transitionCampaign(w, r, models.CampaignPaused,
		map[models.CampaignStatus]bool{models.CampaignActive: true})
}

func (s *Server) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	s.transitionCampaign(w, r, models.CampaignCancelled,
		map[models.CampaignStatus]bool{
			models.CampaignDraft:  true,
			models.CampaignActive: true,
			models.CampaignPaused: true,
		})
}

func (s *Server) transitionCampaign(w http.ResponseWriter, r *http.Request, to models.CampaignStatus, from map[models.CampaignStatus]bool) {
	id, _ := strconv.Atoi(chi.URLParam(r, "campaignID"))
	campaign, err := s.Store.GetCampaignByID(uint(id))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load campaign")
		return
	}
	if !from[campaign.Status] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("campaign is %s", campaign.Status))
		return
	}
	if err := s.Store.UpdateCampaignStatus(campaign.ID, to); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(to)})
}

// POST /api/campaigns/run
//
// Cron-style trigger: authenticates with the shared secret, runs one drain
// pass, and reports the aggregate counts. Rejected before any processing
// when the secret is absent or wrong.
func (s *Server) handleRunCampaigns(w http.ResponseWriter, r *http.Request) {
	secret := s.Config.Cron.Secret
	if secret == "" {
		writeError(w, http.StatusNotFound, "campaign trigger disabled")
		return
	}
	if bearerToken(r) != secret {
		writeError(w, http.StatusUnauthorized, "invalid trigger secret")
		return
	}

	result, err := s.Processor.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "campaign run failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
