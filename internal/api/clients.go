package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
	"github.com/inboxdesk/inboxdesk/internal/validation"
)

type clientRequest struct {
	Name        string   `json:"name"`
	Company     string   `json:"company"`
	ContactName string   `json:"contact_name"`
	Active      *bool    `json:"active"`
	Emails      []string `json:"emails"`
}

func (req *clientRequest) validate() *validation.Validator {
	v := validation.New().Required("name", req.Name).MaxLength("name", req.Name, 200)
	for _, e := range req.Emails {
		v.Email("emails", e)
	}
	return v
}

// GET /api/clients
func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.Store.ListClients()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list clients")
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// GET /api/clients/{clientID}
func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "clientID"))
	client, err := s.Store.GetClientByID(uint(id))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// POST /api/clients
func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if v := req.validate(); !v.Valid() {
		writeError(w, http.StatusBadRequest, v.Errors()[0].Error())
		return
	}

	client := &models.Client{
		Name:        req.Name,
		Company:     req.Company,
		ContactName: req.ContactName,
		Active:      true,
	}
	if req.Active != nil {
		client.Active = *req.Active
	}
	for _, e := range req.Emails {
		client.Emails = append(client.Emails, models.ClientEmail{Address: e})
	}

	if err := s.Store.CreateClient(client); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create client")
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

// PUT /api/clients/{clientID}
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "clientID"))
	client, err := s.Store.GetClientByID(uint(id))
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}

	var req clientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if v := req.validate(); !v.Valid() {
		writeError(w, http.StatusBadRequest, v.Errors()[0].Error())
		return
	}

	client.Name = req.Name
	client.Company = req.Company
	client.ContactName = req.ContactName
	if req.Active != nil {
		client.Active = *req.Active
	}
	client.Emails = nil
	for _, e := range req.Emails {
		client.Emails = append(client.Emails, models.ClientEmail{Address: e})
	}

	if err := s.Store.UpdateClient(client); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update client")
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// DELETE /api/clients/{clientID}
func (s *Server) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "clientID"))
	if _, err := s.Store.GetClientByID(uint(id)); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "client not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load client")
		return
	}
	if err := s.Store.DeleteClient(uint(id)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete client")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
