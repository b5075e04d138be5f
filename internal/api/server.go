package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/inboxdesk/inboxdesk/internal/config"
	"github.com/inboxdesk/inboxdesk/internal/core"
	"github.com/inboxdesk/inboxdesk/internal/metrics"
	custommw "github.com/inboxdesk/inboxdesk/internal/middleware/custom"
	"github.com/inboxdesk/inboxdesk/internal/models"
	"github.com/inboxdesk/inboxdesk/internal/store"
)

// Server wraps dependencies for HTTP handlers.
type Server struct {
	Store     *store.Store
	Inbound   *core.InboundService
	Processor *core.CampaignProcessor
	Config    *config.Config
}

// NewServer creates a new API server instance.
func NewServer(st *store.Store, inbound *core.InboundService, processor *core.CampaignProcessor, cfg *config.Config) *Server {
	return &Server{Store: st, Inbound: inbound, Processor: processor, Config: cfg}
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if len(s.Config.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.Config.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}))
	}

	r.Get("/api/status", s.handleStatus)
	r.Method("GET", "/metrics", metrics.Handler())

	// Public routes, rate limited per IP.
	r.Group(func(r chi.Router) {
		if s.Config.RateLimit.Enabled {
			limiter := custommw.NewRateLimiter(rate.Limit(s.Config.RateLimit.PerSecond), s.Config.RateLimit.Burst)
			r.Use(limiter.Limit)
		}
		r.Post("/api/auth/register", s.handleRegister)
		r.Post("/api/auth/login", s.handleLogin)
		r.Post("/api/webhook/inbound", s.handleInboundWebhook)
	})

	// Cron trigger: shared-secret bearer, no session.
	r.Post("/api/campaigns/run", s.handleRunCampaigns)

	// Authenticated routes.
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/auth/me", s.handleMe)

		r.Route("/api/tickets", func(r chi.Router) {
			r.Get("/", s.handleListTickets)
			r.With(s.requireAdmin).Get("/export", s.handleExportTickets)
			r.Route("/{ticketID}", func(r chi.Router) {
				r.Get("/", s.handleGetTicket)
				r.Patch("/", s.handleUpdateTicket)
				r.With(s.requireAdmin).Delete("/", s.handleDeleteTicket)
				r.Post("/reply", s.handleReplyTicket)
				r.With(s.requireAdmin).Post("/assign", s.handleAssignTicket)
				r.Post("/attachments", s.handleUploadAttachment)
			})
		})

		r.Route("/api/clients", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Route("/{clientID}", func(r chi.Router) {
				r.Get("/", s.handleGetClient)
				r.Put("/", s.handleUpdateClient)
				r.Delete("/", s.handleDeleteClient)
			})
		})

		r.Route("/api/campaigns", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleListCampaigns)
			r.Post("/", s.handleCreateCampaign)
			r.Route("/{campaignID}", func(r chi.Router) {
				r.Get("/", s.handleGetCampaign)
				r.Put("/", s.handleUpdateCampaign)
				r.Delete("/", s.handleDeleteCampaign)
				r.Post("/import", s.handleImportRecipients)
				r.Post("/start", s.handleStartCampaign)
				r.Post("/pause", s.handlePauseCampaign)
				r.Post("/cancel", s.handleCancelCampaign)
			})
		})

		r.Route("/api/settings", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleGetSettings)
			r.Post("/", s.handleSaveSettings)
		})

		r.Route("/api/users", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleListUsers)
			r.Post("/", s.handleCreateUser)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}

// handleStatus returns basic service health info.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	db := "ok"
	if sqlDB, err := s.Store.DB.DB(); err != nil || sqlDB.Ping() != nil {
		db = "down"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"api": "ok",
		"db":  db,
	})
}

// ----------------------
// Auth middleware
// ----------------------

type contextKey string

const userContextKey contextKey = "user"

// requireAuth resolves the bearer token to a user and stores it in the
// request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		user, err := s.Store.GetUserByToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if time.Now().After(user.TokenExpiry) {
			writeError(w, http.StatusUnauthorized, "token expired")
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin guards admin-only routes. Must run inside requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())
		if user == nil || user.Role != models.RoleAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}
