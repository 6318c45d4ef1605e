package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/botfactory/internal/botfather"
	"github.com/ashureev/botfactory/internal/domain"
	"github.com/ashureev/botfactory/internal/identity"
	"github.com/ashureev/botfactory/internal/middleware"
	"github.com/ashureev/botfactory/internal/store"
)

const (
	healthCheckTimeout = 5 * time.Second
	defaultListLimit   = 50
	maxListLimit       = 200
)

// NewRouter builds the HTTP router. events is mounted at /ws/events when
// non-nil. Everything except /health requires the operator token.
func NewRouter(h *Handler, events http.Handler, allowedOrigins []string, opsToken string) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	r.Get("/health", h.Health)
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(opsToken, nil))
		r.Route("/api", func(r chi.Router) {
			r.Get("/status", h.Status)
			r.Get("/creations", h.ListCreations)
			r.Get("/creations/{id}", h.GetCreation)
		})
		if events != nil {
			r.Get("/ws/events", events.ServeHTTP)
		}
	})
	return r
}

// Health returns the health status of the API and its dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Automation       AutomationStatus `json:"automation"`
	QueuePending     int              `json:"queue_pending"`
	ActiveSessions   int              `json:"active_sessions"`
	Creations        int              `json:"creations"`
	EventSubscribers int              `json:"event_subscribers"`
	EventsDropped    int64            `json:"events_dropped"`
}

// AutomationStatus describes whether BotFather procedures can run.
type AutomationStatus struct {
	Ready      bool   `json:"ready"`
	Configured bool   `json:"configured"`
	Reason     string `json:"reason,omitempty"`
}

// Status reports automation readiness and runtime counters.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ready := h.automation.Ready()
	resp := StatusResponse{
		Automation: AutomationStatus{
			Ready:      ready == nil,
			Configured: !errors.Is(ready, botfather.ErrNotConfigured),
		},
		QueuePending: h.automation.Pending(),
	}
	if ready != nil {
		resp.Automation.Reason = ready.Error()
	}
	if h.sessions != nil {
		resp.ActiveSessions = h.sessions.Len()
	}
	if h.events != nil {
		resp.EventSubscribers = h.events.Subscribers()
		resp.EventsDropped = h.events.Dropped()
	}

	n, err := h.repo.CountCreations(r.Context())
	if err != nil {
		slog.Error("Failed to count creations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}
	resp.Creations = n

	JSON(w, http.StatusOK, resp)
}

// ListCreations returns the newest ledger entries. Tokens are only ever
// stored masked.
func (h *Handler) ListCreations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.repo.ListCreations(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list creations", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}
	if records == nil {
		records = []*domain.CreationRecord{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"creations": records})
}

// GetCreation returns a single ledger entry.
func (h *Handler) GetCreation(w http.ResponseWriter, r *http.Request) {
	rec, err := h.repo.GetCreation(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		Error(w, http.StatusNotFound, "creation not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get creation", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}
	JSON(w, http.StatusOK, rec)
}
