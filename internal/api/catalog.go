package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/agenti/agenti-web/internal/domain"
	"github.com/agenti/agenti-web/internal/store"
	"github.com/go-chi/chi/v5"
)

// CatalogHandler serves the read-only marketplace data.
type CatalogHandler struct {
	*Handler
}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler(base *Handler) *CatalogHandler {
	return &CatalogHandler{Handler: base}
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)
		r.Get("/categories", h.Categories)
		r.Get("/plans", h.Plans)
	})
}

// ListAgents returns agents filtered by the category and q query parameters.
func (h *CatalogHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	filter := domain.AgentFilter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	agents, err := h.catalog.ListAgents(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list agents", "error", err, "category", filter.Category)
		Error(w, http.StatusInternalServerError, "failed to list agents")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"count":  len(agents),
	})
}

// GetAgent returns a single agent.
func (h *CatalogHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid agent id")
		return
	}
	agent, err := h.catalog.GetAgent(r.Context(), id)
	if errors.Is(err, store.ErrAgentNotFound) {
		Error(w, http.StatusNotFound, "agent not found")
		return
	}
	if err != nil {
		slog.Error("Failed to get agent", "error", err, "agent_id", id)
		Error(w, http.StatusInternalServerError, "failed to get agent")
		return
	}
	JSON(w, http.StatusOK, agent)
}

// Categories returns the browse categories.
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		slog.Error("Failed to list categories", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list categories")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

// Plans returns the pricing tiers.
func (h *CatalogHandler) Plans(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]interface{}{"plans": domain.Plans})
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	catalog  store.Catalog
	sessions interface{ Len() int }
	timeout  time.Duration
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(catalog store.Catalog, sessions interface{ Len() int }) *HealthHandler {
	return &HealthHandler{catalog: catalog, sessions: sessions, timeout: 5 * time.Second}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status": "healthy",
		"checks": checks,
	}
	if h.sessions != nil {
		status["open_sessions"] = h.sessions.Len()
	}
	statusCode := http.StatusOK

	if err := h.catalog.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["catalog"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["catalog"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
