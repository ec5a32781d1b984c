package pages

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/agenti/agenti-web/internal/domain"
	"github.com/agenti/agenti-web/internal/identity"
	"github.com/agenti/agenti-web/internal/session"
	"github.com/agenti/agenti-web/internal/store"
	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"
)

// Handler serves the HTML pages.
type Handler struct {
	catalog    store.Catalog
	sessions   *session.Manager
	extensions []string
	openLimit  func(http.Handler) http.Handler
}

// NewHandler creates a page handler. extensions is the upload allow-list
// shown on the upload page.
func NewHandler(catalog store.Catalog, sessions *session.Manager, extensions []string) *Handler {
	return &Handler{catalog: catalog, sessions: sessions, extensions: extensions}
}

// SetOpenLimiter throttles the pages that open a session.
func (h *Handler) SetOpenLimiter(mw func(http.Handler) http.Handler) {
	h.openLimit = mw
}

// RegisterRoutes registers page routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Landing)
	r.Get("/agents", h.Agents)
	r.Get("/pricing", h.Pricing)

	opens := r
	if h.openLimit != nil {
		opens = r.With(h.openLimit)
	}
	opens.Get("/upload", h.Upload)
	opens.Get("/agent/{id}", h.Agent)
}

func (h *Handler) Landing(w http.ResponseWriter, _ *http.Request) {
	render(w, http.StatusOK, LandingPage())
}

func (h *Handler) Agents(w http.ResponseWriter, r *http.Request) {
	filter := domain.AgentFilter{
		Category: r.URL.Query().Get("category"),
		Query:    r.URL.Query().Get("q"),
	}
	agents, err := h.catalog.ListAgents(r.Context(), filter)
	if err != nil {
		slog.Error("Failed to list agents", "error", err)
		http.Error(w, "failed to list agents", http.StatusInternalServerError)
		return
	}
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		slog.Error("Failed to list categories", "error", err)
		http.Error(w, "failed to list categories", http.StatusInternalServerError)
		return
	}
	render(w, http.StatusOK, AgentsPage(agents, categories, filter))
}

func (h *Handler) Pricing(w http.ResponseWriter, _ *http.Request) {
	render(w, http.StatusOK, PricingPage(domain.Plans))
}

// Upload opens a fresh upload session for this page view.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Open(identity.UserIDFromContext(r.Context()), 0)
	render(w, http.StatusOK, UploadPage(s.ID, s.Upload.State(), h.extensions))
}

// Agent opens a fresh run session for the agent's demo page.
func (h *Handler) Agent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		render(w, http.StatusNotFound, NotFoundPage())
		return
	}
	agent, err := h.catalog.GetAgent(r.Context(), id)
	if errors.Is(err, store.ErrAgentNotFound) {
		render(w, http.StatusNotFound, NotFoundPage())
		return
	}
	if err != nil {
		slog.Error("Failed to get agent", "error", err, "agent_id", id)
		http.Error(w, "failed to get agent", http.StatusInternalServerError)
		return
	}

	s := h.sessions.Open(identity.UserIDFromContext(r.Context()), agent.ID)
	render(w, http.StatusOK, AgentPage(*agent, s.ID, s.Run.State()))
}

func render(w http.ResponseWriter, status int, page g.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := page.Render(w); err != nil {
		slog.Debug("Failed to render page", "error", err)
	}
}
