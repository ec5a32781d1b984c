package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/agenti/agenti-web/internal/controller"
	"github.com/agenti/agenti-web/internal/identity"
	"github.com/agenti/agenti-web/internal/metrics"
	"github.com/agenti/agenti-web/internal/session"
	"github.com/go-chi/chi/v5"
)

type sessionKey struct{}

// SessionHandler exposes the run and upload controllers of a page view.
type SessionHandler struct {
	*Handler
	openLimit func(http.Handler) http.Handler
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(base *Handler) *SessionHandler {
	return &SessionHandler{Handler: base}
}

// SetOpenLimiter throttles session creation.
func (h *SessionHandler) SetOpenLimiter(mw func(http.Handler) http.Handler) {
	h.openLimit = mw
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/session", func(r chi.Router) {
		if h.openLimit != nil {
			r.With(h.openLimit).Post("/", h.Open)
		} else {
			r.Post("/", h.Open)
		}
		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)
			r.Get("/", h.Get)
			r.Delete("/", h.Close)
			r.Post("/input", h.Input)
			r.Post("/run", h.Run)
			r.Post("/clear", h.Clear)
			r.Post("/copy", h.Copy)
			r.Post("/drag", h.Drag)
			r.Post("/picker", h.Picker)
			r.Post("/upload", h.Upload)
		})
	})
}

// requireSession resolves the page-view session and rejects sessions owned by
// another browser.
func (h *SessionHandler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sid := identity.SessionIDFromContext(r.Context())
		if sid == "" {
			Error(w, http.StatusBadRequest, "missing session id")
			return
		}
		s, ok := h.sessions.Get(sid)
		if !ok || s.UserID != identity.UserIDFromContext(r.Context()) {
			Error(w, http.StatusNotFound, "session not found")
			return
		}
		s.Touch()
		ctx := context.WithValue(r.Context(), sessionKey{}, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(r *http.Request) *session.Session {
	s, _ := r.Context().Value(sessionKey{}).(*session.Session)
	return s
}

type openRequest struct {
	AgentID int64 `json:"agent_id"`
}

// Open starts a new page-view session.
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if req.AgentID != 0 {
		if _, err := h.catalog.GetAgent(r.Context(), req.AgentID); err != nil {
			Error(w, http.StatusNotFound, "agent not found")
			return
		}
	}

	s := h.sessions.Open(identity.UserIDFromContext(r.Context()), req.AgentID)
	w.Header().Set(identity.SessionHeaderName, s.ID)
	JSON(w, http.StatusCreated, s.Snapshot())
}

// Get returns the session snapshot.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, sessionFrom(r).Snapshot())
}

// Close tears the session down.
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.sessions.Close(sessionFrom(r).ID)
	w.WriteHeader(http.StatusNoContent)
}

type inputRequest struct {
	Input string `json:"input"`
}

// Input records edits to the source pane.
func (h *SessionHandler) Input(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := h.decodeInput(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	if h.inputTooLarge(req.Input) {
		Error(w, http.StatusRequestEntityTooLarge, controller.ErrInputTooLarge.Error())
		return
	}
	s := sessionFrom(r)
	s.Run.SetInput(req.Input)
	JSON(w, http.StatusOK, s.Run.State())
}

func (h *SessionHandler) decodeInput(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return decodeJSONLimit(w, r, v, controller.EncodedInputLimit(h.maxInputBytes))
}

func (h *SessionHandler) inputTooLarge(input string) bool {
	return int64(len(input)) > h.maxInputBytes
}

type runRequest struct {
	Input *string `json:"input"`
}

// Run starts a conversion. A request without an input field converts the
// current contents of the source pane.
func (h *SessionHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := h.decodeInput(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	s := sessionFrom(r)
	input := s.Run.State().Input
	if req.Input != nil {
		input = *req.Input
	}
	if h.inputTooLarge(input) {
		Error(w, http.StatusRequestEntityTooLarge, controller.ErrInputTooLarge.Error())
		return
	}

	accepted := s.Run.Submit(input)
	status := http.StatusOK
	if accepted {
		status = http.StatusAccepted
	}
	JSON(w, status, map[string]interface{}{
		"accepted": accepted,
		"run":      s.Run.State(),
	})
}

// Clear resets the run session.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	s.Run.Clear()
	JSON(w, http.StatusOK, s.Run.State())
}

// Copy pushes the current output to the browser clipboard. The text travels
// over the session stream only.
func (h *SessionHandler) Copy(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	copied, err := s.Run.CopyOutput(r.Context())
	if errors.Is(err, session.ErrNoSubscriber) {
		Error(w, http.StatusConflict, "no live connection to receive the clipboard")
		return
	}
	if err != nil {
		slog.Warn("Clipboard write failed", "session_id", s.ID, "error", err)
		Error(w, http.StatusBadGateway, "clipboard write failed")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"copied": copied})
}

type dragRequest struct {
	Event string `json:"event"`
}

// Drag applies a drag-enter, drag-over or drag-leave event.
func (h *SessionHandler) Drag(w http.ResponseWriter, r *http.Request) {
	var req dragRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}
	s := sessionFrom(r)

	var (
		d   controller.Directive
		err error
	)
	switch req.Event {
	case "enter":
		d, err = s.Upload.DragEnter()
	case "over":
		d, err = s.Upload.DragOver()
	case "leave":
		d, err = s.Upload.DragLeave()
	default:
		Error(w, http.StatusBadRequest, "event must be one of enter, over, leave")
		return
	}
	if err != nil {
		writeUploadError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"directives": d.Names(),
		"upload":     s.Upload.State(),
	})
}

// Picker delegates a click on the drop zone to the file input.
func (h *SessionHandler) Picker(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	d, err := s.Upload.PickerClick()
	if err != nil {
		writeUploadError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"directives": d.Names(),
		"upload":     s.Upload.State(),
	})
}

// Upload receives a dropped or selected file as multipart form data. Only the
// first "file" part is considered; its bytes are counted and discarded.
func (h *SessionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	s := sessionFrom(r)
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "select"
	}
	if source != "drop" && source != "select" {
		Error(w, http.StatusBadRequest, "source must be drop or select")
		return
	}

	file, err := h.readFilePart(r)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var d controller.Directive
	if source == "drop" {
		d, err = s.Upload.Drop([]controller.FileRef{file})
	} else {
		err = s.Upload.Select([]controller.FileRef{file})
	}
	if err != nil {
		writeUploadError(w, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]interface{}{
		"directives": d.Names(),
		"upload":     s.Upload.State(),
	})
}

var errNoFilePart = errors.New("multipart body has no file part")

func (h *SessionHandler) readFilePart(r *http.Request) (controller.FileRef, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return controller.FileRef{}, err
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return controller.FileRef{}, errNoFilePart
		}
		if err != nil {
			return controller.FileRef{}, err
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		// Read one byte past the limit so oversized files are still
		// reported as oversized without buffering them whole.
		limit := h.maxUploadBytes
		if limit <= 0 {
			limit = defaultMaxRequestBodySize
		}
		n, err := io.Copy(io.Discard, io.LimitReader(part, limit+1))
		closeErr := part.Close()
		if err != nil {
			return controller.FileRef{}, err
		}
		if closeErr != nil {
			slog.Debug("Failed to close multipart part", "error", closeErr)
		}

		contentType := part.Header.Get("Content-Type")
		if mt, _, perr := mime.ParseMediaType(contentType); perr == nil {
			contentType = mt
		}
		return controller.FileRef{Name: part.FileName(), Size: n, ContentType: contentType}, nil
	}
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, controller.ErrUploadInFlight):
		metrics.UploadRejections.WithLabelValues(metrics.RejectionReason(err)).Inc()
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, controller.ErrDisallowedType), errors.Is(err, controller.ErrFileTooLarge):
		metrics.UploadRejections.WithLabelValues(metrics.RejectionReason(err)).Inc()
		Error(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, controller.ErrSessionClosed):
		Error(w, http.StatusGone, err.Error())
	default:
		Error(w, http.StatusInternalServerError, err.Error())
	}
}
