// Package stream pushes live session state to the browser over a WebSocket
// and accepts the high-frequency UI events that are too chatty for REST.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/agenti/agenti-web/internal/controller"
	"github.com/agenti/agenti-web/internal/identity"
	"github.com/agenti/agenti-web/internal/session"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Handler serves the session WebSocket.
type Handler struct {
	sessions      *session.Manager
	allowedOrigin string
	isDev         bool
	maxInputBytes int64
}

// NewHandler creates a WebSocket handler. maxInputBytes bounds the source
// text carried by an input message.
func NewHandler(sessions *session.Manager, allowedOrigin string, isDev bool, maxInputBytes int64) *Handler {
	return &Handler{
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		maxInputBytes: maxInputBytes,
	}
}

// clientMessage is an event sent by the browser.
type clientMessage struct {
	Type  string `json:"type"`
	Input string `json:"input,omitempty"`
}

// serverMessage answers the browser directly. Hub updates are forwarded
// as session.Message values.
type serverMessage struct {
	Type       string            `json:"type"`
	Snapshot   *session.Snapshot `json:"snapshot,omitempty"`
	Directives []string          `json:"directives,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ServeHTTP upgrades the request and streams the session until either side
// goes away. A closed socket means the page was left, so the session is torn
// down with it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	s, ok := h.sessions.Get(sessionID)
	if !ok || s.UserID != userID {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	ws.SetReadLimit(controller.EncodedInputLimit(h.maxInputBytes))
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	updates, unsubscribe := s.Hub.Subscribe()
	defer unsubscribe()
	defer h.sessions.Close(sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap := s.Snapshot()
	if err := writeJSON(ctx, ws, serverMessage{Type: "snapshot", Snapshot: &snap}); err != nil {
		slog.Debug("Failed to send snapshot", "error", err, "session_id", sessionID)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// Input loop: browser -> controllers.
	go func() {
		defer wg.Done()
		defer cancel()
		h.inputLoop(ctx, ws, s)
	}()

	// Output loop: hub -> browser.
	go func() {
		defer wg.Done()
		defer cancel()
		outputLoop(ctx, ws, updates, sessionID)
	}()

	wg.Wait()
	slog.Info("Session stream ended", "session_id", sessionID, "user_id", userID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, s *session.Session) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "session_id", s.ID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", s.ID)
			}
			return
		}
		s.Touch()

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Debug("Ignoring malformed client message", "session_id", s.ID, "error", err)
			continue
		}

		reply, ok := h.dispatch(s, msg)
		if !ok {
			continue
		}
		if err := writeJSON(ctx, ws, reply); err != nil {
			slog.Debug("Failed to answer client message", "error", err, "type", msg.Type)
			return
		}
	}
}

// dispatch applies one browser event. The boolean result reports whether
// the event needs a direct reply.
func (h *Handler) dispatch(s *session.Session, msg clientMessage) (serverMessage, bool) {
	var (
		d   controller.Directive
		err error
	)
	switch msg.Type {
	case "ping":
		return serverMessage{Type: "pong"}, true
	case "input":
		if int64(len(msg.Input)) > h.maxInputBytes {
			slog.Warn("Rejecting oversized input", "session_id", s.ID, "bytes", len(msg.Input), "max", h.maxInputBytes)
			return serverMessage{Type: "error", Error: controller.ErrInputTooLarge.Error()}, true
		}
		s.Run.SetInput(msg.Input)
		return serverMessage{}, false
	case "drag_enter":
		d, err = s.Upload.DragEnter()
	case "drag_over":
		d, err = s.Upload.DragOver()
	case "drag_leave":
		d, err = s.Upload.DragLeave()
	case "drop":
		// The file itself follows over HTTP; this only ends the hover on
		// the same ordered channel as the drag events.
		d, err = s.Upload.Drop(nil)
	case "picker_click":
		d, err = s.Upload.PickerClick()
	default:
		slog.Debug("Unknown client message", "session_id", s.ID, "type", msg.Type)
		return serverMessage{}, false
	}

	reply := serverMessage{Type: "directives", Directives: d.Names()}
	if err != nil {
		reply.Type = "error"
		reply.Error = err.Error()
	}
	return reply, true
}

func outputLoop(ctx context.Context, ws *websocket.Conn, updates <-chan session.Message, sessionID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, msg); err != nil {
				if ctx.Err() == nil {
					slog.Debug("WebSocket write error", "error", err, "session_id", sessionID)
				}
				return
			}
			if msg.Type == session.MessageClosed {
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
