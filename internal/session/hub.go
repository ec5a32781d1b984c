package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/agenti/agenti-web/internal/controller"
)

// Message types pushed to subscribers.
const (
	MessageRun       = "run"
	MessageUpload    = "upload"
	MessageClipboard = "clipboard"
	MessageClosed    = "closed"
)

// Message is one update fanned out to a session's subscribers.
type Message struct {
	Type   string                  `json:"type"`
	Run    *controller.RunState    `json:"run,omitempty"`
	Upload *controller.UploadState `json:"upload,omitempty"`
	Text   string                  `json:"text,omitempty"`
}

const subscriberBuffer = 32

// ErrNoSubscriber is returned when a clipboard write has no browser to
// deliver it to.
var ErrNoSubscriber = errors.New("no live subscriber")

// Hub broadcasts session updates to subscribers without blocking the
// controllers. A subscriber that falls behind loses messages; the next
// snapshot supersedes them.
type Hub struct {
	sessionID string
	mu        sync.Mutex
	subs      map[int]chan Message
	nextID    int
	closed    bool
}

// NewHub creates a hub for one session.
func NewHub(sessionID string) *Hub {
	return &Hub{sessionID: sessionID, subs: make(map[int]chan Message)}
}

// Subscribe registers a subscriber. The returned channel is closed when the
// subscriber cancels or the hub closes.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Message, subscriberBuffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

// Publish sends msg to every subscriber that has room for it and reports
// how many received it.
func (h *Hub) Publish(msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delivered := 0
	for id, ch := range h.subs {
		select {
		case ch <- msg:
			delivered++
		default:
			slog.Debug("Dropping session update for slow subscriber", "session_id", h.sessionID, "subscriber", id, "type", msg.Type)
		}
	}
	return delivered
}

// WriteText implements controller.Clipboard by asking connected browsers to
// write text to the system clipboard.
func (h *Hub) WriteText(_ context.Context, text string) error {
	if h.Publish(Message{Type: MessageClipboard, Text: text}) == 0 {
		return ErrNoSubscriber
	}
	return nil
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close notifies and disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		select {
		case ch <- Message{Type: MessageClosed}:
		default:
		}
		close(ch)
		delete(h.subs, id)
	}
}
