// Package session manages per-page-view interactive sessions.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/agenti/agenti-web/internal/controller"
	"github.com/agenti/agenti-web/internal/metrics"
	"github.com/google/uuid"
)

// Options configures the controllers of new sessions.
type Options struct {
	Converter  controller.Converter
	Uploader   controller.Uploader
	Policy     controller.Policy
	ResetDelay time.Duration
	Logger     *slog.Logger
}

// Session is the state of one page view.
type Session struct {
	ID        string
	UserID    string
	AgentID   int64
	CreatedAt time.Time

	Run    *controller.RunController
	Upload *controller.UploadController
	Hub    *Hub

	mu       sync.Mutex
	lastSeen time.Time
}

// Snapshot is the combined state of a session.
type Snapshot struct {
	SessionID string                 `json:"session_id"`
	AgentID   int64                  `json:"agent_id,omitempty"`
	Run       controller.RunState    `json:"run"`
	Upload    controller.UploadState `json:"upload"`
}

// Snapshot returns the current state of both controllers.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		SessionID: s.ID,
		AgentID:   s.AgentID,
		Run:       s.Run.State(),
		Upload:    s.Upload.State(),
	}
}

// Touch records activity on the session.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
}

// LastSeen returns the time of the last recorded activity.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.Run.Close()
	s.Upload.Close()
	s.Hub.Close()
}

// Manager tracks open sessions by id.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session owned by userID.
func (m *Manager) Open(userID string, agentID int64) *Session {
	id := uuid.NewString()
	hub := NewHub(id)
	logger := m.opts.Logger.With("session_id", id, "user_id", userID)
	now := time.Now()

	s := &Session{
		ID:        id,
		UserID:    userID,
		AgentID:   agentID,
		CreatedAt: now,
		Hub:       hub,
		lastSeen:  now,
	}
	s.Run = controller.NewRunController(m.opts.Converter, hub, logger, func(st controller.RunState) {
		hub.Publish(Message{Type: MessageRun, Run: &st})
	})
	s.Upload = controller.NewUploadController(m.opts.Uploader, m.opts.Policy, m.opts.ResetDelay, logger, func(st controller.UploadState) {
		hub.Publish(Message{Type: MessageUpload, Upload: &st})
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	metrics.SessionsOpened.Inc()
	metrics.SessionsOpen.Inc()

	slog.Info("Session opened", "session_id", id, "user_id", userID, "agent_id", agentID)
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Close tears down a session. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.close()
		metrics.SessionsOpen.Dec()
		slog.Info("Session closed", "session_id", id, "user_id", s.UserID)
	}
}

// Expired returns sessions idle for longer than ttl with no live subscriber.
func (m *Manager) Expired(ttl time.Duration) []*Session {
	cutoff := time.Now().Add(-ttl)

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, s := range m.sessions {
		if s.LastSeen().Before(cutoff) && s.Hub.Subscribers() == 0 {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll tears down every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range all {
		s.close()
	}
	metrics.SessionsOpen.Sub(float64(len(all)))
}
