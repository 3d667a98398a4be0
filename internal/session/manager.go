package session

import (
	"sync"

	"github.com/flexihub/assistant-gateway/pkg/logger"
)

// Manager owns the per-user session map. Sessions are created lazily on
// first use and live for the process lifetime.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	replaySize int
	logger     *logger.Logger
}

// NewManager creates a Manager whose sessions keep replaySize finalized
// messages for reconnect replay.
func NewManager(replaySize int, log *logger.Logger) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		replaySize: replaySize,
		logger:     log,
	}
}

// GetOrCreate returns the session for the given user, creating it on first
// access.
func (m *Manager) GetOrCreate(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := newSession(userID, m.replaySize, m.logger)
	m.sessions[userID] = s
	return s
}

// Get returns the session for the given user, if one exists.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}
