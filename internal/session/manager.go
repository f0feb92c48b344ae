package session

import "sync"

// Manager keeps one live Session per chat. Sessions are in-memory only and
// are lost on restart; there is no persistence behind them.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[int64]*Session
	welcomeText string
}

func NewManager(welcomeText string) *Manager {
	return &Manager{
		sessions:    make(map[int64]*Session),
		welcomeText: welcomeText,
	}
}

// Get returns the session for a chat, creating it on first use.
func (m *Manager) Get(chatID int64, userID string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[chatID]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		return s
	}
	s = New(chatID, userID, m.welcomeText)
	m.sessions[chatID] = s
	return s
}

// Drop removes a chat's session entirely.
func (m *Manager) Drop(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
}
