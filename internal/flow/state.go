package flow

import (
	"sync"
	"time"
)

// State is the per-chat conversation state. Only the states below implement it.
type State interface {
	Kind() string
	isState()
}

// Idle is the resting state.
type Idle struct{}

// AwaitingBotName waits for the display name after /create.
type AwaitingBotName struct{}

// AwaitingAvatar holds a freshly created bot while the user picks an avatar.
type AwaitingAvatar struct {
	RecordID string
	Token    string
	Username string
	Name     string
}

func (Idle) Kind() string            { return "idle" }
func (AwaitingBotName) Kind() string { return "awaiting_bot_name" }
func (AwaitingAvatar) Kind() string  { return "awaiting_avatar" }

func (Idle) isState()            {}
func (AwaitingBotName) isState() {}
func (AwaitingAvatar) isState()  {}

// Session is a chat's state with its last change time.
type Session struct {
	State     State
	UpdatedAt time.Time
}

// SessionStore keeps conversation state per chat.
type SessionStore interface {
	// Get returns the chat's session, Idle when none exists.
	Get(chatID int64) Session
	// Set replaces the chat's state. Setting Idle drops the session.
	Set(chatID int64, state State)
	// Expire drops sessions not updated within ttl and returns how many.
	Expire(ttl time.Duration) int
	// Len returns the number of non-idle sessions.
	Len() int
}

// MemorySessionStore is an in-process SessionStore. Sessions hold bot
// tokens, so they are never written to disk.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
	now      func() time.Time
}

// Ensure MemorySessionStore implements SessionStore.
var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an empty store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[int64]Session),
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Get(chatID int64) Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		return s
	}
	return Session{State: Idle{}}
}

func (m *MemorySessionStore) Set(chatID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, idle := state.(Idle); idle || state == nil {
		delete(m.sessions, chatID)
		return
	}
	m.sessions[chatID] = Session{State: state, UpdatedAt: m.now()}
}

func (m *MemorySessionStore) Expire(ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-ttl)
	expired := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			expired++
		}
	}
	return expired
}

func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
