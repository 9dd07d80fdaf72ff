package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/vaxsched/internal/account"
)

var (
	ErrAlreadyLoggedIn = errors.New("user already logged in")
	ErrNotLoggedIn     = errors.New("not logged in")
)

// Session carries the authenticated identity into every engine call.
type Session struct {
	ID       uuid.UUID
	Identity account.Identity
	IssuedAt time.Time
}

// Store holds at most one session at a time.
type Store interface {
	Current() (Session, bool)
	Login(id account.Identity) (Session, error)
	Logout() error
}

func newSession(id account.Identity) Session {
	return Session{ID: uuid.New(), Identity: id, IssuedAt: time.Now().UTC()}
}

// Memory keeps the session for the lifetime of the process.
type Memory struct {
	mu  sync.Mutex
	cur *Session
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return Session{}, false
	}
	return *m.cur, true
}

func (m *Memory) Login(id account.Identity) (Session, error) {
	if !id.Authenticated() {
		return Session{}, errors.New("session: anonymous identity")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur != nil {
		return Session{}, ErrAlreadyLoggedIn
	}
	s := newSession(id)
	m.cur = &s
	return s, nil
}

func (m *Memory) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return ErrNotLoggedIn
	}
	m.cur = nil
	return nil
}

// Identity returns the identity of the current session, or the anonymous one.
func Identity(st Store) account.Identity {
	s, ok := st.Current()
	if !ok {
		return account.Identity{}
	}
	return s.Identity
}
