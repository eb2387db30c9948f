/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session keeps the ephemeral, per-browser login context. Nothing
// here is ever persisted; a restart logs everyone out.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Seednode/secretsanta/internal/auth"
)

const CookieName = "secretsanta_id"

type Session struct {
	ID string

	mu         sync.Mutex
	auth       *auth.Session
	notice     string
	pending    string
	lastActive time.Time
}

// Do runs fn with exclusive access to the login flow.
func (s *Session) Do(fn func(a *auth.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActive = time.Now()
	fn(s.auth)
}

// View returns a copy of the flow and the authenticated user.
func (s *Session) View() (auth.Flow, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, _ := s.auth.User()

	return s.auth.Flow, user
}

// User returns the authenticated participant id, if any.
func (s *Session) User() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.auth.User()
}

// SetNotice queues a message for the next page render.
func (s *Session) SetNotice(notice string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notice = notice
}

// TakeNotice returns the queued notice and clears it.
func (s *Session) TakeNotice() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.notice
	s.notice = ""

	return n
}

// SetPending remembers a share token until the user confirms or dismisses it.
func (s *Session) SetPending(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = token
}

// Pending returns the share token awaiting confirmation, if any.
func (s *Session) Pending() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending
}

// Manager holds sessions keyed by cookie id.
type Manager struct {
	// Secure marks session cookies https-only. Set it before serving.
	Secure bool

	dir         auth.Directory
	masterKey   string
	idleTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a Manager whose idle sessions are reaped until ctx ends.
// A zero idleTimeout keeps sessions forever.
func NewManager(ctx context.Context, dir auth.Directory, masterKey string, idleTimeout time.Duration) *Manager {
	m := &Manager{
		dir:         dir,
		masterKey:   masterKey,
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Session),
	}

	if idleTimeout > 0 {
		go m.reaperLoop(ctx)
	}

	return m
}

// FromRequest returns the session named by the request cookie, creating
// both the session and the cookie when needed.
func (m *Manager) FromRequest(w http.ResponseWriter, r *http.Request) *Session {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		if s, ok := m.Get(c.Value); ok {
			return s
		}
	}

	s := m.create()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.Secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	return s
}

// Get looks up an existing session and marks it active.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok {
		return nil, false
	}

	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()

	return s, true
}

func (m *Manager) create() *Session {
	s := &Session{
		ID:         uuid.NewString(),
		auth:       auth.NewSession(m.dir, m.masterKey),
		lastActive: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	return s
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.sessions)
}

// reaperLoop periodically removes sessions idle longer than idleTimeout.
func (m *Manager) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.reap(now.Add(-m.idleTimeout))
		}
	}
}

func (m *Manager) reap(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		s.mu.Lock()
		last := s.lastActive
		s.mu.Unlock()

		if last.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	return removed
}
