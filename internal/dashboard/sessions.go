package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Identity is what the external identity service asserts about a caller.
type Identity struct {
	UID   string
	Email string
	Name  string
}

// Sessions keeps one dashboard session per user and closes idle ones.
type Sessions struct {
	deps Deps
	idle time.Duration

	mu     sync.Mutex
	byUser map[string]*Session
	closed bool
}

func NewSessions(deps Deps, idle time.Duration) *Sessions {
	return &Sessions{
		deps:   deps,
		idle:   idle,
		byUser: make(map[string]*Session),
	}
}

// Get returns the caller's session, opening one on first use. Opening
// bootstraps the profile. Disabled accounts are refused, and an open
// session whose account was disabled since is closed.
func (m *Sessions) Get(ctx context.Context, id Identity) (*Session, error) {
	if id.UID == "" {
		return nil, errors.New("missing user id")
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s, ok := m.byUser[id.UID]; ok {
		m.mu.Unlock()
		if _, err := s.enter(); err != nil {
			if errors.Is(err, ErrDisabled) {
				m.remove(id.UID, s)
			}
			return nil, err
		}
		return s, nil
	}
	m.mu.Unlock()

	u, err := m.deps.Service.EnsureProfile(ctx, id.UID, id.Email, id.Name)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	if u.Disabled {
		return nil, ErrDisabled
	}

	s := Open(uuid.NewString(), u, m.deps)

	m.mu.Lock()
	if existing, ok := m.byUser[id.UID]; ok {
		m.mu.Unlock()
		s.Close()
		return existing, nil
	}
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, ErrSessionClosed
	}
	m.byUser[id.UID] = s
	n := len(m.byUser)
	m.mu.Unlock()

	m.deps.Metrics.ActiveSessions.Set(float64(n))
	return s, nil
}

// Lookup returns an open session without creating one.
func (m *Sessions) Lookup(uid string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byUser[uid]
	return s, ok
}

// FindByLineUser returns the open session whose user is linked to a LINE
// account.
func (m *Sessions) FindByLineUser(lineUserID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byUser {
		if s.User().LineUserID == lineUserID {
			return s, true
		}
	}
	return nil, false
}

// End closes the user's session. It reports whether one was open.
func (m *Sessions) End(uid string) bool {
	m.mu.Lock()
	s, ok := m.byUser[uid]
	delete(m.byUser, uid)
	n := len(m.byUser)
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.Close()
	m.deps.Metrics.ActiveSessions.Set(float64(n))
	return true
}

// remove closes s if it is still the user's session.
func (m *Sessions) remove(uid string, s *Session) {
	m.mu.Lock()
	if m.byUser[uid] != s {
		m.mu.Unlock()
		return
	}
	delete(m.byUser, uid)
	n := len(m.byUser)
	m.mu.Unlock()
	s.Close()
	m.deps.Metrics.ActiveSessions.Set(float64(n))
}

// Count is the number of open sessions.
func (m *Sessions) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many it closed.
func (m *Sessions) Sweep() int {
	cutoff := m.deps.Service.Now().Add(-m.idle)
	m.mu.Lock()
	var stale []*Session
	for uid, s := range m.byUser {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.byUser, uid)
		}
	}
	n := len(m.byUser)
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		m.deps.Metrics.ActiveSessions.Set(float64(n))
		m.deps.Log.Info("closed idle sessions", zap.Int("closed", len(stale)), zap.Int("open", n))
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (m *Sessions) Run(ctx context.Context) {
	interval := m.idle / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Close ends every session; later Get calls fail.
func (m *Sessions) Close() {
	m.mu.Lock()
	m.closed = true
	all := m.byUser
	m.byUser = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
	m.deps.Metrics.ActiveSessions.Set(0)
}

// Service exposes the shared mutation service.
func (m *Sessions) Service() *services.Service {
	return m.deps.Service
}
