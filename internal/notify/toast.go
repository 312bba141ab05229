// Package notify carries short-lived user notifications: in-session toasts
// and LINE pushes to crew members.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

// Toast is one dismissible notification.
type Toast struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier reports the outcome of an action to the user who made it.
type Notifier interface {
	Notify(level Level, message string)
}

// Toasts is a per-session notification channel. Entries expire after ttl or
// when dismissed.
type Toasts struct {
	ttl time.Duration

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string

	mu    sync.Mutex
	items []Toast
}

var _ Notifier = (*Toasts)(nil)

func NewToasts(ttl time.Duration) *Toasts {
	return &Toasts{
		ttl:   ttl,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

func (t *Toasts) Notify(level Level, message string) {
	now := t.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	t.items = append(t.items, Toast{
		ID:        t.NewID(),
		Level:     level,
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(t.ttl),
	})
}

func (t *Toasts) Success(message string) { t.Notify(LevelSuccess, message) }
func (t *Toasts) Error(message string)   { t.Notify(LevelError, message) }
func (t *Toasts) Info(message string)    { t.Notify(LevelInfo, message) }

// List returns the live toasts, oldest first.
func (t *Toasts) List() []Toast {
	now := t.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(now)
	return append([]Toast(nil), t.items...)
}

// Dismiss removes a toast. It reports false if id is unknown or expired.
func (t *Toasts) Dismiss(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.items {
		if t.items[i].ID == id {
			t.items = append(t.items[:i], t.items[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Toasts) pruneLocked(now time.Time) {
	kept := t.items[:0]
	for _, item := range t.items {
		if now.Before(item.ExpiresAt) {
			kept = append(kept, item)
		}
	}
	t.items = kept
}
