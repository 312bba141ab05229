// Package dashboard composes live feeds, the calendar engine and the
// notification channel into one session per signed-in user.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/live"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/notify"
	"github.com/ytakahashi/crew-calendar/internal/policy"
	"github.com/ytakahashi/crew-calendar/internal/scheduler"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Errors returned by session actions.
var (
	ErrSessionClosed   = errors.New("session closed")
	ErrForbidden       = errors.New("not permitted")
	ErrDisabled        = errors.New("account disabled")
	ErrProjectNotFound = errors.New("project not found")
	ErrTaskNotFound    = errors.New("task not found")
)

// Deps are shared by every session.
type Deps struct {
	Service  *services.Service
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Pusher   *notify.LinePusher
	Calendar scheduler.Config
	ToastTTL time.Duration
}

// Session is one user's dashboard. Its live queries run on a context owned
// by the session, not by any single request, and end on Close.
//
// Feed observers run while the store is delivering a snapshot. They only
// update local state; anything that writes or opens a query runs from a
// request with s.mu released. A profile change that needs new scopes is
// marked stale and applied by the next request.
type Session struct {
	ID string

	deps   Deps
	log    *zap.Logger
	feeds  *live.Feeds
	sched  *scheduler.Scheduler
	toasts *notify.Toasts
	scroll *scheduler.Offset

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	user     *models.User
	selected *models.Project
	busy     map[string]int
	lastSeen time.Time
	stale    bool
	closed   bool
	removers []func()
}

// Open starts a session for u and scopes its feeds.
func Open(id string, u *models.User, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	toasts := notify.NewToasts(deps.ToastTTL)
	scroll := &scheduler.Offset{}
	log := deps.Log.With(zap.String("session", id), zap.String("user", u.ID))
	s := &Session{
		ID:       id,
		deps:     deps,
		log:      log,
		feeds:    live.NewFeeds(deps.Service.Store(), log, deps.Metrics),
		sched:    scheduler.New(deps.Service, toasts, scroll, log, deps.Metrics, deps.Calendar),
		toasts:   toasts,
		scroll:   scroll,
		ctx:      ctx,
		cancel:   cancel,
		user:     u,
		busy:     make(map[string]int),
		lastSeen: deps.Service.Now(),
	}
	s.sched.Now = deps.Service.Now
	s.sched.GoToToday()

	s.removers = append(s.removers,
		s.feeds.Tasks.OnChange(func(tasks []models.Task) {
			if !s.crewView() {
				s.sched.ApplyTasks(tasks)
			}
		}),
		s.feeds.CrewTasks.OnChange(func(tasks []models.Task) {
			if s.crewView() {
				s.sched.ApplyTasks(tasks)
			}
		}),
		s.feeds.NoWorkDays.OnChange(s.sched.ApplyNoWorkDays),
		s.feeds.Projects.OnChange(s.onProjects),
		s.feeds.Profile.OnChange(s.onProfile),
	)

	s.sched.SetView(u, nil)
	s.feeds.ScopeUser(ctx, u)
	s.feeds.ScopeTasks(ctx, u, nil)
	if s.crewView() {
		s.sched.ApplyTasks(s.feeds.CrewTasks.Items())
	}
	log.Info("session opened", zap.String("userType", string(u.UserType)))
	return s
}

func (s *Session) crewView() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.UserType == models.UserTypeCrew
}

// onProjects keeps the selected project fresh and auto-selects a
// homeowner's only project. A selected project that is gone from the
// snapshot is deselected. The homeowner task feed is already pinned to
// their project, so only other users' task feeds are rescoped, and the
// empty scope opens no query.
func (s *Session) onProjects(projects []models.Project) {
	s.mu.Lock()
	u := s.user
	var pick *models.Project
	lost := false
	switch {
	case s.selected == nil && u.UserType == models.UserTypeHomeowner && len(projects) > 0:
		pick = &projects[0]
	case s.selected != nil && !s.selected.IsAllTasks():
		lost = true
		for i := range projects {
			if projects[i].ID == s.selected.ID {
				pick = &projects[i]
				lost = false
			}
		}
	}
	switch {
	case pick != nil:
		p := *pick
		s.selected = &p
	case lost:
		s.selected = nil
	}
	selected := s.selected
	s.mu.Unlock()

	switch {
	case pick != nil:
		s.sched.SetView(u, selected)
	case lost:
		s.log.Info("selected project removed")
		s.sched.ClearSelection()
		s.sched.SetView(u, nil)
		if u.UserType != models.UserTypeHomeowner {
			s.feeds.ScopeTasks(s.ctx, u, nil)
		}
	}
}

// onProfile tracks the user's own document. Changes to what the feeds are
// scoped by are applied on the next request.
func (s *Session) onProfile(users []models.User) {
	if len(users) != 1 {
		return
	}
	fresh := users[0]
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	old := s.user
	if fresh.UserType != old.UserType || fresh.ProjectID != old.ProjectID || fresh.DisplayName != old.DisplayName {
		s.stale = true
	}
	s.user = &fresh
	s.mu.Unlock()

	if fresh.Disabled && !old.Disabled {
		s.log.Info("account disabled; refusing further requests")
	}
}

// User returns the signed-in profile.
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *s.user
	return &u
}

// Capabilities is what the user may do right now.
func (s *Session) Capabilities() policy.Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return policy.For(s.user)
}

// Selected returns the selected project, or nil.
func (s *Session) Selected() *models.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	p := *s.selected
	return &p
}

// enter marks the session used and fails once it is closed or the account
// is disabled. It applies a pending profile change first.
func (s *Session) enter() (*models.User, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.user.Disabled {
		s.mu.Unlock()
		return nil, ErrDisabled
	}
	s.lastSeen = s.deps.Service.Now()
	u := *s.user
	stale := s.stale
	s.mu.Unlock()

	if stale {
		s.rescope(&u)
	}
	return &u, nil
}

// Begin flags action as in progress. The returned func clears the flag and
// must run on every exit path.
func (s *Session) Begin(action string) (end func()) {
	s.mu.Lock()
	s.busy[action]++
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.busy[action]--; s.busy[action] <= 0 {
				delete(s.busy, action)
			}
			s.mu.Unlock()
		})
	}
}

// Busy lists the actions still in progress, sorted.
func (s *Session) Busy() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.busy))
	for a := range s.busy {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Toasts is the session's notification channel.
func (s *Session) Toasts() *notify.Toasts {
	return s.toasts
}

// Feeds exposes the live queries, mainly for inspection.
func (s *Session) Feeds() *live.Feeds {
	return s.feeds
}

// ScrollOffset is the calendar scroll position driven by auto-scroll.
func (s *Session) ScrollOffset() int {
	return s.scroll.Y()
}

// Refresh reloads the user's profile and rescopes feeds if their identity,
// type or project changed.
func (s *Session) Refresh(ctx context.Context) error {
	u, err := s.enter()
	if err != nil {
		return err
	}
	fresh, err := s.deps.Service.GetUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("refreshing profile: %w", err)
	}
	s.rescope(fresh)
	return nil
}

func (s *Session) rescope(u *models.User) {
	s.mu.Lock()
	s.user = u
	s.stale = false
	switch {
	case u.UserType == models.UserTypeHomeowner:
		if s.selected != nil && s.selected.ID != u.ProjectID {
			s.selected = nil
		}
	case !policy.For(u).SelectProject:
		s.selected = nil
	}
	selected := s.selected
	s.mu.Unlock()

	s.sched.SetView(u, selected)
	s.feeds.ScopeUser(s.ctx, u)
	s.feeds.ScopeTasks(s.ctx, u, selected)
	if u.UserType == models.UserTypeCrew {
		s.sched.ApplyTasks(s.feeds.CrewTasks.Items())
	} else {
		s.sched.ApplyTasks(s.feeds.Tasks.Items())
	}
}

// Close ends every live query and stops auto-scroll. It is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	removers := s.removers
	s.removers = nil
	s.mu.Unlock()

	for _, rm := range removers {
		rm()
	}
	s.sched.Close()
	s.feeds.Close()
	s.cancel()
	s.log.Info("session closed")
}

// report turns an action result into a toast and passes err through.
func (s *Session) report(err error, failed, succeeded string) error {
	var verr *services.ValidationError
	switch {
	case err == nil:
		if succeeded != "" {
			s.toasts.Success(succeeded)
		}
	case errors.As(err, &verr):
		s.toasts.Error(verr.Message)
	case errors.Is(err, ErrForbidden):
	default:
		s.toasts.Error(failed)
	}
	return err
}
