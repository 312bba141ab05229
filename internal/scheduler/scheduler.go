// Package scheduler is the month calendar engine: navigation, drag and drop
// rescheduling against no-work days, and the selected-task detail pointer.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/notify"
	"github.com/ytakahashi/crew-calendar/internal/policy"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Errors returned by drag and selection actions.
var (
	ErrDragNotAllowed = errors.New("drag not allowed")
	ErrTaskNotFound   = errors.New("task not in view")
)

// TaskWriter applies a field patch to a stored task.
type TaskWriter interface {
	UpdateTask(ctx context.Context, taskID string, patch services.TaskPatch, actor *models.User) error
}

type Config struct {
	MaxVisiblePerCell int
	AutoScroll        AutoScrollConfig
}

func DefaultConfig() Config {
	return Config{MaxVisiblePerCell: 4, AutoScroll: DefaultAutoScroll()}
}

// Outcome classifies a drop.
type Outcome string

const (
	OutcomeScheduled Outcome = "scheduled" // start and due set
	OutcomeDueMoved  Outcome = "due_moved" // only due changed
	OutcomeBlocked   Outcome = "blocked"
	OutcomeFailed    Outcome = "failed"
	OutcomeNoDrag    Outcome = "no_drag"
)

// DropResult describes what a drop did. Task carries the dates as written;
// the live feed delivers the stored version shortly after.
type DropResult struct {
	Outcome Outcome      `json:"outcome"`
	Date    string       `json:"date"`
	Reason  string       `json:"reason,omitempty"`
	Task    *models.Task `json:"task,omitempty"`
	Err     error        `json:"-"`
}

// Scheduler holds one calendar's state. Writes go through TaskWriter and are
// never made while the scheduler's lock is held, since the resulting
// snapshot may be delivered back into ApplyTasks on the same goroutine.
type Scheduler struct {
	writer   TaskWriter
	notifier notify.Notifier
	scroll   *AutoScroller
	log      *zap.Logger
	metrics  *metrics.Metrics
	cfg      Config

	// Now is replaceable in tests.
	Now func() time.Time

	mu       sync.Mutex
	viewing  calendar.Date
	actor    *models.User
	project  *models.Project
	tasks    []models.Task
	noWork   []models.NoWorkDay
	dragged  *models.Task
	selected *models.Task
}

func New(writer TaskWriter, notifier notify.Notifier, scroller Scroller, log *zap.Logger, m *metrics.Metrics, cfg Config) *Scheduler {
	if cfg.MaxVisiblePerCell <= 0 {
		cfg.MaxVisiblePerCell = DefaultConfig().MaxVisiblePerCell
	}
	s := &Scheduler{
		writer:   writer,
		notifier: notifier,
		log:      log,
		metrics:  m,
		cfg:      cfg,
		Now:      time.Now,
	}
	if scroller != nil {
		s.scroll = NewAutoScroller(scroller, cfg.AutoScroll)
	}
	s.viewing = calendar.FromTime(s.Now()).MonthStart()
	return s
}

// SetView records who is looking at which project. A drag in progress is
// cancelled if the new view no longer allows it.
func (s *Scheduler) SetView(actor *models.User, project *models.Project) {
	s.mu.Lock()
	s.actor = actor
	s.project = project
	cancel := s.dragged != nil && !policy.CanDrag(actor, project)
	if cancel {
		s.dragged = nil
	}
	s.mu.Unlock()
	if cancel {
		s.stopScroll()
	}
}

// ReadOnly reports whether the calendar only displays.
func (s *Scheduler) ReadOnly() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readOnlyLocked()
}

func (s *Scheduler) readOnlyLocked() bool {
	return !policy.CanDrag(s.actor, s.project)
}

func (s *Scheduler) ViewingMonth() calendar.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewing
}

// NavigateMonth moves the view by delta months.
func (s *Scheduler) NavigateMonth(delta int) calendar.Date {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = s.viewing.AddMonths(delta)
	return s.viewing
}

// ShowMonth jumps to the month containing d.
func (s *Scheduler) ShowMonth(d calendar.Date) {
	s.mu.Lock()
	s.viewing = d.MonthStart()
	s.mu.Unlock()
}

// GoToToday resets the view to the current month.
func (s *Scheduler) GoToToday() calendar.Date {
	today := calendar.FromTime(s.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewing = today.MonthStart()
	return s.viewing
}

// ApplyNoWorkDays replaces the no-work registry.
func (s *Scheduler) ApplyNoWorkDays(days []models.NoWorkDay) {
	s.mu.Lock()
	s.noWork = days
	s.mu.Unlock()
}

// StartDrag picks up a task in view.
func (s *Scheduler) StartDrag(taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !policy.CanDrag(s.actor, s.project) {
		return nil, ErrDragNotAllowed
	}
	t := s.findLocked(taskID)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	s.dragged = t
	return clone(t), nil
}

// Dragging returns the task being dragged, or nil.
func (s *Scheduler) Dragging() *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.dragged)
}

// DragOver reports whether the hovered date accepts a drop and, if not, why.
func (s *Scheduler) DragOver(date calendar.Date) (allowed bool, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dragged == nil {
		return false, ""
	}
	if reason, blocked := calendar.ReasonFor(date.String(), s.noWork); blocked {
		return false, reason
	}
	return true, ""
}

// PointerMoved feeds the drag pointer to the auto-scroller.
func (s *Scheduler) PointerMoved(pointerY, viewportHeight float64) {
	s.mu.Lock()
	dragging := s.dragged != nil
	s.mu.Unlock()
	if !dragging || s.scroll == nil {
		return
	}
	s.scroll.Update(pointerY, viewportHeight)
}

// Scrolling reports whether the auto-scroller is running.
func (s *Scheduler) Scrolling() bool {
	return s.scroll != nil && s.scroll.Running()
}

// EndDrag abandons a drag without dropping.
func (s *Scheduler) EndDrag() {
	s.mu.Lock()
	s.dragged = nil
	s.mu.Unlock()
	s.stopScroll()
}

// Drop places the dragged task on date. A task without a start date gets
// both dates set; one that has a start keeps it and only its due date moves.
// Every outcome clears the drag and is reported through the notifier.
func (s *Scheduler) Drop(ctx context.Context, date calendar.Date) DropResult {
	s.mu.Lock()
	task := s.dragged
	s.dragged = nil
	actor := s.actor
	reason, blocked := calendar.ReasonFor(date.String(), s.noWork)
	s.mu.Unlock()
	s.stopScroll()

	res := DropResult{Date: date.String()}
	switch {
	case task == nil:
		res.Outcome = OutcomeNoDrag
	case blocked:
		res.Outcome = OutcomeBlocked
		res.Reason = reason
		s.notifier.Notify(notify.LevelError, fmt.Sprintf("Cannot schedule on %s: %s", date, reason))
	default:
		res = s.write(ctx, task, actor, date)
	}
	s.metrics.IncDrop(string(res.Outcome))
	return res
}

func (s *Scheduler) write(ctx context.Context, task *models.Task, actor *models.User, date calendar.Date) DropResult {
	day := date.String()
	patch := services.TaskPatch{DueDate: &day}
	outcome := OutcomeDueMoved
	if task.StartDate == "" {
		patch.StartDate = &day
		outcome = OutcomeScheduled
	}

	if err := s.writer.UpdateTask(ctx, task.ID, patch, actor); err != nil {
		s.log.Error("drop failed", zap.String("task", task.ID), zap.String("date", day), zap.Error(err))
		s.notifier.Notify(notify.LevelError, "Error updating task date")
		return DropResult{Outcome: OutcomeFailed, Date: day, Err: err}
	}

	moved := clone(task)
	moved.DueDate = day
	if patch.StartDate != nil {
		moved.StartDate = day
	}
	s.notifier.Notify(notify.LevelSuccess, "Task scheduled successfully")
	return DropResult{Outcome: outcome, Date: day, Task: moved}
}

// Select points the detail panel at a task in view.
func (s *Scheduler) Select(taskID string) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.findLocked(taskID)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	s.selected = t
	return clone(t), nil
}

func (s *Scheduler) ClearSelection() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
}

// Selected returns the task in the detail panel, or nil.
func (s *Scheduler) Selected() *models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.selected)
}

// Close stops any running auto-scroll.
func (s *Scheduler) Close() {
	s.EndDrag()
}

func (s *Scheduler) stopScroll() {
	if s.scroll != nil {
		s.scroll.Stop()
	}
}

func (s *Scheduler) findLocked(id string) *models.Task {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return clone(&s.tasks[i])
		}
	}
	return nil
}

func clone(t *models.Task) *models.Task {
	if t == nil {
		return nil
	}
	c := *t
	c.AssignedTo = append([]string(nil), t.AssignedTo...)
	c.Notes = append([]models.Note(nil), t.Notes...)
	return &c
}
