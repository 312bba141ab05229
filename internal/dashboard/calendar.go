package dashboard

import (
	"context"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/scheduler"
)

// CalendarView is the month calendar plus session context.
type CalendarView struct {
	scheduler.Month
	Project      *models.Project `json:"project,omitempty"`
	ScrollOffset int             `json:"scrollOffset"`
	Busy         []string        `json:"busy"`
}

// Calendar renders the viewed month. A zero month keeps the current one.
func (s *Session) Calendar(month calendar.Date) (CalendarView, error) {
	if _, err := s.enter(); err != nil {
		return CalendarView{}, err
	}
	if !month.IsZero() {
		s.sched.ShowMonth(month)
	}
	return CalendarView{
		Month:        s.sched.Month(),
		Project:      s.Selected(),
		ScrollOffset: s.scroll.Y(),
		Busy:         s.Busy(),
	}, nil
}

// PrintView is the calendar grid alone, for printing.
type PrintView struct {
	Label    string           `json:"label"`
	Project  string           `json:"project,omitempty"`
	Weekdays []string         `json:"weekdays"`
	Cells    []scheduler.Cell `json:"cells"`
}

func (s *Session) PrintCalendar() (PrintView, error) {
	if _, err := s.enter(); err != nil {
		return PrintView{}, err
	}
	m := s.sched.Month()
	pv := PrintView{Label: m.Label, Weekdays: m.Weekdays, Cells: m.Cells}
	if p := s.Selected(); p != nil {
		pv.Project = p.Name
	}
	return pv, nil
}

func (s *Session) NavigateMonth(delta int) (calendar.Date, error) {
	if _, err := s.enter(); err != nil {
		return calendar.Date{}, err
	}
	return s.sched.NavigateMonth(delta), nil
}

func (s *Session) GoToToday() (calendar.Date, error) {
	if _, err := s.enter(); err != nil {
		return calendar.Date{}, err
	}
	return s.sched.GoToToday(), nil
}

// StartDrag picks up a task for rescheduling.
func (s *Session) StartDrag(taskID string) (*models.Task, error) {
	if _, err := s.enter(); err != nil {
		return nil, err
	}
	return s.sched.StartDrag(taskID)
}

// DragOver reports whether date accepts the dragged task and feeds the
// pointer position to auto-scroll.
func (s *Session) DragOver(date calendar.Date, pointerY, viewportHeight float64) (bool, string, error) {
	if _, err := s.enter(); err != nil {
		return false, "", err
	}
	if viewportHeight > 0 {
		s.sched.PointerMoved(pointerY, viewportHeight)
	}
	ok, reason := s.sched.DragOver(date)
	return ok, reason, nil
}

func (s *Session) EndDrag() error {
	if _, err := s.enter(); err != nil {
		return err
	}
	s.sched.EndDrag()
	return nil
}

// Drop places the dragged task on date. Assigned crew with a linked LINE
// account are told about the new dates.
func (s *Session) Drop(ctx context.Context, date calendar.Date) (scheduler.DropResult, error) {
	defer s.Begin("drop")()
	if _, err := s.enter(); err != nil {
		s.sched.EndDrag()
		return scheduler.DropResult{}, err
	}
	res := s.sched.Drop(ctx, date)
	if res.Task != nil {
		if n := s.deps.Pusher.TaskScheduled(*res.Task, s.feeds.Crew.Items()); n > 0 {
			s.log.Debug("crew notified", zap.String("task", res.Task.ID), zap.Int("pushes", n))
		}
	}
	return res, nil
}

// SelectTask opens a task in the detail panel; "" closes it.
func (s *Session) SelectTask(taskID string) (*TaskView, error) {
	if _, err := s.enter(); err != nil {
		return nil, err
	}
	if taskID == "" {
		s.sched.ClearSelection()
		return nil, nil
	}
	t, err := s.sched.Select(taskID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	for _, p := range s.feeds.Projects.Items() {
		names[p.ID] = p.Name
	}
	v := view(*t, names, s.deps.Service.Now())
	return &v, nil
}
