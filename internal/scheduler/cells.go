package scheduler

import (
	"fmt"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// Placement is one task drawn in one cell. Continuation cells carry no
// label.
type Placement struct {
	TaskID    string            `json:"taskId"`
	Label     string            `json:"label,omitempty"`
	Icon      string            `json:"icon,omitempty"`
	Color     string            `json:"color"`
	Status    models.TaskStatus `json:"status"`
	Position  calendar.Position `json:"position"`
	ProjectID string            `json:"projectId"`
}

// Cell is one day of the month view. Tasks holds at most the configured
// number of visible placements; TaskIDs lists every task on the day so all
// of them stay selectable.
type Cell struct {
	Date           calendar.Date `json:"date"`
	IsCurrentMonth bool          `json:"isCurrentMonth"`
	IsToday        bool          `json:"isToday"`
	Blocked        bool          `json:"blocked"`
	Reason         string        `json:"reason,omitempty"`
	Tasks          []Placement   `json:"tasks"`
	More           int           `json:"more"`
	MoreLabel      string        `json:"moreLabel,omitempty"`
	TaskIDs        []string      `json:"taskIds"`
}

// Stats are the summary counts beside the calendar.
type Stats struct {
	Total       int            `json:"total"`
	Unscheduled int            `json:"unscheduled"`
	Completed   int            `json:"completed"`
	ByCategory  map[string]int `json:"byCategory"`
}

// Month is everything needed to draw the calendar for the viewed month.
type Month struct {
	Month       calendar.Date `json:"month"`
	Label       string        `json:"label"`
	Weekdays    []string      `json:"weekdays"`
	Cells       []Cell        `json:"cells"`
	ReadOnly    bool          `json:"readOnly"`
	Dragging    string        `json:"dragging,omitempty"`
	Selected    *models.Task  `json:"selected,omitempty"`
	Unscheduled []models.Task `json:"unscheduled"`
	Stats       Stats         `json:"stats"`
}

// Month lays out the viewed month from the current snapshots.
func (s *Scheduler) Month() Month {
	today := calendar.FromTime(s.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	scheduled, unscheduled := calendar.SplitScheduled(s.tasks)
	m := Month{
		Month:       s.viewing,
		Label:       s.viewing.MonthLabel(),
		Weekdays:    calendar.WeekdayLabels,
		Cells:       Layout(s.viewing, scheduled, s.noWork, today, s.cfg.MaxVisiblePerCell),
		Unscheduled: unscheduled,
		Stats:       Summarize(s.tasks),
		Selected:    clone(s.selected),
	}
	m.ReadOnly = s.readOnlyLocked()
	if s.dragged != nil {
		m.Dragging = s.dragged.ID
	}
	if m.Unscheduled == nil {
		m.Unscheduled = []models.Task{}
	}
	return m
}

// Layout places tasks on the grid of month. A task appears on every day of
// its span, labelled only on its first day (or its only day).
func Layout(month calendar.Date, tasks []models.Task, noWork []models.NoWorkDay, today calendar.Date, maxVisible int) []Cell {
	grid := calendar.MonthGrid(month)
	cells := make([]Cell, 0, len(grid))
	for _, day := range grid {
		c := Cell{
			Date:           day.Date,
			IsCurrentMonth: day.IsCurrentMonth,
			IsToday:        day.Date == today,
			Tasks:          []Placement{},
			TaskIDs:        []string{},
		}
		c.Reason, c.Blocked = calendar.ReasonFor(day.Date.String(), noWork)

		onDay := calendar.TasksForDate(tasks, day.Date)
		for i := range onDay {
			t := &onDay[i]
			c.TaskIDs = append(c.TaskIDs, t.ID)
			if maxVisible > 0 && len(c.Tasks) >= maxVisible {
				c.More++
				continue
			}
			c.Tasks = append(c.Tasks, place(t, day.Date))
		}
		if c.More > 0 {
			c.MoreLabel = fmt.Sprintf("+%d more", c.More)
		}
		cells = append(cells, c)
	}
	return cells
}

func place(t *models.Task, d calendar.Date) Placement {
	pos := calendar.PositionOn(t, d)
	p := Placement{
		TaskID:    t.ID,
		Color:     calendar.CategoryColor(t.Category),
		Status:    t.Status,
		Position:  pos,
		ProjectID: t.ProjectID,
	}
	if pos.ShowsLabel() {
		p.Label = t.Name
		p.Icon = calendar.StatusIcon(t.Status)
	}
	return p
}

// Summarize counts tasks for the side panel.
func Summarize(tasks []models.Task) Stats {
	st := Stats{Total: len(tasks), ByCategory: make(map[string]int)}
	for _, t := range tasks {
		if t.DueDate == "" {
			st.Unscheduled++
		}
		if t.Status == models.StatusCompleted {
			st.Completed++
		}
		st.ByCategory[t.Category]++
	}
	return st
}
