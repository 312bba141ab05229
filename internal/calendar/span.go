package calendar

import (
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// Position is where a date falls inside a task's span.
type Position string

const (
	PositionSingle Position = "single"
	PositionStart  Position = "start"
	PositionMiddle Position = "middle"
	PositionEnd    Position = "end"
)

// ShowsLabel reports whether the task's name is drawn at this position.
func (p Position) ShowsLabel() bool {
	return p == PositionSingle || p == PositionStart
}

// Span returns the inclusive date range of t. ok is false when either end
// is unset or unparseable.
func Span(t *models.Task) (start, end Date, ok bool) {
	if !t.Scheduled() {
		return Date{}, Date{}, false
	}
	start, err := ParseDate(t.StartDate)
	if err != nil {
		return Date{}, Date{}, false
	}
	end, err = ParseDate(t.DueDate)
	if err != nil {
		return Date{}, Date{}, false
	}
	return start, end, true
}

// SpansDate reports whether d lies within t's span, comparing calendar
// values so ranges cross month and year boundaries correctly.
func SpansDate(t *models.Task, d Date) bool {
	start, end, ok := Span(t)
	if !ok {
		return false
	}
	return !d.Before(start) && !d.After(end)
}

// PositionOn classifies d relative to t's span.
func PositionOn(t *models.Task, d Date) Position {
	start, end, ok := Span(t)
	if !ok || start == end {
		return PositionSingle
	}
	switch d {
	case start:
		return PositionStart
	case end:
		return PositionEnd
	}
	return PositionMiddle
}

// TasksForDate keeps the tasks whose span contains d, in input order.
func TasksForDate(tasks []models.Task, d Date) []models.Task {
	var out []models.Task
	for i := range tasks {
		if SpansDate(&tasks[i], d) {
			out = append(out, tasks[i])
		}
	}
	return out
}
