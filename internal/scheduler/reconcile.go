package scheduler

import (
	"slices"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

// ApplyTasks replaces the task list with a new snapshot and refreshes the
// selected and dragged pointers from it. The selection is only replaced
// when a detail field changed; a selected task missing from the snapshot
// clears the selection. It reports whether the selection changed.
func (s *Scheduler) ApplyTasks(tasks []models.Task) (selectionChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = tasks

	if s.dragged != nil {
		if t := s.findLocked(s.dragged.ID); t != nil {
			s.dragged = t
		}
	}

	if s.selected == nil {
		return false
	}
	fresh := s.findLocked(s.selected.ID)
	if fresh == nil {
		s.selected = nil
		return true
	}
	if !DetailChanged(s.selected, fresh) {
		return false
	}
	s.selected = fresh
	return true
}

// DetailChanged reports whether any field shown in the task detail panel
// differs between a and b.
func DetailChanged(a, b *models.Task) bool {
	return a.Status != b.Status ||
		a.StartDate != b.StartDate ||
		a.DueDate != b.DueDate ||
		a.JobDetails != b.JobDetails ||
		!slices.Equal(a.AssignedTo, b.AssignedTo) ||
		!slices.Equal(a.Notes, b.Notes)
}

// Tasks returns the current snapshot.
func (s *Scheduler) Tasks() []models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Task(nil), s.tasks...)
}
