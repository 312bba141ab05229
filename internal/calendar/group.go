package calendar

import (
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// GroupByDate buckets tasks by due date. Unscheduled tasks land under "".
func GroupByDate(tasks []models.Task) map[string][]models.Task {
	out := make(map[string][]models.Task)
	for _, t := range tasks {
		out[t.DueDate] = append(out[t.DueDate], t)
	}
	return out
}

// GroupByCategory buckets tasks by category, keeping "" as its own key.
func GroupByCategory(tasks []models.Task) map[string][]models.Task {
	out := make(map[string][]models.Task)
	for _, t := range tasks {
		out[t.Category] = append(out[t.Category], t)
	}
	return out
}

// GroupTemplates returns the active templates of each category in their
// original order.
func GroupTemplates(templates []models.TaskTemplate) map[string][]models.TaskTemplate {
	out := make(map[string][]models.TaskTemplate)
	for _, t := range templates {
		if !t.Active {
			continue
		}
		out[t.Category] = append(out[t.Category], t)
	}
	return out
}

// SplitScheduled separates tasks with a due date from the unscheduled tray.
func SplitScheduled(tasks []models.Task) (scheduled, unscheduled []models.Task) {
	for _, t := range tasks {
		if t.DueDate == "" {
			unscheduled = append(unscheduled, t)
		} else {
			scheduled = append(scheduled, t)
		}
	}
	return scheduled, unscheduled
}
