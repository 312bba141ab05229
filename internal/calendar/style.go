package calendar

import (
	"fmt"
	"time"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

var categoryColors = map[string]string{
	models.CategoryPrep:             "category-prep",
	models.CategoryPaint:            "category-paint",
	models.CategoryFinalWalkthrough: "category-final",
}

// CategoryColor maps a category to its style token.
func CategoryColor(category string) string {
	if c, ok := categoryColors[category]; ok {
		return c
	}
	return "category-default"
}

// StatusIcon maps a status to its glyph; unknown statuses render as pending.
func StatusIcon(status models.TaskStatus) string {
	switch status {
	case models.StatusCompleted:
		return "✓"
	case models.StatusInProgress:
		return "◐"
	}
	return "○"
}

func StatusLabel(status models.TaskStatus) string {
	switch status {
	case models.StatusCompleted:
		return "Done"
	case models.StatusInProgress:
		return "In Progress"
	}
	return "Pending"
}

// LastUpdatedText renders how long ago t was relative to now. Anything a
// week or older falls back to the date itself.
func LastUpdatedText(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff/(24*time.Hour)))
	}
	return FormatDate(t.In(now.Location()))
}
