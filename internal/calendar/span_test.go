package calendar

import (
	"reflect"
	"testing"
	"time"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

func TestTasksForDateSpan(t *testing.T) {
	tasks := []models.Task{{ID: "t1", StartDate: "2024-03-05", DueDate: "2024-03-08"}}

	for _, day := range []string{"2024-03-05", "2024-03-06", "2024-03-07", "2024-03-08"} {
		if got := TasksForDate(tasks, MustParseDate(day)); len(got) != 1 {
			t.Errorf("%s: expected the task, got %d tasks", day, len(got))
		}
	}
	for _, day := range []string{"2024-03-04", "2024-03-09"} {
		if got := TasksForDate(tasks, MustParseDate(day)); len(got) != 0 {
			t.Errorf("%s: expected no tasks, got %d", day, len(got))
		}
	}
}

func TestSpanCrossesYearBoundary(t *testing.T) {
	task := models.Task{StartDate: "2024-12-30", DueDate: "2025-01-02"}
	if !SpansDate(&task, MustParseDate("2025-01-01")) {
		t.Error("expected span to include 2025-01-01")
	}
	if SpansDate(&task, MustParseDate("2025-01-03")) {
		t.Error("expected span to exclude 2025-01-03")
	}
}

func TestUnscheduledTasksNeverPlaced(t *testing.T) {
	tasks := []models.Task{
		{ID: "no-due", StartDate: "2024-03-05"},
		{ID: "no-start", DueDate: "2024-03-05"},
		{ID: "neither"},
	}
	start := MustParseDate("2024-03-01")
	for i := 0; i < 31; i++ {
		if got := TasksForDate(tasks, start.AddDays(i)); len(got) != 0 {
			t.Fatalf("%s: unscheduled task placed: %+v", start.AddDays(i), got)
		}
	}
}

func TestPositionOn(t *testing.T) {
	multi := models.Task{StartDate: "2024-03-05", DueDate: "2024-03-07"}
	single := models.Task{StartDate: "2024-03-05", DueDate: "2024-03-05"}

	tests := []struct {
		task *models.Task
		day  string
		want Position
	}{
		{&multi, "2024-03-05", PositionStart},
		{&multi, "2024-03-06", PositionMiddle},
		{&multi, "2024-03-07", PositionEnd},
		{&single, "2024-03-05", PositionSingle},
	}
	for _, tt := range tests {
		if got := PositionOn(tt.task, MustParseDate(tt.day)); got != tt.want {
			t.Errorf("PositionOn(%s) = %s, want %s", tt.day, got, tt.want)
		}
	}
	if PositionMiddle.ShowsLabel() || PositionEnd.ShowsLabel() {
		t.Error("continuation cells must not repeat the label")
	}
}

func TestGroupByCategory(t *testing.T) {
	if got := GroupByCategory(nil); len(got) != 0 {
		t.Errorf("expected empty mapping, got %v", got)
	}

	tasks := []models.Task{
		{ID: "a", Category: "Prep"},
		{ID: "b", Category: "Paint"},
		{ID: "c", Category: ""},
		{ID: "d", Category: "Prep"},
	}
	first := GroupByCategory(tasks)
	second := GroupByCategory(tasks)
	if !reflect.DeepEqual(first, second) {
		t.Error("grouping the same input twice should be identical")
	}
	if len(first["Prep"]) != 2 || first["Prep"][0].ID != "a" || first["Prep"][1].ID != "d" {
		t.Errorf("unexpected Prep group %+v", first["Prep"])
	}
	if len(first[""]) != 1 {
		t.Errorf("tasks without a category should be kept under the empty key, got %+v", first)
	}
}

func TestGroupByDateKeepsUnscheduled(t *testing.T) {
	got := GroupByDate([]models.Task{{ID: "a", DueDate: "2024-03-05"}, {ID: "b"}})
	if len(got["2024-03-05"]) != 1 || len(got[""]) != 1 {
		t.Errorf("unexpected grouping %+v", got)
	}
}

func TestLookupFallbacks(t *testing.T) {
	if CategoryColor("Roofing") != "category-default" {
		t.Error("unknown category should fall back")
	}
	if StatusIcon("archived") != "○" {
		t.Error("unknown status should fall back to the pending glyph")
	}
	if StatusIcon(models.StatusCompleted) != "✓" || StatusIcon(models.StatusInProgress) != "◐" {
		t.Error("unexpected status glyphs")
	}
}

func TestLastUpdatedText(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-2 * 24 * time.Hour), "2d ago"},
		{now.Add(-10 * 24 * time.Hour), "2024-02-29"},
		{time.Time{}, ""},
	}
	for _, tt := range tests {
		if got := LastUpdatedText(tt.at, now); got != tt.want {
			t.Errorf("LastUpdatedText(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}
