package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/notify"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

type recordedPatch struct {
	taskID string
	patch  services.TaskPatch
	actor  string
}

type fakeWriter struct {
	mu      sync.Mutex
	patches []recordedPatch
	err     error
}

func (w *fakeWriter) UpdateTask(ctx context.Context, taskID string, patch services.TaskPatch, actor *models.User) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.patches = append(w.patches, recordedPatch{taskID: taskID, patch: patch, actor: models.ActorName(actor)})
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	lvls []notify.Level
}

func (n *fakeNotifier) Notify(level notify.Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lvls = append(n.lvls, level)
	n.msgs = append(n.msgs, message)
}

func (n *fakeNotifier) last() (notify.Level, string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		return "", ""
	}
	return n.lvls[len(n.lvls)-1], n.msgs[len(n.msgs)-1]
}

var (
	admin   = &models.User{ID: "a1", DisplayName: "Alex", UserType: models.UserTypeAdmin}
	crew    = &models.User{ID: "c1", DisplayName: "Casey", UserType: models.UserTypeCrew}
	owner   = &models.User{ID: "h1", DisplayName: "Harper", UserType: models.UserTypeHomeowner, ProjectID: "P1"}
	project = &models.Project{ID: "P1", Name: "Maple St"}
)

type fixture struct {
	s        *Scheduler
	writer   *fakeWriter
	notifier *fakeNotifier
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T, tasks ...models.Task) *fixture {
	t.Helper()
	f := &fixture{writer: &fakeWriter{}, notifier: &fakeNotifier{}, metrics: metrics.New()}
	f.s = New(f.writer, f.notifier, nil, zap.NewNop(), f.metrics, DefaultConfig())
	f.s.Now = func() time.Time { return time.Date(2024, 6, 12, 10, 0, 0, 0, time.Local) }
	f.s.SetView(admin, project)
	f.s.ApplyTasks(tasks)
	t.Cleanup(f.s.Close)
	return f
}

func TestDropSetsBothDatesOnUnstartedTask(t *testing.T) {
	f := newFixture(t, models.Task{ID: "T1", Name: "Prime", ProjectID: "P1"})

	if _, err := f.s.StartDrag("T1"); err != nil {
		t.Fatalf("StartDrag: %v", err)
	}
	res := f.s.Drop(context.Background(), calendar.MustParseDate("2024-06-10"))

	if res.Outcome != OutcomeScheduled {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	if len(f.writer.patches) != 1 {
		t.Fatalf("writes = %d, want 1", len(f.writer.patches))
	}
	p := f.writer.patches[0].patch
	if p.StartDate == nil || *p.StartDate != "2024-06-10" || p.DueDate == nil || *p.DueDate != "2024-06-10" {
		t.Errorf("patch = %+v", p)
	}
	if f.writer.patches[0].actor != "Alex" {
		t.Errorf("actor = %q", f.writer.patches[0].actor)
	}
	if res.Task.StartDate != "2024-06-10" || res.Task.DueDate != "2024-06-10" {
		t.Errorf("result task = %+v", res.Task)
	}
	if f.s.Dragging() != nil {
		t.Error("drag should be cleared after drop")
	}
	if lvl, msg := f.notifier.last(); lvl != notify.LevelSuccess || msg != "Task scheduled successfully" {
		t.Errorf("toast = %s %q", lvl, msg)
	}
}

func TestDropKeepsExistingStartDate(t *testing.T) {
	f := newFixture(t, models.Task{ID: "T2", ProjectID: "P1", StartDate: "2024-06-01", DueDate: "2024-06-05"})

	f.s.StartDrag("T2")
	res := f.s.Drop(context.Background(), calendar.MustParseDate("2024-06-15"))

	if res.Outcome != OutcomeDueMoved {
		t.Fatalf("outcome = %q", res.Outcome)
	}
	p := f.writer.patches[0].patch
	if p.StartDate != nil {
		t.Errorf("start date must not be written, got %q", *p.StartDate)
	}
	if p.DueDate == nil || *p.DueDate != "2024-06-15" {
		t.Errorf("due = %v", p.DueDate)
	}
	if res.Task.StartDate != "2024-06-01" || res.Task.DueDate != "2024-06-15" {
		t.Errorf("result task = %+v", res.Task)
	}
}

func TestDropOnNoWorkDayIsRejected(t *testing.T) {
	f := newFixture(t, models.Task{ID: "T1", ProjectID: "P1", StartDate: "2024-12-20", DueDate: "2024-12-22"})
	f.s.ApplyNoWorkDays([]models.NoWorkDay{{ID: "n1", Date: "2024-12-25", Reason: "Holiday"}})
	xmas := calendar.MustParseDate("2024-12-25")

	f.s.StartDrag("T1")
	allowed, reason := f.s.DragOver(xmas)
	if allowed || reason != "Holiday" {
		t.Errorf("DragOver = %v %q", allowed, reason)
	}
	if ok, _ := f.s.DragOver(calendar.MustParseDate("2024-12-26")); !ok {
		t.Error("an ordinary day should accept the drop")
	}

	res := f.s.Drop(context.Background(), xmas)
	if res.Outcome != OutcomeBlocked || res.Reason != "Holiday" {
		t.Fatalf("result = %+v", res)
	}
	if len(f.writer.patches) != 0 {
		t.Errorf("blocked drop wrote %+v", f.writer.patches)
	}
	if lvl, msg := f.notifier.last(); lvl != notify.LevelError || msg != "Cannot schedule on 2024-12-25: Holiday" {
		t.Errorf("toast = %s %q", lvl, msg)
	}
	if f.s.Dragging() != nil {
		t.Error("drag should be cleared after a blocked drop")
	}
	if got := testutil.ToFloat64(f.metrics.DropsTotal.WithLabelValues("blocked")); got != 1 {
		t.Errorf("blocked drops = %v", got)
	}
}

func TestDropWriteFailureIsReportedNotReturned(t *testing.T) {
	f := newFixture(t, models.Task{ID: "T1", ProjectID: "P1"})
	f.writer.err = errors.New("unavailable")

	f.s.StartDrag("T1")
	res := f.s.Drop(context.Background(), calendar.MustParseDate("2024-06-10"))

	if res.Outcome != OutcomeFailed || res.Err == nil {
		t.Fatalf("result = %+v", res)
	}
	if lvl, msg := f.notifier.last(); lvl != notify.LevelError || msg != "Error updating task date" {
		t.Errorf("toast = %s %q", lvl, msg)
	}
	if f.s.Dragging() != nil {
		t.Error("drag should be cleared after a failed drop")
	}
}

func TestDropWithoutDrag(t *testing.T) {
	f := newFixture(t)
	if res := f.s.Drop(context.Background(), calendar.MustParseDate("2024-06-10")); res.Outcome != OutcomeNoDrag {
		t.Errorf("outcome = %q", res.Outcome)
	}
	if _, msg := f.notifier.last(); msg != "" {
		t.Errorf("unexpected toast %q", msg)
	}
}

func TestStartDragPermissions(t *testing.T) {
	tests := []struct {
		name    string
		user    *models.User
		project *models.Project
		taskID  string
		wantErr error
	}{
		{"admin in project", admin, project, "T1", nil},
		{"admin in all-tasks view", admin, models.AllTasksProject(), "T1", ErrDragNotAllowed},
		{"crew", crew, project, "T1", ErrDragNotAllowed},
		{"homeowner", owner, project, "T1", ErrDragNotAllowed},
		{"unknown task", admin, project, "nope", ErrTaskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, models.Task{ID: "T1", ProjectID: "P1"})
			f.s.SetView(tt.user, tt.project)
			_, err := f.s.StartDrag(tt.taskID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetViewCancelsDisallowedDrag(t *testing.T) {
	f := newFixture(t, models.Task{ID: "T1", ProjectID: "P1"})
	f.s.StartDrag("T1")
	f.s.SetView(admin, models.AllTasksProject())
	if f.s.Dragging() != nil {
		t.Error("switching to the all-tasks view should cancel the drag")
	}
	if !f.s.ReadOnly() {
		t.Error("all-tasks view should be read only")
	}
}

func TestNavigation(t *testing.T) {
	f := newFixture(t)
	f.s.Now = func() time.Time { return time.Date(2024, 12, 15, 23, 30, 0, 0, time.Local) }
	f.s.GoToToday()

	if got := f.s.NavigateMonth(1); got != calendar.NewDate(2025, time.January, 1) {
		t.Errorf("next = %v", got)
	}
	if got := f.s.NavigateMonth(-2); got != calendar.NewDate(2024, time.November, 1) {
		t.Errorf("back two = %v", got)
	}
	if got := f.s.GoToToday(); got != calendar.NewDate(2024, time.December, 1) {
		t.Errorf("today = %v", got)
	}
}

func TestApplyTasksReconcilesSelection(t *testing.T) {
	base := models.Task{ID: "T1", Name: "Prime", ProjectID: "P1", Status: models.StatusPending, AssignedTo: []string{"Casey"}}
	f := newFixture(t, base)
	if _, err := f.s.Select("T1"); err != nil {
		t.Fatal(err)
	}

	renamed := base
	renamed.Name = "Prime again"
	if f.s.ApplyTasks([]models.Task{renamed}) {
		t.Error("a name change is not a detail change")
	}
	if f.s.Selected().Name != "Prime" {
		t.Error("selection should keep its reference when details match")
	}

	noted := base
	noted.Notes = []models.Note{{ID: "n1", Text: "second coat"}}
	if !f.s.ApplyTasks([]models.Task{noted}) {
		t.Error("a new note should refresh the selection")
	}
	if got := f.s.Selected(); len(got.Notes) != 1 {
		t.Errorf("selected notes = %+v", got.Notes)
	}

	if !f.s.ApplyTasks([]models.Task{{ID: "T9"}}) {
		t.Error("a deleted task should change the selection")
	}
	if f.s.Selected() != nil {
		t.Error("selection should clear when the task is gone")
	}
}

func TestDetailChanged(t *testing.T) {
	base := models.Task{Status: models.StatusPending, AssignedTo: []string{"A", "B"}, StartDate: "2024-06-01", DueDate: "2024-06-02", JobDetails: "x"}
	tests := []struct {
		name   string
		mutate func(*models.Task)
		want   bool
	}{
		{"identical", func(*models.Task) {}, false},
		{"assignees cleared", func(t *models.Task) { t.AssignedTo = nil }, true},
		{"assignee order", func(t *models.Task) { t.AssignedTo = []string{"B", "A"} }, true},
		{"status", func(t *models.Task) { t.Status = models.StatusCompleted }, true},
		{"start", func(t *models.Task) { t.StartDate = "" }, true},
		{"due", func(t *models.Task) { t.DueDate = "2024-06-03" }, true},
		{"job details", func(t *models.Task) { t.JobDetails = "y" }, true},
		{"notes", func(t *models.Task) { t.Notes = []models.Note{{ID: "n"}} }, true},
		{"category only", func(t *models.Task) { t.Category = "Prep" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := *clone(&base)
			tt.mutate(&b)
			if got := DetailChanged(&base, &b); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
