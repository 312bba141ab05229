package handlers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/notify"
	"github.com/ytakahashi/crew-calendar/internal/scheduler"
)

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)

	wantStatus(t, e.do(t, "", http.MethodGet, "/health", ""), http.StatusOK)

	rec := e.do(t, "", http.MethodGet, "/metrics", "")
	wantStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "crewcal_http_requests_total") {
		t.Error("metrics output is missing the request counter")
	}
}

func TestSessionHeaderRequired(t *testing.T) {
	e := newEnv(t)

	wantStatus(t, e.do(t, "", http.MethodGet, "/api/me", ""), http.StatusUnauthorized)
	if got := testutil.ToFloat64(e.metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/me", "401")); got != 1 {
		t.Errorf("401 count = %v", got)
	}

	wantStatus(t, e.do(t, "x1", http.MethodGet, "/api/me", ""), http.StatusForbidden)

	rec := e.do(t, "a1", http.MethodGet, "/api/me", "")
	wantStatus(t, rec, http.StatusOK)
	me := decode[struct {
		User         models.User `json:"user"`
		Capabilities struct {
			ManageUsers bool `json:"manageUsers"`
		} `json:"capabilities"`
	}](t, rec)
	if me.User.DisplayName != "Alex" || !me.Capabilities.ManageUsers {
		t.Errorf("me = %+v", me)
	}
	if e.sessions.Count() != 1 {
		t.Errorf("sessions = %d", e.sessions.Count())
	}

	wantStatus(t, e.do(t, "a1", http.MethodDelete, "/api/session", ""), http.StatusNoContent)
	if e.sessions.Count() != 0 {
		t.Errorf("sessions after end = %d", e.sessions.Count())
	}
}

func TestSelectAndListTasks(t *testing.T) {
	e := newEnv(t)

	projects := decode[[]models.Project](t, e.do(t, "a1", http.MethodGet, "/api/projects", ""))
	if len(projects) != 2 || !projects[0].IsAllTasks() || projects[1].ID != "P1" {
		t.Fatalf("projects = %+v", projects)
	}

	wantStatus(t, e.do(t, "a1", http.MethodPut, "/api/selection", `{"projectId":"P1"}`), http.StatusOK)
	wantStatus(t, e.do(t, "a1", http.MethodPut, "/api/selection", `{"projectId":"nope"}`), http.StatusNotFound)

	tasks := decode[[]struct {
		ID          string `json:"id"`
		ProjectName string `json:"projectName"`
	}](t, e.do(t, "a1", http.MethodGet, "/api/tasks", ""))
	if len(tasks) != 3 || tasks[0].ProjectName != "Maple St" {
		t.Errorf("tasks = %+v", tasks)
	}

	wantStatus(t, e.do(t, "a1", http.MethodDelete, "/api/tasks/nope", ""), http.StatusNotFound)
}

func TestDragAndDrop(t *testing.T) {
	e := newEnv(t)
	wantStatus(t, e.do(t, "a1", http.MethodPut, "/api/selection", `{"projectId":"P1"}`), http.StatusOK)

	wantStatus(t, e.do(t, "a1", http.MethodPost, "/api/calendar/drag", `{"taskId":"T1"}`), http.StatusOK)

	rec := e.do(t, "a1", http.MethodPost, "/api/calendar/dragover", `{"date":"2024-06-20","pointerY":300,"viewportHeight":800}`)
	wantStatus(t, rec, http.StatusOK)
	over := decode[struct {
		Allowed bool `json:"allowed"`
	}](t, rec)
	if !over.Allowed {
		t.Error("open date should accept the drop")
	}

	rec = e.do(t, "a1", http.MethodPost, "/api/calendar/drop", `{"date":"2024-06-20"}`)
	wantStatus(t, rec, http.StatusOK)
	res := decode[scheduler.DropResult](t, rec)
	if res.Outcome != scheduler.OutcomeScheduled {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if got := e.task(t, "T1"); got.StartDate != "2024-06-20" || got.DueDate != "2024-06-20" {
		t.Errorf("T1 dates = %s..%s", got.StartDate, got.DueDate)
	}

	toasts := decode[[]notify.Toast](t, e.do(t, "a1", http.MethodGet, "/api/toasts", ""))
	if len(toasts) != 1 || toasts[0].Message != "Task scheduled successfully" {
		t.Fatalf("toasts = %+v", toasts)
	}
	wantStatus(t, e.do(t, "a1", http.MethodDelete, "/api/toasts/"+toasts[0].ID, ""), http.StatusNoContent)
	wantStatus(t, e.do(t, "a1", http.MethodDelete, "/api/toasts/"+toasts[0].ID, ""), http.StatusNotFound)
}

func TestCalendarNavigation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "a1", http.MethodGet, "/api/calendar?month=2024-07", "")
	wantStatus(t, rec, http.StatusOK)
	view := decode[struct {
		Label string `json:"label"`
		Cells []any  `json:"cells"`
	}](t, rec)
	if !strings.Contains(view.Label, "July") || len(view.Cells) == 0 {
		t.Errorf("calendar = %s with %d cells", view.Label, len(view.Cells))
	}

	wantStatus(t, e.do(t, "a1", http.MethodGet, "/api/calendar?month=July", ""), http.StatusBadRequest)

	nav := decode[struct {
		Label string `json:"label"`
	}](t, e.do(t, "a1", http.MethodPost, "/api/calendar/navigate", `{"delta":1}`))
	if !strings.Contains(nav.Label, "August") {
		t.Errorf("navigate label = %s", nav.Label)
	}

	today := decode[struct {
		Label string `json:"label"`
	}](t, e.do(t, "a1", http.MethodPost, "/api/calendar/today", ""))
	if !strings.Contains(today.Label, "June") {
		t.Errorf("today label = %s", today.Label)
	}
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name   string
		uid    string
		method string
		path   string
		body   string
		want   int
	}{
		{"homeowner cannot add tasks", "h1", http.MethodPost, "/api/tasks", `{"templateId":"tp-walls"}`, http.StatusForbidden},
		{"crew cannot list users", "c1", http.MethodGet, "/api/users", "", http.StatusForbidden},
		{"invalid no-work date", "a1", http.MethodPost, "/api/no-work-days", `{"date":"nope"}`, http.StatusBadRequest},
		{"bad drop date", "a1", http.MethodPost, "/api/calendar/drop", `{"date":"06/20"}`, http.StatusBadRequest},
		{"malformed body", "a1", http.MethodPost, "/api/projects", `{`, http.StatusBadRequest},
		{"admin lists users", "a1", http.MethodGet, "/api/users", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantStatus(t, e.do(t, tt.uid, tt.method, tt.path, tt.body), tt.want)
		})
	}
}

func TestCrewStatusUpdate(t *testing.T) {
	e := newEnv(t)

	wantStatus(t, e.do(t, "c1", http.MethodPatch, "/api/tasks/T2", `{"status":"completed"}`), http.StatusNoContent)
	if got := e.task(t, "T2"); got.Status != models.StatusCompleted || got.LastUpdatedBy != "Casey" {
		t.Errorf("T2 = %+v", got)
	}
	wantStatus(t, e.do(t, "c1", http.MethodPatch, "/api/tasks/T2", `{"dueDate":"2024-07-01"}`), http.StatusForbidden)
	wantStatus(t, e.do(t, "c1", http.MethodPatch, "/api/tasks/T1", `{"status":"completed"}`), http.StatusNotFound)
}

func TestNoWorkDayRoutes(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, "a1", http.MethodPost, "/api/no-work-days", `{"date":"2024-06-20","reason":"Holiday"}`)
	wantStatus(t, rec, http.StatusCreated)
	day := decode[models.NoWorkDay](t, rec)

	wantStatus(t, e.do(t, "a1", http.MethodPost, "/api/no-work-days", `{"date":"2024-06-20"}`), http.StatusBadRequest)

	days := decode[struct {
		Upcoming []models.NoWorkDay `json:"upcoming"`
	}](t, e.do(t, "a1", http.MethodGet, "/api/no-work-days", ""))
	if len(days.Upcoming) != 1 || days.Upcoming[0].Reason != "Holiday" {
		t.Errorf("no-work days = %+v", days)
	}

	wantStatus(t, e.do(t, "c1", http.MethodDelete, "/api/no-work-days/"+day.ID, ""), http.StatusForbidden)
	wantStatus(t, e.do(t, "a1", http.MethodDelete, "/api/no-work-days/"+day.ID, ""), http.StatusNoContent)
}
