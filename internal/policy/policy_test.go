package policy

import (
	"testing"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

func TestFor(t *testing.T) {
	admin := &models.User{UserType: models.UserTypeAdmin}
	crew := &models.User{UserType: models.UserTypeCrew}
	owner := &models.User{UserType: models.UserTypeHomeowner, ProjectID: "P1"}
	disabled := &models.User{UserType: models.UserTypeAdmin, Disabled: true}

	tests := []struct {
		name string
		user *models.User
		got  func(Capabilities) bool
		want bool
	}{
		{"admin schedules", admin, func(c Capabilities) bool { return c.Schedule }, true},
		{"admin assigns", admin, func(c Capabilities) bool { return c.Assign }, true},
		{"crew edits status", crew, func(c Capabilities) bool { return c.EditTask }, true},
		{"crew adds notes", crew, func(c Capabilities) bool { return c.AddNote }, true},
		{"crew cannot assign", crew, func(c Capabilities) bool { return c.Assign }, false},
		{"crew cannot schedule", crew, func(c Capabilities) bool { return c.Schedule }, false},
		{"crew cannot delete projects", crew, func(c Capabilities) bool { return c.DeleteProject }, false},
		{"homeowner read only", owner, func(c Capabilities) bool { return c.ReadOnlyCalendar }, true},
		{"homeowner cannot note", owner, func(c Capabilities) bool { return c.AddNote }, false},
		{"disabled admin has nothing", disabled, func(c Capabilities) bool { return c.ManageUsers }, false},
		{"nil user has nothing", nil, func(c Capabilities) bool { return c.EditTask }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.got(For(tt.user)); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCanDrag(t *testing.T) {
	admin := &models.User{UserType: models.UserTypeAdmin}
	if !CanDrag(admin, &models.Project{ID: "P1"}) {
		t.Error("admins drag in a project calendar")
	}
	if CanDrag(admin, models.AllTasksProject()) {
		t.Error("the all-tasks view is not draggable")
	}
	if CanDrag(&models.User{UserType: models.UserTypeCrew}, &models.Project{ID: "P1"}) {
		t.Error("crew cannot drag")
	}
	if CanCreateTaskIn(admin, models.AllTasksProject()) || CanCreateTaskIn(admin, nil) {
		t.Error("tasks need a real project")
	}
}
