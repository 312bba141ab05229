// Package policy is the single table of what each user type may do.
package policy

import (
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// Capabilities lists the actions and views open to a user.
type Capabilities struct {
	SeeAllProjects     bool `json:"seeAllProjects"`
	SelectProject      bool `json:"selectProject"`
	CreateProject      bool `json:"createProject"`
	DeleteProject      bool `json:"deleteProject"`
	CreateTask         bool `json:"createTask"`
	DeleteTask         bool `json:"deleteTask"`
	EditTask           bool `json:"editTask"` // status and job details
	EditDates          bool `json:"editDates"`
	RenameTask         bool `json:"renameTask"`
	Assign             bool `json:"assign"`
	AddNote            bool `json:"addNote"`
	Schedule           bool `json:"schedule"` // drag and drop on the calendar
	ManageNoWorkDays   bool `json:"manageNoWorkDays"`
	ManageUsers        bool `json:"manageUsers"`
	UseAllTasksView    bool `json:"useAllTasksView"`
	ReadOnlyCalendar   bool `json:"readOnlyCalendar"`
	SeeOwnAssignedOnly bool `json:"seeOwnAssignedOnly"`
}

var table = map[models.UserType]Capabilities{
	models.UserTypeAdmin: {
		SeeAllProjects:   true,
		SelectProject:    true,
		CreateProject:    true,
		DeleteProject:    true,
		CreateTask:       true,
		DeleteTask:       true,
		EditTask:         true,
		EditDates:        true,
		RenameTask:       true,
		Assign:           true,
		AddNote:          true,
		Schedule:         true,
		ManageNoWorkDays: true,
		ManageUsers:      true,
		UseAllTasksView:  true,
	},
	models.UserTypeCrew: {
		SeeAllProjects:     true,
		EditTask:           true,
		RenameTask:         true,
		AddNote:            true,
		SeeOwnAssignedOnly: true,
	},
	models.UserTypeHomeowner: {
		ReadOnlyCalendar: true,
	},
}

// For returns u's capabilities. Unknown types, disabled accounts and a nil
// user get none.
func For(u *models.User) Capabilities {
	if u == nil || u.Disabled {
		return Capabilities{ReadOnlyCalendar: true}
	}
	c, ok := table[u.UserType]
	if !ok {
		return Capabilities{ReadOnlyCalendar: true}
	}
	return c
}

// CanDrag reports whether u may start a drag in a calendar showing project.
// The all-tasks view is for overview only.
func CanDrag(u *models.User, project *models.Project) bool {
	return For(u).Schedule && !project.IsAllTasks()
}

// CanCreateTaskIn reports whether u may add tasks to project.
func CanCreateTaskIn(u *models.User, project *models.Project) bool {
	return For(u).CreateTask && project != nil && project.ID != "" && !project.IsAllTasks()
}
