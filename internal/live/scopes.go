package live

import (
	"sort"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// The functions below map the signed-in user to the query each feed runs.
// A nil query means the feed stays empty for that user.

// UsersQuery lists every user; admins only.
func UsersQuery(u *models.User) *services.Query {
	if u == nil || u.UserType != models.UserTypeAdmin {
		return nil
	}
	q := services.From(services.CollectionUsers)
	return &q
}

// ProfileQuery follows the signed-in user's own document.
func ProfileQuery(u *models.User) *services.Query {
	if u == nil || u.ID == "" {
		return nil
	}
	q := services.From(services.CollectionUsers).Where(services.DocumentID, services.OpEqual, u.ID)
	return &q
}

// CrewQuery lists crew members for assignment pickers; visible to everyone.
func CrewQuery() *services.Query {
	q := services.From(services.CollectionUsers).Where("userType", services.OpEqual, string(models.UserTypeCrew))
	return &q
}

func TemplatesQuery() *services.Query {
	q := services.From(services.CollectionTemplates).Ordered("name", services.Asc)
	return &q
}

// ProjectsQuery gives admins and crew every project, newest first, and a
// homeowner exactly their own project.
func ProjectsQuery(u *models.User) *services.Query {
	if u == nil {
		return nil
	}
	switch u.UserType {
	case models.UserTypeAdmin, models.UserTypeCrew:
		q := services.From(services.CollectionProjects).Ordered("createdAt", services.Desc)
		return &q
	case models.UserTypeHomeowner:
		if u.ProjectID == "" {
			return nil
		}
		q := services.From(services.CollectionProjects).Where(services.DocumentID, services.OpEqual, u.ProjectID)
		return &q
	}
	return nil
}

// TasksQuery picks the task scope for the selected project. Homeowners are
// pinned to their own project. The all-tasks view reads every task without
// a server ordering and needs SortByStartDate applied locally.
func TasksQuery(u *models.User, selected *models.Project) (q *services.Query, sortLocally bool) {
	if u != nil && u.UserType == models.UserTypeHomeowner && u.ProjectID != "" {
		return projectTasks(u.ProjectID), false
	}
	if selected.IsAllTasks() {
		all := services.From(services.CollectionTasks)
		return &all, true
	}
	if selected == nil || selected.ID == "" {
		return nil, false
	}
	return projectTasks(selected.ID), false
}

func projectTasks(projectID string) *services.Query {
	q := services.From(services.CollectionTasks).
		Where("projectId", services.OpEqual, projectID).
		Ordered("startDate", services.Asc)
	return &q
}

// CrewTasksQuery lists tasks assigned to the user by display name.
func CrewTasksQuery(u *models.User) *services.Query {
	if u == nil || u.DisplayName == "" {
		return nil
	}
	q := services.From(services.CollectionTasks).
		Where("assignedTo", services.OpArrayContains, u.DisplayName).
		Ordered("startDate", services.Asc)
	return &q
}

func NoWorkDaysQuery() *services.Query {
	q := services.From(services.CollectionNoWorkDays).Ordered("date", services.Asc)
	return &q
}

// SortByStartDate orders tasks by start date with unscheduled tasks last.
// Ties keep their snapshot order.
func SortByStartDate(tasks []models.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].StartDate, tasks[j].StartDate
		switch {
		case a == "":
			return false
		case b == "":
			return true
		}
		da, errA := calendar.ParseDate(a)
		db, errB := calendar.ParseDate(b)
		if errA != nil || errB != nil {
			return a < b
		}
		return da.Before(db)
	})
}
