package dashboard

import (
	"context"
	"fmt"

	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/policy"
)

// Projects lists the projects the user may pick from. Users with the
// all-tasks view get the pseudo-project first.
func (s *Session) Projects() []models.Project {
	projects := s.feeds.Projects.Items()
	if !s.Capabilities().UseAllTasksView {
		return projects
	}
	return append([]models.Project{*models.AllTasksProject()}, projects...)
}

func (s *Session) findProject(id string) *models.Project {
	if id == models.AllTasksProjectID || id == "all" {
		return models.AllTasksProject()
	}
	for _, p := range s.feeds.Projects.Items() {
		if p.ID == id {
			return &p
		}
	}
	return nil
}

// SelectProject points the task feed and calendar at a project. "all"
// selects the all-tasks view; "" clears the selection.
func (s *Session) SelectProject(id string) (*models.Project, error) {
	u, err := s.enter()
	if err != nil {
		return nil, err
	}
	caps := policy.For(u)
	if !caps.SelectProject {
		return nil, ErrForbidden
	}

	var project *models.Project
	if id != "" {
		project = s.findProject(id)
		if project == nil {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		if project.IsAllTasks() && !caps.UseAllTasksView {
			return nil, ErrForbidden
		}
	}
	s.selectProject(u, project)
	return project, nil
}

func (s *Session) selectProject(u *models.User, project *models.Project) {
	s.mu.Lock()
	s.selected = project
	s.mu.Unlock()

	s.sched.ClearSelection()
	s.sched.SetView(u, project)
	s.feeds.ScopeTasks(s.ctx, u, project)
	s.sched.ApplyTasks(s.feeds.Tasks.Items())
}

// CreateProject creates a project and selects it.
func (s *Session) CreateProject(ctx context.Context, name, customer string) (*models.Project, error) {
	defer s.Begin("create_project")()
	u, err := s.enter()
	if err != nil {
		return nil, err
	}
	if !policy.For(u).CreateProject {
		return nil, ErrForbidden
	}
	project, err := s.deps.Service.CreateProject(ctx, u, name, customer)
	if err := s.report(err, "Error creating project. Please try again.", ""); err != nil {
		return nil, err
	}
	s.selectProject(u, project)
	return project, nil
}

// DeleteProject removes a project and its tasks. It returns how many tasks
// were deleted.
func (s *Session) DeleteProject(ctx context.Context, id string) (int, error) {
	defer s.Begin("delete_project")()
	u, err := s.enter()
	if err != nil {
		return 0, err
	}
	if !policy.For(u).DeleteProject {
		return 0, ErrForbidden
	}
	if id == models.AllTasksProjectID {
		return 0, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	n, err := s.deps.Service.DeleteProject(ctx, id)
	if err := s.report(err, "Error deleting project. Please try again.", "Project deleted successfully"); err != nil {
		return n, err
	}
	if sel := s.Selected(); sel != nil && sel.ID == id {
		s.selectProject(u, nil)
	}
	return n, nil
}
