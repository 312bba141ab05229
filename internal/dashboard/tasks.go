package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/policy"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// TaskView is a task as listed to the user, with display fields resolved.
type TaskView struct {
	models.Task
	ProjectName string `json:"projectName,omitempty"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	StatusLabel string `json:"statusLabel"`
	LastUpdated string `json:"lastUpdated"`
}

// Tasks lists the tasks in view: the selected project's, every task in the
// all-tasks view, or a crew member's own assignments.
func (s *Session) Tasks() []TaskView {
	names := make(map[string]string)
	for _, p := range s.feeds.Projects.Items() {
		names[p.ID] = p.Name
	}
	now := s.deps.Service.Now()
	tasks := s.sched.Tasks()
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, view(t, names, now))
	}
	return out
}

func view(t models.Task, projectNames map[string]string, now time.Time) TaskView {
	return TaskView{
		Task:        t,
		ProjectName: projectNames[t.ProjectID],
		Icon:        calendar.StatusIcon(t.Status),
		Color:       calendar.CategoryColor(t.Category),
		StatusLabel: calendar.StatusLabel(t.Status),
		LastUpdated: calendar.LastUpdatedText(t.LastUpdatedAt, now),
	}
}

// Templates returns the active templates grouped by category for the
// add-task picker.
func (s *Session) Templates() map[string][]models.TaskTemplate {
	return calendar.GroupTemplates(s.feeds.Templates.Items())
}

// Crew lists crew members for assignment pickers.
func (s *Session) Crew() []models.User {
	return s.feeds.Crew.Items()
}

func (s *Session) findTask(id string) (*models.Task, error) {
	for _, t := range s.sched.Tasks() {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
}

func (s *Session) findTemplate(id string) *models.TaskTemplate {
	for _, t := range s.feeds.Templates.Items() {
		if t.ID == id {
			return &t
		}
	}
	return nil
}

// AddTask instantiates a template into the selected project.
func (s *Session) AddTask(ctx context.Context, templateID string) (*models.Task, error) {
	defer s.Begin("add_task")()
	u, err := s.enter()
	if err != nil {
		return nil, err
	}
	project := s.Selected()
	if !policy.CanCreateTaskIn(u, project) {
		return nil, ErrForbidden
	}
	tmpl := s.findTemplate(templateID)
	if tmpl == nil {
		return nil, s.report(&services.ValidationError{Field: "templateId", Message: "unknown template"}, "", "")
	}
	task, err := s.deps.Service.CreateTaskFromTemplate(ctx, project, tmpl, u)
	if err := s.report(err, "Error adding task. Please try again.", ""); err != nil {
		return nil, err
	}
	return task, nil
}

func authorizePatch(c policy.Capabilities, p services.TaskPatch) error {
	switch {
	case (p.Status != nil || p.JobDetails != nil) && !c.EditTask:
		return ErrForbidden
	case (p.StartDate != nil || p.DueDate != nil) && !c.EditDates:
		return ErrForbidden
	case p.AssignedTo != nil && !c.Assign:
		return ErrForbidden
	}
	return nil
}

// UpdateTask applies a field patch to a task in view.
func (s *Session) UpdateTask(ctx context.Context, id string, patch services.TaskPatch) error {
	defer s.Begin("update_task")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	if err := authorizePatch(policy.For(u), patch); err != nil {
		return err
	}
	if _, err := s.findTask(id); err != nil {
		return err
	}
	err = s.deps.Service.UpdateTask(ctx, id, patch, u)
	return s.report(err, "Error updating task. Please try again.", "")
}

// RenameTask gives a task made from the "Other" template a custom name.
func (s *Session) RenameTask(ctx context.Context, id, name string) error {
	defer s.Begin("rename_task")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	if !policy.For(u).RenameTask {
		return ErrForbidden
	}
	task, err := s.findTask(id)
	if err != nil {
		return err
	}
	err = s.deps.Service.RenameTask(ctx, task, s.findTemplate(task.TemplateID), name, u)
	return s.report(err, "Error updating task. Please try again.", "")
}

// ToggleAssignment adds or removes a crew member on a task.
func (s *Session) ToggleAssignment(ctx context.Context, id, crewName string) error {
	defer s.Begin("assign")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	if !policy.For(u).Assign {
		return ErrForbidden
	}
	task, err := s.findTask(id)
	if err != nil {
		return err
	}
	err = s.deps.Service.ToggleAssignment(ctx, task, crewName, u)
	return s.report(err, "Error updating task. Please try again.", "")
}

// DeleteTask removes a task and clears the detail panel if it showed it.
func (s *Session) DeleteTask(ctx context.Context, id string) error {
	defer s.Begin("delete_task")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	if !policy.For(u).DeleteTask {
		return ErrForbidden
	}
	err = s.deps.Service.DeleteTask(ctx, id)
	if err := s.report(err, "Error deleting task. Please try again.", ""); err != nil {
		return err
	}
	if sel := s.sched.Selected(); sel != nil && sel.ID == id {
		s.sched.ClearSelection()
	}
	return nil
}

// AddNote appends a note to a task in view.
func (s *Session) AddNote(ctx context.Context, id, text string) (*models.Note, error) {
	defer s.Begin("add_note")()
	u, err := s.enter()
	if err != nil {
		return nil, err
	}
	if !policy.For(u).AddNote {
		return nil, ErrForbidden
	}
	if _, err := s.findTask(id); err != nil {
		return nil, err
	}
	note, err := s.deps.Service.AppendNote(ctx, id, text, u)
	if err := s.report(err, "Error adding note. Please try again.", ""); err != nil {
		return nil, err
	}
	return note, nil
}
