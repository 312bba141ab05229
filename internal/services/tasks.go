package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// TaskPatch lists the task fields an update may touch. Nil fields are left
// alone; an empty date string clears that date.
type TaskPatch struct {
	Status     *models.TaskStatus `json:"status,omitempty"`
	AssignedTo *[]string          `json:"assignedTo,omitempty"`
	StartDate  *string            `json:"startDate,omitempty"`
	DueDate    *string            `json:"dueDate,omitempty"`
	JobDetails *string            `json:"jobDetails,omitempty"`
}

func (p TaskPatch) Empty() bool {
	return p.Status == nil && p.AssignedTo == nil && p.StartDate == nil && p.DueDate == nil && p.JobDetails == nil
}

func (p TaskPatch) validate() error {
	if p.Empty() {
		return invalid("", "nothing to update")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", *p.Status))
	}
	for field, v := range map[string]*string{"startDate": p.StartDate, "dueDate": p.DueDate} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := calendar.ParseDate(*v); err != nil {
			return invalid(field, err.Error())
		}
	}
	return nil
}

func (s *Service) patchFields(p TaskPatch) map[string]any {
	fields := make(map[string]any)
	if p.Status != nil {
		fields["status"] = string(*p.Status)
	}
	if p.AssignedTo != nil {
		assigned := *p.AssignedTo
		if assigned == nil {
			assigned = []string{}
		}
		fields["assignedTo"] = assigned
	}
	if p.StartDate != nil {
		fields["startDate"] = *p.StartDate
	}
	if p.DueDate != nil {
		fields["dueDate"] = *p.DueDate
	}
	if p.JobDetails != nil {
		fields["jobDetails"] = s.clean(*p.JobDetails)
	}
	return fields
}

// CreateTaskFromTemplate instantiates tmpl into project as a pending,
// unassigned, unscheduled task.
func (s *Service) CreateTaskFromTemplate(ctx context.Context, project *models.Project, tmpl *models.TaskTemplate, actor *models.User) (*models.Task, error) {
	if project == nil || project.ID == "" {
		return nil, invalid("project", "select a project first")
	}
	if project.IsAllTasks() {
		return nil, invalid("project", "tasks cannot be added to the all-tasks view")
	}
	if tmpl == nil || tmpl.ID == "" {
		return nil, invalid("template", "unknown template")
	}

	category := tmpl.Category
	if category == "" {
		category = models.DefaultCategory
	}
	now := s.Now()
	by := models.ActorName(actor)
	task := &models.Task{
		ProjectID:         project.ID,
		TemplateID:        tmpl.ID,
		Name:              tmpl.Name,
		Category:          category,
		Status:            models.StatusPending,
		AssignedTo:        []string{},
		EstimatedDuration: tmpl.EstimatedDuration,
		Notes:             []models.Note{},
		CreatedAt:         now,
		CreatedBy:         by,
		LastUpdatedAt:     now,
		LastUpdatedBy:     by,
	}

	id, err := s.store.Insert(ctx, CollectionTasks, task)
	if err := s.observe("create_task", err, zap.String("project", project.ID), zap.String("template", tmpl.ID)); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}
	task.ID = id
	return task, nil
}

// UpdateTask merges patch into the stored task and stamps provenance.
// Fields outside the patch are not read or rewritten.
func (s *Service) UpdateTask(ctx context.Context, taskID string, patch TaskPatch, actor *models.User) error {
	if taskID == "" {
		return invalid("task", "missing task id")
	}
	if err := patch.validate(); err != nil {
		return err
	}
	fields := s.patchFields(patch)
	fields["lastUpdatedAt"] = s.Now()
	fields["lastUpdatedBy"] = models.ActorName(actor)

	err := s.store.Update(ctx, CollectionTasks, taskID, fields)
	if err := s.observe("update_task", err, zap.String("task", taskID)); err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

// RenameTask sets a custom name; only tasks made from the "Other" template
// may be renamed.
func (s *Service) RenameTask(ctx context.Context, task *models.Task, tmpl *models.TaskTemplate, name string, actor *models.User) error {
	name = strings.TrimSpace(name)
	if tmpl == nil || tmpl.ID != task.TemplateID || tmpl.Name != models.OtherTemplateName {
		return invalid("name", "only \"Other\" tasks can be renamed")
	}
	if name == "" {
		return invalid("name", "name is required")
	}

	err := s.store.Update(ctx, CollectionTasks, task.ID, map[string]any{
		"name":          s.clean(name),
		"lastUpdatedAt": s.Now(),
		"lastUpdatedBy": models.ActorName(actor),
	})
	if err := s.observe("rename_task", err, zap.String("task", task.ID)); err != nil {
		return fmt.Errorf("renaming task: %w", err)
	}
	return nil
}

// ToggleAssignment adds crewName to the task's assignees, or removes it if
// already present, keeping the order of the others.
func (s *Service) ToggleAssignment(ctx context.Context, task *models.Task, crewName string, actor *models.User) error {
	if crewName == "" {
		return invalid("name", "crew member is required")
	}
	next := make([]string, 0, len(task.AssignedTo)+1)
	for _, n := range task.AssignedTo {
		if n != crewName {
			next = append(next, n)
		}
	}
	if len(next) == len(task.AssignedTo) {
		next = append(next, crewName)
	}
	return s.UpdateTask(ctx, task.ID, TaskPatch{AssignedTo: &next}, actor)
}

// DeleteTask removes the task. Callers holding a selection of it must clear it.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return invalid("task", "missing task id")
	}
	err := s.store.Remove(ctx, CollectionTasks, taskID)
	if err := s.observe("delete_task", err, zap.String("task", taskID)); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

// AppendNote reads the task, appends a note and writes the whole list back.
// Two concurrent appends to the same task can lose one of them: the later
// write replaces the list the earlier one wrote.
func (s *Service) AppendNote(ctx context.Context, taskID, text string, actor *models.User) (*models.Note, error) {
	text = strings.TrimSpace(text)
	if taskID == "" {
		return nil, invalid("task", "missing task id")
	}
	if text == "" {
		return nil, invalid("text", "note text is required")
	}

	doc, err := s.store.Get(ctx, CollectionTasks, taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task for note: %w", err)
	}
	task, err := Decode[models.Task](doc)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	note := models.Note{
		ID:        s.NewID(),
		Text:      s.clean(text),
		Author:    models.ActorName(actor),
		Date:      now.Format("1/2/2006"),
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	notes := append(append([]models.Note{}, task.Notes...), note)

	err = s.store.Update(ctx, CollectionTasks, taskID, map[string]any{
		"notes":         notes,
		"lastUpdatedAt": now,
		"lastUpdatedBy": models.ActorName(actor),
	})
	if err := s.observe("append_note", err, zap.String("task", taskID)); err != nil {
		return nil, fmt.Errorf("appending note: %w", err)
	}
	return &note, nil
}

// TasksAssignedTo reads once the tasks naming crewName, by start date.
func (s *Service) TasksAssignedTo(ctx context.Context, crewName string) ([]models.Task, error) {
	if crewName == "" {
		return nil, nil
	}
	docs, err := s.store.Query(ctx, From(CollectionTasks).
		Where("assignedTo", OpArrayContains, crewName).
		Ordered("startDate", Asc))
	if err != nil {
		return nil, fmt.Errorf("listing tasks for %s: %w", crewName, err)
	}
	tasks, err := DecodeAll[models.Task](docs)
	if err != nil {
		s.log.Warn("skipping undecodable tasks", zap.Error(err))
	}
	return tasks, nil
}
