package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

// CreateProject stores a new project owned by actor.
func (s *Service) CreateProject(ctx context.Context, actor *models.User, name, customer string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	customer = strings.TrimSpace(customer)
	if name == "" {
		return nil, invalid("name", "project name is required")
	}
	if customer == "" {
		return nil, invalid("customer", "customer name is required")
	}

	project := &models.Project{
		Name:      s.clean(name),
		Customer:  s.clean(customer),
		CreatedAt: s.Now(),
	}
	if actor != nil {
		project.OwnerID = actor.ID
		project.OwnerEmail = actor.Email
	}

	id, err := s.store.Insert(ctx, CollectionProjects, project)
	if err := s.observe("create_project", err, zap.String("name", name)); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	project.ID = id
	return project, nil
}

// DeleteProject removes every task of the project and then the project.
// Tasks go first: if any task delete fails the project is kept, so a retry
// can finish the job and no task is left pointing at a missing project.
// Tasks deleted before the failure stay deleted.
func (s *Service) DeleteProject(ctx context.Context, projectID string) (int, error) {
	if projectID == "" || projectID == models.AllTasksProjectID {
		return 0, invalid("project", "unknown project")
	}

	docs, err := s.store.Query(ctx, From(CollectionTasks).Where("projectId", OpEqual, projectID))
	if err != nil {
		return 0, s.observe("delete_project", fmt.Errorf("listing project tasks: %w", err), zap.String("project", projectID))
	}

	deleted := 0
	for _, d := range docs {
		if err := s.store.Remove(ctx, CollectionTasks, d.ID); err != nil {
			err = fmt.Errorf("deleting task %s of project: %w", d.ID, err)
			return deleted, s.observe("delete_project", err, zap.String("project", projectID), zap.Int("tasks_deleted", deleted))
		}
		deleted++
	}

	err = s.store.Remove(ctx, CollectionProjects, projectID)
	if err := s.observe("delete_project", err, zap.String("project", projectID), zap.Int("tasks_deleted", deleted)); err != nil {
		return deleted, fmt.Errorf("deleting project: %w", err)
	}
	return deleted, nil
}
