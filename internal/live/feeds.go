package live

import (
	"context"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Feeds is the set of live queries one signed-in user's dashboard needs.
type Feeds struct {
	Profile    *Feed[models.User]
	Users      *Feed[models.User]
	Crew       *Feed[models.User]
	Templates  *Feed[models.TaskTemplate]
	Projects   *Feed[models.Project]
	Tasks      *Feed[models.Task]
	CrewTasks  *Feed[models.Task]
	NoWorkDays *Feed[models.NoWorkDay]

	registry *Registry
}

func NewFeeds(store services.Store, log *zap.Logger, m *metrics.Metrics) *Feeds {
	reg := NewRegistry(m)
	return &Feeds{
		Profile:    NewFeed[models.User]("profile", store, reg, log, m),
		Users:      NewFeed[models.User]("users", store, reg, log, m),
		Crew:       NewFeed[models.User]("crew", store, reg, log, m),
		Templates:  NewFeed[models.TaskTemplate]("task_templates", store, reg, log, m),
		Projects:   NewFeed[models.Project]("projects", store, reg, log, m),
		Tasks:      NewFeed[models.Task]("tasks", store, reg, log, m),
		CrewTasks:  NewFeed[models.Task]("crew_tasks", store, reg, log, m),
		NoWorkDays: NewFeed[models.NoWorkDay]("no_work_days", store, reg, log, m),
		registry:   reg,
	}
}

// ScopeUser (re)scopes every user-dependent feed for u. Feeds whose scope
// did not change keep their open query.
func (f *Feeds) ScopeUser(ctx context.Context, u *models.User) {
	f.Profile.Scope(ctx, ProfileQuery(u), nil)
	f.Users.Scope(ctx, UsersQuery(u), nil)
	f.Crew.Scope(ctx, CrewQuery(), nil)
	f.Templates.Scope(ctx, TemplatesQuery(), nil)
	f.Projects.Scope(ctx, ProjectsQuery(u), nil)
	f.CrewTasks.Scope(ctx, CrewTasksQuery(u), nil)
	f.NoWorkDays.Scope(ctx, NoWorkDaysQuery(), nil)
}

// ScopeTasks points the task feed at the selected project.
func (f *Feeds) ScopeTasks(ctx context.Context, u *models.User, selected *models.Project) {
	q, sortLocally := TasksQuery(u, selected)
	var arrange func([]models.Task)
	if sortLocally {
		arrange = SortByStartDate
	}
	f.Tasks.Scope(ctx, q, arrange)
}

// Registry exposes the handles held by these feeds.
func (f *Feeds) Registry() *Registry {
	return f.registry
}

// Close tears down every live query.
func (f *Feeds) Close() {
	f.Profile.Close()
	f.Users.Close()
	f.Crew.Close()
	f.Templates.Close()
	f.Projects.Close()
	f.Tasks.Close()
	f.CrewTasks.Close()
	f.NoWorkDays.Close()
	f.registry.ReleaseAll()
}
