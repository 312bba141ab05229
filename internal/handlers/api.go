package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/dashboard"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/scheduler"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Identity headers set by the identity service in front of this server.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

const sessionKey = "session"

type APIHandler struct {
	sessions *dashboard.Sessions
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func NewAPIHandler(sessions *dashboard.Sessions, log *zap.Logger, m *metrics.Metrics) *APIHandler {
	return &APIHandler{sessions: sessions, log: log, metrics: m}
}

// Register mounts the health, metrics and dashboard routes on e.
func (h *APIHandler) Register(e *echo.Echo) {
	e.Use(h.observe)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(h.metrics.Handler()))

	api := e.Group("/api", h.withSession)
	api.GET("/me", h.me)
	api.DELETE("/session", h.endSession)
	api.PATCH("/profile", h.updateProfile)

	api.GET("/projects", h.listProjects)
	api.POST("/projects", h.createProject)
	api.DELETE("/projects/:id", h.deleteProject)
	api.PUT("/selection", h.selectProject)

	api.GET("/templates", h.listTemplates)
	api.GET("/crew", h.listCrew)

	api.GET("/tasks", h.listTasks)
	api.POST("/tasks", h.addTask)
	api.PATCH("/tasks/:id", h.updateTask)
	api.DELETE("/tasks/:id", h.deleteTask)
	api.POST("/tasks/:id/notes", h.addNote)
	api.POST("/tasks/:id/assign", h.toggleAssignment)

	api.GET("/calendar", h.getCalendar)
	api.GET("/calendar/print", h.printCalendar)
	api.POST("/calendar/navigate", h.navigate)
	api.POST("/calendar/today", h.today)
	api.POST("/calendar/drag", h.startDrag)
	api.POST("/calendar/dragover", h.dragOver)
	api.POST("/calendar/drop", h.drop)
	api.POST("/calendar/dragend", h.endDrag)
	api.PUT("/calendar/selected", h.selectTask)

	api.GET("/no-work-days", h.listNoWorkDays)
	api.POST("/no-work-days", h.addNoWorkDay)
	api.DELETE("/no-work-days/:id", h.deleteNoWorkDay)

	api.GET("/toasts", h.listToasts)
	api.DELETE("/toasts/:id", h.dismissToast)

	api.GET("/users", h.listUsers)
	api.PATCH("/users/:id", h.updateUser)
	api.POST("/users/invite", h.inviteUser)
}

// observe records request counts and latency by route pattern.
func (h *APIHandler) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
		} else if err != nil {
			status = http.StatusInternalServerError
		}
		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		h.metrics.ObserveHTTP(c.Request().Method, path, status, time.Since(start))
		return err
	}
}

func (h *APIHandler) withSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		id := dashboard.Identity{
			UID:   req.Header.Get(HeaderUserID),
			Email: req.Header.Get(HeaderUserEmail),
			Name:  req.Header.Get(HeaderUserName),
		}
		if id.UID == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing "+HeaderUserID)
		}
		s, err := h.sessions.Get(req.Context(), id)
		if err != nil {
			return h.fail(err)
		}
		c.Set(sessionKey, s)
		return next(c)
	}
}

func session(c echo.Context) *dashboard.Session {
	return c.Get(sessionKey).(*dashboard.Session)
}

// fail maps a dashboard or service error onto an HTTP status.
func (h *APIHandler) fail(err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	case errors.Is(err, dashboard.ErrForbidden),
		errors.Is(err, dashboard.ErrDisabled),
		errors.Is(err, scheduler.ErrDragNotAllowed):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, dashboard.ErrTaskNotFound),
		errors.Is(err, dashboard.ErrProjectNotFound),
		errors.Is(err, scheduler.ErrTaskNotFound),
		errors.Is(err, services.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, dashboard.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	}
	h.log.Error("request failed", zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func parseDate(field, value string) (calendar.Date, error) {
	d, err := calendar.ParseDate(value)
	if err != nil {
		return calendar.Date{}, echo.NewHTTPError(http.StatusBadRequest, field+": "+err.Error())
	}
	return d, nil
}

func (h *APIHandler) me(c echo.Context) error {
	s := session(c)
	return c.JSON(http.StatusOK, map[string]any{
		"user":         s.User(),
		"capabilities": s.Capabilities(),
		"selected":     s.Selected(),
		"busy":         s.Busy(),
	})
}

func (h *APIHandler) endSession(c echo.Context) error {
	h.sessions.End(session(c).User().ID)
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) updateProfile(c echo.Context) error {
	var patch services.ProfilePatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	s := session(c)
	if err := s.UpdateProfile(c.Request().Context(), patch); err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, s.User())
}

func (h *APIHandler) listProjects(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).Projects())
}

func (h *APIHandler) createProject(c echo.Context) error {
	var body struct {
		Name     string `json:"name"`
		Customer string `json:"customer"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	p, err := session(c).CreateProject(c.Request().Context(), body.Name, body.Customer)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *APIHandler) deleteProject(c echo.Context) error {
	n, err := session(c).DeleteProject(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deletedTasks": n})
}

func (h *APIHandler) selectProject(c echo.Context) error {
	var body struct {
		ProjectID string `json:"projectId"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	p, err := session(c).SelectProject(body.ProjectID)
	if err != nil {
		return h.fail(err)
	}
	if p == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *APIHandler) listTemplates(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).Templates())
}

func (h *APIHandler) listCrew(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).Crew())
}

func (h *APIHandler) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).Tasks())
}

func (h *APIHandler) addTask(c echo.Context) error {
	var body struct {
		TemplateID string `json:"templateId"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	task, err := session(c).AddTask(c.Request().Context(), body.TemplateID)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, task)
}

func (h *APIHandler) updateTask(c echo.Context) error {
	var body struct {
		services.TaskPatch
		Name *string `json:"name,omitempty"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	ctx := c.Request().Context()
	s := session(c)
	id := c.Param("id")
	if body.Name != nil {
		if err := s.RenameTask(ctx, id, *body.Name); err != nil {
			return h.fail(err)
		}
		if body.TaskPatch.Empty() {
			return c.NoContent(http.StatusNoContent)
		}
	}
	if err := s.UpdateTask(ctx, id, body.TaskPatch); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) deleteTask(c echo.Context) error {
	if err := session(c).DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) addNote(c echo.Context) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	note, err := session(c).AddNote(c.Request().Context(), c.Param("id"), body.Text)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, note)
}

func (h *APIHandler) toggleAssignment(c echo.Context) error {
	var body struct {
		Name string `json:"name"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	if err := session(c).ToggleAssignment(c.Request().Context(), c.Param("id"), body.Name); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) getCalendar(c echo.Context) error {
	var month calendar.Date
	if m := c.QueryParam("month"); m != "" {
		d, err := parseDate("month", m+"-01")
		if err != nil {
			return err
		}
		month = d
	}
	view, err := session(c).Calendar(month)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *APIHandler) printCalendar(c echo.Context) error {
	pv, err := session(c).PrintCalendar()
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, pv)
}

func (h *APIHandler) navigate(c echo.Context) error {
	var body struct {
		Delta int `json:"delta"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	m, err := session(c).NavigateMonth(body.Delta)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"month": m, "label": m.MonthLabel()})
}

func (h *APIHandler) today(c echo.Context) error {
	m, err := session(c).GoToToday()
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"month": m, "label": m.MonthLabel()})
}

func (h *APIHandler) startDrag(c echo.Context) error {
	var body struct {
		TaskID string `json:"taskId"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	task, err := session(c).StartDrag(body.TaskID)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (h *APIHandler) dragOver(c echo.Context) error {
	var body struct {
		Date           string  `json:"date"`
		PointerY       float64 `json:"pointerY"`
		ViewportHeight float64 `json:"viewportHeight"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	date, err := parseDate("date", body.Date)
	if err != nil {
		return err
	}
	s := session(c)
	allowed, reason, err := s.DragOver(date, body.PointerY, body.ViewportHeight)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"allowed":      allowed,
		"reason":       reason,
		"scrollOffset": s.ScrollOffset(),
	})
}

func (h *APIHandler) drop(c echo.Context) error {
	var body struct {
		Date string `json:"date"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	s := session(c)
	date, err := parseDate("date", body.Date)
	if err != nil {
		s.EndDrag()
		return err
	}
	res, err := s.Drop(c.Request().Context(), date)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *APIHandler) endDrag(c echo.Context) error {
	if err := session(c).EndDrag(); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) selectTask(c echo.Context) error {
	var body struct {
		TaskID string `json:"taskId"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	v, err := session(c).SelectTask(body.TaskID)
	if err != nil {
		return h.fail(err)
	}
	if v == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *APIHandler) listNoWorkDays(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).NoWorkDays())
}

func (h *APIHandler) addNoWorkDay(c echo.Context) error {
	var body struct {
		Date   string `json:"date"`
		Reason string `json:"reason"`
	}
	if err := bind(c, &body); err != nil {
		return err
	}
	day, err := session(c).AddNoWorkDay(c.Request().Context(), body.Date, body.Reason)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, day)
}

func (h *APIHandler) deleteNoWorkDay(c echo.Context) error {
	if err := session(c).DeleteNoWorkDay(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) listToasts(c echo.Context) error {
	return c.JSON(http.StatusOK, session(c).Toasts().List())
}

func (h *APIHandler) dismissToast(c echo.Context) error {
	if !session(c).Toasts().Dismiss(c.Param("id")) {
		return echo.NewHTTPError(http.StatusNotFound, "no such toast")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) listUsers(c echo.Context) error {
	s := session(c)
	if !s.Capabilities().ManageUsers {
		return h.fail(dashboard.ErrForbidden)
	}
	return c.JSON(http.StatusOK, s.Users())
}

func (h *APIHandler) updateUser(c echo.Context) error {
	var patch dashboard.UserPatch
	if err := bind(c, &patch); err != nil {
		return err
	}
	if err := session(c).UpdateUser(c.Request().Context(), c.Param("id"), patch); err != nil {
		return h.fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIHandler) inviteUser(c echo.Context) error {
	var invite models.PendingUser
	if err := bind(c, &invite); err != nil {
		return err
	}
	id, err := session(c).Invite(c.Request().Context(), invite)
	if err != nil {
		return h.fail(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

