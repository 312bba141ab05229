package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/dashboard"
	"github.com/ytakahashi/crew-calendar/internal/metrics"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/notify"
	"github.com/ytakahashi/crew-calendar/internal/scheduler"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

const testSecret = "test-channel-secret"

type fakeReplier struct {
	mu       sync.Mutex
	requests []*messaging_api.ReplyMessageRequest
}

func (f *fakeReplier) ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return &messaging_api.ReplyMessageResponse{}, nil
}

func (f *fakeReplier) last(t *testing.T) messaging_api.MessageInterface {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no reply sent")
	}
	msgs := f.requests[len(f.requests)-1].Messages
	if len(msgs) != 1 {
		t.Fatalf("reply has %d messages", len(msgs))
	}
	return msgs[0]
}

func (f *fakeReplier) lastText(t *testing.T) string {
	t.Helper()
	msg, ok := f.last(t).(*messaging_api.TextMessage)
	if !ok {
		t.Fatalf("reply is %T, want text", f.last(t))
	}
	return msg.Text
}

type env struct {
	store    *services.MemoryStore
	svc      *services.Service
	metrics  *metrics.Metrics
	sessions *dashboard.Sessions
	replier  *fakeReplier
	echo     *echo.Echo
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:   services.NewMemoryStore(),
		metrics: metrics.New(),
		replier: &fakeReplier{},
		now:     time.Date(2024, 6, 12, 9, 0, 0, 0, time.Local),
	}
	e.svc = services.NewService(e.store, zap.NewNop(), e.metrics)
	e.svc.Now = func() time.Time { return e.now }
	var n atomic.Int64
	e.svc.NewID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }

	e.sessions = dashboard.NewSessions(dashboard.Deps{
		Service:  e.svc,
		Log:      zap.NewNop(),
		Metrics:  e.metrics,
		Pusher:   notify.NewLinePusher(nil, zap.NewNop()),
		Calendar: scheduler.DefaultConfig(),
		ToastTTL: time.Hour,
	}, 30*time.Minute)
	t.Cleanup(e.sessions.Close)

	e.echo = echo.New()
	NewAPIHandler(e.sessions, zap.NewNop(), e.metrics).Register(e.echo)
	e.echo.POST("/webhook", NewWebhookHandler(e.replier, e.sessions, testSecret, zap.NewNop()).HandleWebhook)

	e.seed(t)
	return e
}

func (e *env) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	put := func(coll, id string, v any) {
		if err := e.store.Set(ctx, coll, id, v); err != nil {
			t.Fatal(err)
		}
	}
	put(services.CollectionUsers, "a1", models.User{DisplayName: "Alex", UserType: models.UserTypeAdmin})
	put(services.CollectionUsers, "c1", models.User{DisplayName: "Casey", UserType: models.UserTypeCrew, LineUserID: "U-casey"})
	put(services.CollectionUsers, "h1", models.User{DisplayName: "Harper", UserType: models.UserTypeHomeowner, ProjectID: "P1"})
	put(services.CollectionUsers, "x1", models.User{DisplayName: "Gone", UserType: models.UserTypeCrew, Disabled: true, LineUserID: "U-gone"})
	put(services.CollectionProjects, "P1", models.Project{Name: "Maple St", Customer: "Lee", CreatedAt: created})
	put(services.CollectionTemplates, "tp-walls", models.TaskTemplate{Name: "Interior Walls", Category: models.CategoryPaint, Order: 1, Active: true})
	put(services.CollectionTasks, "T1", models.Task{ProjectID: "P1", TemplateID: "tp-walls", Name: "Interior Walls", Category: models.CategoryPaint, Status: models.StatusPending, AssignedTo: []string{}})
	put(services.CollectionTasks, "T2", models.Task{ProjectID: "P1", TemplateID: "tp-walls", Name: "Trim", Category: models.CategoryPaint, Status: models.StatusPending, AssignedTo: []string{"Casey"}, StartDate: "2024-06-03", DueDate: "2024-06-05"})
	put(services.CollectionTasks, "T3", models.Task{ProjectID: "P1", TemplateID: "tp-walls", Name: "Doors", Category: models.CategoryPaint, Status: models.StatusInProgress, AssignedTo: []string{"Casey"}, StartDate: "2024-06-12", DueDate: "2024-06-14"})
}

// do sends a request as uid ("" for anonymous) and returns the recorder.
func (e *env) do(t *testing.T, uid, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if uid != "" {
		req.Header.Set(HeaderUserID, uid)
	}
	rec := httptest.NewRecorder()
	e.echo.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e *env) task(t *testing.T, id string) models.Task {
	t.Helper()
	doc, err := e.store.Get(context.Background(), services.CollectionTasks, id)
	if err != nil {
		t.Fatal(err)
	}
	task, err := services.Decode[models.Task](doc)
	if err != nil {
		t.Fatal(err)
	}
	return task
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}
