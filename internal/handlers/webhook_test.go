package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"

	"github.com/ytakahashi/crew-calendar/internal/dashboard"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

func textEvent(lineUserID, text string) string {
	return fmt.Sprintf(`{"type":"message","mode":"active","timestamp":1718180000000,"webhookEventId":"ev-1",`+
		`"deliveryContext":{"isRedelivery":false},"replyToken":"rt-1",`+
		`"source":{"type":"user","userId":%q},`+
		`"message":{"type":"text","id":"m-1","quoteToken":"q-1","text":%q}}`, lineUserID, text)
}

func postbackEvent(lineUserID, data string) string {
	return fmt.Sprintf(`{"type":"postback","mode":"active","timestamp":1718180000000,"webhookEventId":"ev-2",`+
		`"deliveryContext":{"isRedelivery":false},"replyToken":"rt-2",`+
		`"source":{"type":"user","userId":%q},`+
		`"postback":{"data":%q}}`, lineUserID, data)
}

func sign(secret, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (e *env) deliver(t *testing.T, secret string, events ...string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"destination":"U-bot","events":[` + strings.Join(events, ",") + `]}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Line-Signature", sign(secret, body))
	rec := httptest.NewRecorder()
	e.echo.ServeHTTP(rec, req)
	return rec
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	e := newEnv(t)
	wantStatus(t, e.deliver(t, "wrong-secret", textEvent("U-casey", "tasks")), http.StatusBadRequest)
	if len(e.replier.requests) != 0 {
		t.Error("replied to an unsigned request")
	}
}

func TestWebhookTextCommands(t *testing.T) {
	tests := []struct {
		name     string
		user     string
		text     string
		contains string
	}{
		{"help", "U-anyone", "Help", "tasks"},
		{"id", "U-anyone", "id", "Your LINE ID: U-anyone"},
		{"unlinked account", "U-anyone", "tasks", "not linked"},
		{"disabled account", "U-gone", "today", "disabled"},
		{"no upcoming days off", "U-casey", "off", "No upcoming no-work days."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			wantStatus(t, e.deliver(t, testSecret, textEvent(tt.user, tt.text)), http.StatusOK)
			if got := e.replier.lastText(t); !strings.Contains(got, tt.contains) {
				t.Errorf("reply = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}

func TestWebhookIgnoresChatter(t *testing.T) {
	e := newEnv(t)
	wantStatus(t, e.deliver(t, testSecret, textEvent("U-casey", "see you tomorrow")), http.StatusOK)
	if len(e.replier.requests) != 0 {
		t.Errorf("replied to chatter: %+v", e.replier.requests)
	}
}

func TestWebhookTaskList(t *testing.T) {
	e := newEnv(t)
	wantStatus(t, e.deliver(t, testSecret, textEvent("U-casey", "tasks")), http.StatusOK)

	flex, ok := e.replier.last(t).(*messaging_api.FlexMessage)
	if !ok {
		t.Fatalf("reply is %T, want flex", e.replier.last(t))
	}
	bubble := flex.Contents.(*messaging_api.FlexBubble)
	rows := bubble.Body.Contents
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want the two tasks assigned to Casey", len(rows))
	}
	first := rows[0].(*messaging_api.FlexBox).Contents
	if name := first[0].(*messaging_api.FlexText).Text; name != "Trim" {
		t.Errorf("first row = %q, want start-date order", name)
	}
	if dates := first[1].(*messaging_api.FlexText).Text; !strings.HasPrefix(dates, "2024-06-03 → 2024-06-05") {
		t.Errorf("dates = %q", dates)
	}
	action := first[2].(*messaging_api.FlexButton).Action.(*messaging_api.PostbackAction)
	if action.Data != "complete:T2" {
		t.Errorf("postback = %q", action.Data)
	}
}

func TestWebhookToday(t *testing.T) {
	e := newEnv(t)
	wantStatus(t, e.deliver(t, testSecret, textEvent("U-casey", "today")), http.StatusOK)
	flex, ok := e.replier.last(t).(*messaging_api.FlexMessage)
	if !ok || flex.AltText != "Today 2024-06-12" {
		t.Fatalf("reply = %+v", e.replier.last(t))
	}
	if rows := flex.Contents.(*messaging_api.FlexBubble).Body.Contents; len(rows) != 1 {
		t.Errorf("rows = %d, want only Doors", len(rows))
	}

	if err := e.store.Set(context.Background(), services.CollectionNoWorkDays, "nw1",
		models.NoWorkDay{Date: "2024-06-12", Reason: "Rain"}); err != nil {
		t.Fatal(err)
	}
	e.deliver(t, testSecret, textEvent("U-casey", "today"))
	if got := e.replier.lastText(t); got != "🚫 No work today: Rain" {
		t.Errorf("reply = %q", got)
	}
	e.deliver(t, testSecret, textEvent("U-casey", "off"))
	if got := e.replier.lastText(t); !strings.Contains(got, "2024-06-12 Rain") {
		t.Errorf("reply = %q", got)
	}
}

func TestWebhookCompleteTask(t *testing.T) {
	e := newEnv(t)
	s, err := e.sessions.Get(context.Background(), dashboard.Identity{UID: "c1"})
	if err != nil {
		t.Fatal(err)
	}

	wantStatus(t, e.deliver(t, testSecret, postbackEvent("U-casey", "complete:T2")), http.StatusOK)
	if got := e.replier.lastText(t); got != "🎉 Trim completed!" {
		t.Errorf("reply = %q", got)
	}
	if got := e.task(t, "T2"); got.Status != models.StatusCompleted || got.LastUpdatedBy != "Casey" {
		t.Errorf("T2 = %+v", got)
	}
	toasts := s.Toasts().List()
	if len(toasts) == 0 || toasts[len(toasts)-1].Message != "Trim marked complete from LINE" {
		t.Errorf("dashboard toasts = %+v", toasts)
	}

	e.deliver(t, testSecret, postbackEvent("U-casey", "complete:T2"))
	if got := e.replier.lastText(t); got != "Trim is already completed." {
		t.Errorf("reply = %q", got)
	}
	e.deliver(t, testSecret, postbackEvent("U-casey", "complete:T1"))
	if got := e.replier.lastText(t); got != "That task is not assigned to you." {
		t.Errorf("reply = %q", got)
	}
	if got := e.task(t, "T1"); got.Status != models.StatusPending {
		t.Errorf("T1 status = %s", got.Status)
	}
}

func TestLinkedAccountReachesBot(t *testing.T) {
	e := newEnv(t)

	e.deliver(t, testSecret, textEvent("U-harper", "tasks"))
	if got := e.replier.lastText(t); !strings.Contains(got, "U-harper") {
		t.Fatalf("unlinked reply = %q", got)
	}

	wantStatus(t, e.do(t, "a1", http.MethodPatch, "/api/users/h1", `{"lineUserId":"U-harper"}`), http.StatusNoContent)

	e.deliver(t, testSecret, textEvent("U-harper", "tasks"))
	if got := e.replier.lastText(t); got != "You have no open tasks." {
		t.Errorf("linked reply = %q", got)
	}
}
