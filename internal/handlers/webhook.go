package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/dashboard"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/services"
)

// Replier is the part of the LINE messaging API the bot replies through.
type Replier interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
}

// maxListed caps the rows in a flex task list.
const maxListed = 10

type WebhookHandler struct {
	bot      Replier
	sessions *dashboard.Sessions
	svc      *services.Service
	secret   string
	log      *zap.Logger
}

func NewWebhookHandler(bot Replier, sessions *dashboard.Sessions, secret string, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		bot:      bot,
		sessions: sessions,
		svc:      sessions.Service(),
		secret:   secret,
		log:      log,
	}
}

func getUserID(source webhook.SourceInterface) string {
	switch s := source.(type) {
	case webhook.UserSource:
		return s.UserId
	case webhook.GroupSource:
		return s.UserId
	case webhook.RoomSource:
		return s.UserId
	default:
		return ""
	}
}

func (h *WebhookHandler) HandleWebhook(c echo.Context) error {
	cb, err := webhook.ParseRequest(h.secret, c.Request())
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			h.log.Warn("invalid webhook signature")
			return c.NoContent(http.StatusBadRequest)
		}
		h.log.Error("parsing webhook", zap.Error(err))
		return c.NoContent(http.StatusInternalServerError)
	}

	ctx := c.Request().Context()
	for _, event := range cb.Events {
		switch e := event.(type) {
		case webhook.MessageEvent:
			switch message := e.Message.(type) {
			case webhook.TextMessageContent:
				userID := getUserID(e.Source)
				if err := h.handleTextMessage(ctx, e.ReplyToken, userID, message.Text); err != nil {
					h.log.Error("handling text message", zap.String("lineUser", userID), zap.Error(err))
				}
			}
		case webhook.PostbackEvent:
			userID := getUserID(e.Source)
			if err := h.handlePostback(ctx, e.ReplyToken, userID, e.Postback.Data); err != nil {
				h.log.Error("handling postback", zap.String("lineUser", userID), zap.Error(err))
			}
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// crewMember resolves the linked profile, replying with linking
// instructions when there is none.
func (h *WebhookHandler) crewMember(ctx context.Context, replyToken, lineUserID string) (*models.User, error) {
	u, err := h.svc.UserByLineID(ctx, lineUserID)
	if errors.Is(err, services.ErrNotFound) {
		return nil, h.replyMessage(replyToken, fmt.Sprintf(
			"This LINE account is not linked to a crew profile yet.\nAsk an admin to link ID: %s", lineUserID))
	}
	if err != nil {
		return nil, err
	}
	if u.Disabled {
		return nil, h.replyMessage(replyToken, "Your account is disabled.")
	}
	return u, nil
}

func (h *WebhookHandler) handleTextMessage(ctx context.Context, replyToken, userID, text string) error {
	command := strings.ToLower(strings.TrimSpace(text))
	h.log.Debug("received text", zap.String("lineUser", userID), zap.String("command", command))

	switch command {
	case "help", "?":
		return h.showHelp(replyToken)
	case "id":
		return h.replyMessage(replyToken, "Your LINE ID: "+userID)
	case "tasks", "today", "off", "no work":
	default:
		return nil
	}

	u, err := h.crewMember(ctx, replyToken, userID)
	if u == nil {
		return err
	}
	switch command {
	case "tasks":
		return h.showTaskList(ctx, replyToken, u)
	case "today":
		return h.showToday(ctx, replyToken, u)
	default:
		return h.showNoWorkDays(ctx, replyToken)
	}
}

func (h *WebhookHandler) handlePostback(ctx context.Context, replyToken, userID, data string) error {
	action, taskID, ok := strings.Cut(data, ":")
	if !ok || action != "complete" || taskID == "" {
		return nil
	}
	u, err := h.crewMember(ctx, replyToken, userID)
	if u == nil {
		return err
	}
	return h.completeTask(ctx, replyToken, u, taskID)
}

// openTasks lists the member's assignments that are not completed yet.
func (h *WebhookHandler) openTasks(ctx context.Context, u *models.User) ([]models.Task, error) {
	tasks, err := h.svc.TasksAssignedTo(ctx, u.DisplayName)
	if err != nil {
		return nil, err
	}
	open := tasks[:0]
	for _, t := range tasks {
		if t.Status != models.StatusCompleted {
			open = append(open, t)
		}
	}
	return open, nil
}

func (h *WebhookHandler) showTaskList(ctx context.Context, replyToken string, u *models.User) error {
	tasks, err := h.openTasks(ctx, u)
	if err != nil {
		h.log.Error("listing crew tasks", zap.String("uid", u.ID), zap.Error(err))
		return h.replyMessage(replyToken, "Could not load your tasks.")
	}
	if len(tasks) == 0 {
		return h.replyMessage(replyToken, "You have no open tasks.")
	}
	return h.reply(replyToken, h.createTaskListFlexMessage("Your tasks", tasks))
}

func (h *WebhookHandler) showToday(ctx context.Context, replyToken string, u *models.User) error {
	today := calendar.FromTime(h.svc.Now())
	days, err := h.svc.ListNoWorkDays(ctx)
	if err != nil {
		return err
	}
	if reason, blocked := calendar.ReasonFor(today.String(), days); blocked {
		return h.replyMessage(replyToken, fmt.Sprintf("🚫 No work today: %s", reason))
	}

	tasks, err := h.openTasks(ctx, u)
	if err != nil {
		h.log.Error("listing crew tasks", zap.String("uid", u.ID), zap.Error(err))
		return h.replyMessage(replyToken, "Could not load your tasks.")
	}
	tasks = calendar.TasksForDate(tasks, today)
	if len(tasks) == 0 {
		return h.replyMessage(replyToken, "Nothing scheduled for you today.")
	}
	return h.reply(replyToken, h.createTaskListFlexMessage("Today "+today.String(), tasks))
}

func (h *WebhookHandler) showNoWorkDays(ctx context.Context, replyToken string) error {
	days, err := h.svc.ListNoWorkDays(ctx)
	if err != nil {
		return err
	}
	upcoming, _ := calendar.SplitUpcoming(days, calendar.FromTime(h.svc.Now()))
	if len(upcoming) == 0 {
		return h.replyMessage(replyToken, "No upcoming no-work days.")
	}
	lines := make([]string, 0, len(upcoming))
	for _, d := range upcoming {
		lines = append(lines, fmt.Sprintf("・%s %s", d.Date, d.Reason))
	}
	return h.replyMessage(replyToken, "🚫 Upcoming no-work days\n\n"+strings.Join(lines, "\n"))
}

func (h *WebhookHandler) createTaskListFlexMessage(title string, tasks []models.Task) *messaging_api.FlexMessage {
	if len(tasks) > maxListed {
		tasks = tasks[:maxListed]
	}
	var contents []messaging_api.FlexComponentInterface

	for i, task := range tasks {
		dates := "Not scheduled"
		if start, end, ok := calendar.Span(&task); ok {
			dates = start.String()
			if end != start {
				dates += " → " + end.String()
			}
		}

		box := &messaging_api.FlexBox{
			Layout: "vertical",
			Contents: []messaging_api.FlexComponentInterface{
				&messaging_api.FlexText{
					Text:   task.Name,
					Weight: "bold",
					Size:   "md",
				},
				&messaging_api.FlexText{
					Text:  fmt.Sprintf("%s · %s", dates, calendar.StatusLabel(task.Status)),
					Size:  "sm",
					Color: "#999999",
				},
				&messaging_api.FlexButton{
					Action: &messaging_api.PostbackAction{
						Label: "Done",
						Data:  "complete:" + task.ID,
					},
					Style: "primary",
					Color: "#1DB446",
				},
			},
			Margin:  "md",
			Spacing: "sm",
		}

		if i > 0 {
			box.PaddingTop = "md"
		}

		contents = append(contents, box)
	}

	return &messaging_api.FlexMessage{
		AltText: title,
		Contents: &messaging_api.FlexBubble{
			Header: &messaging_api.FlexBox{
				Layout: "vertical",
				Contents: []messaging_api.FlexComponentInterface{
					&messaging_api.FlexText{
						Text:   title,
						Weight: "bold",
						Size:   "xl",
					},
				},
				PaddingAll: "md",
			},
			Body: &messaging_api.FlexBox{
				Layout:   "vertical",
				Contents: contents,
				Spacing:  "md",
			},
		},
	}
}

func (h *WebhookHandler) completeTask(ctx context.Context, replyToken string, u *models.User, taskID string) error {
	tasks, err := h.svc.TasksAssignedTo(ctx, u.DisplayName)
	if err != nil {
		return err
	}
	var task *models.Task
	for i := range tasks {
		if tasks[i].ID == taskID {
			task = &tasks[i]
			break
		}
	}
	if task == nil {
		return h.replyMessage(replyToken, "That task is not assigned to you.")
	}
	if task.Status == models.StatusCompleted {
		return h.replyMessage(replyToken, fmt.Sprintf("%s is already completed.", task.Name))
	}

	done := models.StatusCompleted
	if err := h.svc.UpdateTask(ctx, taskID, services.TaskPatch{Status: &done}, u); err != nil {
		return h.replyMessage(replyToken, "Could not complete the task.")
	}
	if s, ok := h.sessions.FindByLineUser(u.LineUserID); ok {
		s.Toasts().Info(fmt.Sprintf("%s marked complete from LINE", task.Name))
	}
	return h.replyMessage(replyToken, fmt.Sprintf("🎉 %s completed!", task.Name))
}

func (h *WebhookHandler) showHelp(replyToken string) error {
	helpText := `📅 Crew Calendar bot

📋 tasks
  your open tasks, with a Done button

☀️ today
  what you are scheduled for today

🚫 off
  upcoming no-work days

🔗 id
  your LINE ID, for an admin to link your profile`

	message := &messaging_api.TextMessage{
		Text: helpText,
		QuickReply: &messaging_api.QuickReply{
			Items: []messaging_api.QuickReplyItem{
				{Action: &messaging_api.MessageAction{Label: "Tasks", Text: "tasks"}},
				{Action: &messaging_api.MessageAction{Label: "Today", Text: "today"}},
				{Action: &messaging_api.MessageAction{Label: "No-work days", Text: "off"}},
			},
		},
	}
	return h.reply(replyToken, message)
}

func (h *WebhookHandler) replyMessage(replyToken, text string) error {
	return h.reply(replyToken, &messaging_api.TextMessage{Text: text})
}

func (h *WebhookHandler) reply(replyToken string, message messaging_api.MessageInterface) error {
	_, err := h.bot.ReplyMessage(
		&messaging_api.ReplyMessageRequest{
			ReplyToken: replyToken,
			Messages:   []messaging_api.MessageInterface{message},
		},
	)
	if err != nil {
		h.log.Error("sending reply", zap.Error(err))
	}
	return err
}
