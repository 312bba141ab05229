package notify

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

// Pusher is the part of the LINE Messaging API client used for pushes.
type Pusher interface {
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
}

// LinePusher tells crew members on LINE when their tasks move. A nil
// *LinePusher sends nothing.
type LinePusher struct {
	api Pusher
	log *zap.Logger
}

func NewLinePusher(api Pusher, log *zap.Logger) *LinePusher {
	if api == nil {
		return nil
	}
	return &LinePusher{api: api, log: log}
}

// Push sends one text message to a LINE user.
func (p *LinePusher) Push(to, text string) error {
	if p == nil || to == "" {
		return nil
	}
	_, err := p.api.PushMessage(
		&messaging_api.PushMessageRequest{
			To:       to,
			Messages: []messaging_api.MessageInterface{&messaging_api.TextMessage{Text: text}},
		},
		uuid.NewString(),
	)
	if err != nil {
		return fmt.Errorf("pushing to %s: %w", to, err)
	}
	return nil
}

// TaskScheduled pushes the new dates of task to every assigned crew member
// with a linked LINE account. It returns how many pushes succeeded; failures
// are logged and skipped.
func (p *LinePusher) TaskScheduled(task models.Task, crew []models.User) int {
	if p == nil {
		return 0
	}
	text := ScheduleText(task)
	sent := 0
	for _, u := range crew {
		if u.LineUserID == "" || u.Disabled || !task.IsAssigned(u.DisplayName) {
			continue
		}
		if err := p.Push(u.LineUserID, text); err != nil {
			p.log.Warn("line push failed", zap.String("user", u.ID), zap.String("task", task.ID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// ScheduleText is the one-line description of a task's dates.
func ScheduleText(task models.Task) string {
	switch {
	case !task.Scheduled():
		return fmt.Sprintf("📅 %s is not scheduled yet", task.Name)
	case task.StartDate == task.DueDate:
		return fmt.Sprintf("📅 %s is scheduled for %s", task.Name, task.DueDate)
	}
	return fmt.Sprintf("📅 %s is scheduled %s to %s", task.Name, task.StartDate, task.DueDate)
}
