package dashboard

import (
	"context"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
	"github.com/ytakahashi/crew-calendar/internal/policy"
)

// NoWorkDays splits the registry into upcoming and past days.
type NoWorkDays struct {
	Upcoming []models.NoWorkDay `json:"upcoming"`
	Past     []models.NoWorkDay `json:"past"`
}

func (s *Session) NoWorkDays() NoWorkDays {
	today := calendar.FromTime(s.deps.Service.Now())
	up, past := calendar.SplitUpcoming(s.feeds.NoWorkDays.Items(), today)
	if up == nil {
		up = []models.NoWorkDay{}
	}
	if past == nil {
		past = []models.NoWorkDay{}
	}
	return NoWorkDays{Upcoming: up, Past: past}
}

// AddNoWorkDay blocks a date. Duplicates are checked against this session's
// latest snapshot only.
func (s *Session) AddNoWorkDay(ctx context.Context, date, reason string) (*models.NoWorkDay, error) {
	defer s.Begin("add_no_work_day")()
	u, err := s.enter()
	if err != nil {
		return nil, err
	}
	if !policy.For(u).ManageNoWorkDays {
		return nil, ErrForbidden
	}
	day, err := s.deps.Service.AddNoWorkDay(ctx, date, reason, s.feeds.NoWorkDays.Items())
	if err := s.report(err, "Error adding no-work day", "No-work day added successfully!"); err != nil {
		return nil, err
	}
	return day, nil
}

func (s *Session) DeleteNoWorkDay(ctx context.Context, id string) error {
	defer s.Begin("delete_no_work_day")()
	u, err := s.enter()
	if err != nil {
		return err
	}
	if !policy.For(u).ManageNoWorkDays {
		return ErrForbidden
	}
	err = s.deps.Service.DeleteNoWorkDay(ctx, id)
	return s.report(err, "Error removing no-work day", "No-work day removed")
}
