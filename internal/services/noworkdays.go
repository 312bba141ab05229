package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/calendar"
	"github.com/ytakahashi/crew-calendar/internal/models"
)

// AddNoWorkDay blocks date for scheduling. The duplicate check only sees
// existing, the caller's latest snapshot; two admins adding the same date at
// once can both succeed.
func (s *Service) AddNoWorkDay(ctx context.Context, date, reason string, existing []models.NoWorkDay) (*models.NoWorkDay, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		return nil, invalid("date", "please select a date")
	}
	if _, err := calendar.ParseDate(date); err != nil {
		return nil, invalid("date", err.Error())
	}
	if calendar.IsBlocked(date, existing) {
		return nil, invalid("date", "this date is already marked as a no-work day")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = models.DefaultNoWorkReason
	}

	day := &models.NoWorkDay{
		Date:      date,
		Reason:    s.clean(reason),
		CreatedAt: s.Now(),
	}
	id, err := s.store.Insert(ctx, CollectionNoWorkDays, day)
	if err := s.observe("add_no_work_day", err, zap.String("date", date)); err != nil {
		return nil, fmt.Errorf("adding no-work day: %w", err)
	}
	day.ID = id
	return day, nil
}

func (s *Service) DeleteNoWorkDay(ctx context.Context, id string) error {
	if id == "" {
		return invalid("id", "missing no-work day id")
	}
	err := s.store.Remove(ctx, CollectionNoWorkDays, id)
	if err := s.observe("delete_no_work_day", err, zap.String("id", id)); err != nil {
		return fmt.Errorf("removing no-work day: %w", err)
	}
	return nil
}

// ListNoWorkDays reads the registry once, ordered by date.
func (s *Service) ListNoWorkDays(ctx context.Context) ([]models.NoWorkDay, error) {
	docs, err := s.store.Query(ctx, From(CollectionNoWorkDays).Ordered("date", Asc))
	if err != nil {
		return nil, fmt.Errorf("listing no-work days: %w", err)
	}
	return DecodeAll[models.NoWorkDay](docs)
}
