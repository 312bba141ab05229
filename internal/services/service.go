package services

import (
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/metrics"
)

// Service holds the write-through actions. Every action goes straight to
// the store; local views only change when the resulting snapshot arrives.
type Service struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
	text    *bluemonday.Policy

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

func NewService(store Store, log *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		log:     log,
		metrics: m,
		text:    bluemonday.StrictPolicy(),
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// Store exposes the underlying store for subscriptions.
func (s *Service) Store() Store {
	return s.store
}

// clean strips markup from free text before it is stored. The policy
// escapes what it keeps; values are stored and served as plain text, so the
// entities are decoded again.
func (s *Service) clean(text string) string {
	return html.UnescapeString(s.text.Sanitize(text))
}

func (s *Service) observe(action string, err error, fields ...zap.Field) error {
	s.metrics.ObserveWrite(action, err)
	if err != nil {
		s.log.Error(action+" failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug(action, fields...)
	}
	return err
}
