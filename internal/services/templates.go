package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ytakahashi/crew-calendar/internal/models"
)

func hours(h float64) *float64 { return &h }

// DefaultTemplates is the starter catalogue written by SeedTemplates.
var DefaultTemplates = []models.TaskTemplate{
	{Name: "Powerwash", Category: models.CategoryPrep, Order: 1, EstimatedDuration: hours(4)},
	{Name: "Scrape", Category: models.CategoryPrep, Order: 2, EstimatedDuration: hours(6)},
	{Name: "Scrape, Sand & Prime", Category: models.CategoryPrep, Order: 3, EstimatedDuration: hours(8)},
	{Name: "Prime", Category: models.CategoryPrep, Order: 4, EstimatedDuration: hours(4)},
	{Name: "Caulk", Category: models.CategoryPrep, Order: 5, EstimatedDuration: hours(3)},

	{Name: "Siding", Category: models.CategoryPaint, Order: 1, EstimatedDuration: hours(8)},
	{Name: "Eaves", Category: models.CategoryPaint, Order: 2, EstimatedDuration: hours(3)},
	{Name: "Facia", Category: models.CategoryPaint, Order: 3, EstimatedDuration: hours(2)},
	{Name: "Gutters", Category: models.CategoryPaint, Order: 4, EstimatedDuration: hours(2)},
	{Name: "Downspouts", Category: models.CategoryPaint, Order: 5, EstimatedDuration: hours(1)},
	{Name: "Windows", Category: models.CategoryPaint, Order: 6, EstimatedDuration: hours(4)},
	{Name: "Foundation", Category: models.CategoryPaint, Order: 7, EstimatedDuration: hours(2)},
	{Name: "Stairs", Category: models.CategoryPaint, Order: 8, EstimatedDuration: hours(2)},
	{Name: "Deck", Category: models.CategoryPaint, Order: 9, EstimatedDuration: hours(6)},
	{Name: "Fence", Category: models.CategoryPaint, Order: 10, EstimatedDuration: hours(8)},
	{Name: "Pergola", Category: models.CategoryPaint, Order: 11, EstimatedDuration: hours(3)},
	{Name: models.OtherTemplateName, Category: models.CategoryPaint, Order: 12, EstimatedDuration: hours(2)},

	{Name: "Final Walkthrough", Category: models.CategoryFinalWalkthrough, Order: 1, EstimatedDuration: hours(1)},
	{Name: "Touch-ups", Category: models.CategoryFinalWalkthrough, Order: 2, EstimatedDuration: hours(2)},
	{Name: "Cleanup", Category: models.CategoryFinalWalkthrough, Order: 3, EstimatedDuration: hours(1)},
}

// ListTemplates reads the task templates once, ordered by name.
func (s *Service) ListTemplates(ctx context.Context) ([]models.TaskTemplate, error) {
	docs, err := s.store.Query(ctx, From(CollectionTemplates).Ordered("name", Asc))
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return DecodeAll[models.TaskTemplate](docs)
}

// SeedTemplates writes DefaultTemplates into an empty catalogue and reports
// how many were added. A catalogue with any template is left alone.
func (s *Service) SeedTemplates(ctx context.Context) (int, error) {
	existing, err := s.store.Query(ctx, From(CollectionTemplates))
	if err != nil {
		return 0, fmt.Errorf("checking templates: %w", err)
	}
	if len(existing) > 0 {
		s.log.Info("task templates already exist, skipping seed", zap.Int("count", len(existing)))
		return 0, nil
	}

	now := s.Now()
	for i, tmpl := range DefaultTemplates {
		tmpl.Active = true
		tmpl.CreatedAt = now
		_, err := s.store.Insert(ctx, CollectionTemplates, tmpl)
		if err := s.observe("seed_template", err, zap.String("name", tmpl.Name)); err != nil {
			return i, fmt.Errorf("seeding template %q: %w", tmpl.Name, err)
		}
	}
	return len(DefaultTemplates), nil
}
