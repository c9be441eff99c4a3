// Package report assembles the consolidated plan view over a document's
// reconciled entity records.
package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clearbasin/planengine/internal/observability"
	"github.com/clearbasin/planengine/internal/storage"
)

// Summary carries the headline numbers for one document.
type Summary struct {
	TotalGoals     int     `json:"totalGoals"`
	TotalBMPs      int     `json:"totalBMPs"`
	CompletionRate float64 `json:"completionRate"`
}

// Report is the full consolidated view of a document's entities.
type Report struct {
	UploadID   uuid.UUID                                    `json:"uploadId"`
	Categories map[storage.Category][]*storage.EntityRecord `json:"categories"`
	Summary    Summary                                      `json:"summary"`
}

// Service builds reports from the entity store.
type Service struct {
	entities storage.EntityStore
	logger   *observability.Logger
}

// NewService creates a report service.
func NewService(entities storage.EntityStore, logger *observability.Logger) *Service {
	return &Service{entities: entities, logger: logger.WithComponent("report")}
}

// Build loads all six categories in parallel and computes the summary.
func (s *Service) Build(ctx context.Context, uploadID uuid.UUID) (*Report, error) {
	loaded := make([][]*storage.EntityRecord, len(storage.Categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range storage.Categories {
		i, category := i, category
		g.Go(func() error {
			records, err := s.entities.FindByParent(gctx, category, uploadID)
			if err != nil {
				return fmt.Errorf("load %s records: %w", category, err)
			}
			loaded[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	categories := make(map[storage.Category][]*storage.EntityRecord, len(storage.Categories))
	for i, category := range storage.Categories {
		categories[category] = loaded[i]
	}

	report := &Report{
		UploadID:   uploadID,
		Categories: categories,
		Summary: Summary{
			TotalGoals:     len(categories[storage.CategoryGoal]),
			TotalBMPs:      len(categories[storage.CategoryBMP]),
			CompletionRate: completionRate(categories[storage.CategoryGoal]),
		},
	}
	s.logger.Debug().
		Str("upload", uploadID.String()).
		Int("goals", report.Summary.TotalGoals).
		Int("bmps", report.Summary.TotalBMPs).
		Msg("report assembled")
	return report, nil
}

// completionRate averages the percentage progress over the goals that report
// one. Goals without a usable progress value are left out of the average.
func completionRate(goals []*storage.EntityRecord) float64 {
	var sum float64
	var counted int
	for _, goal := range goals {
		pct, ok := progressPercent(goal.Fields["progress"])
		if !ok {
			continue
		}
		sum += pct
		counted++
	}
	if counted == 0 {
		return 0
	}
	return sum / float64(counted)
}

func progressPercent(v any) (float64, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return 0, false
	}
	unit, _ := obj["unit"].(string)
	if strings.TrimSpace(unit) != "%" {
		return 0, false
	}
	var pct float64
	switch val := obj["value"].(type) {
	case float64:
		pct = val
	case int:
		pct = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(val), "%"), 64)
		if err != nil {
			return 0, false
		}
		pct = parsed
	default:
		return 0, false
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}
