package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/garnizeh/wildspot/internal/ai"
	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

// Geocoder turns coordinates into a place description.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (models.LocationInfo, error)
}

// Store is the persistence the task service needs.
type Store interface {
	CreateTask(ctx context.Context, t *models.Task) (int64, error)
	TasksCurrentAt(ctx context.Context, now time.Time) ([]models.Task, error)
	ListSpottingsByTasks(ctx context.Context, taskIDs []int64) (map[int64][]models.Spotting, error)
}

var _ Store = (repository.GameStore)(nil)

type Service struct {
	store     Store
	geo       Geocoder
	suggester ai.Suggester
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(store Store, geo Geocoder, suggester ai.Suggester, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, geo: geo, suggester: suggester, logger: logger, now: time.Now}
}

// WithClock replaces the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Current returns the tasks open at now with their progress, oldest first.
func (s *Service) Current(ctx context.Context, now time.Time) ([]CurrentTask, error) {
	candidates, err := s.store.TasksCurrentAt(ctx, now)
	if err != nil {
		return nil, err
	}
	var (
		open []models.Task
		ids  []int64
	)
	for _, t := range candidates {
		if IsCurrent(t, now) {
			open = append(open, t)
			ids = append(ids, t.ID)
		}
	}
	byTask, err := s.store.ListSpottingsByTasks(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]CurrentTask, 0, len(open))
	for _, t := range open {
		out = append(out, CurrentTask{Task: t, Progress: ProgressOf(t, byTask[t.ID])})
	}
	return out, nil
}

// Generated is the result of a task generation request.
type Generated struct {
	Location models.LocationInfo `json:"location"`
	Daily    []ai.Suggestion     `json:"daily"`
	Weekly   []ai.Suggestion     `json:"weekly"`
	Tasks    []models.Task       `json:"tasks"`
}

// Generate reverse-geocodes the coordinates, asks the suggester for animals to look
// for and stores one task per suggestion.
func (s *Service) Generate(ctx context.Context, lat, lng float64) (*Generated, error) {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, apperr.Validation("latitude", "must be between -90 and 90")
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return nil, apperr.Validation("longitude", "must be between -180 and 180")
	}

	loc, err := s.geo.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	sug, err := s.suggester.Suggest(ctx, loc)
	if err != nil {
		return nil, err
	}

	created := s.now().UTC()
	label := LocationLabel(loc)
	out := &Generated{Location: loc, Daily: sug.Daily, Weekly: sug.Weekly}
	add := func(list []ai.Suggestion, kind models.TaskKind) error {
		for _, item := range list {
			animal := strings.TrimSpace(item.Animal)
			if animal == "" {
				continue
			}
			t := models.Task{Animal: animal, Kind: kind, Location: label, CreatedAt: created, ExpiresAt: created.Add(kind.Lifetime())}
			if _, err := s.store.CreateTask(ctx, &t); err != nil {
				return fmt.Errorf("store %s task %q: %w", kind, animal, err)
			}
			out.Tasks = append(out.Tasks, t)
		}
		return nil
	}
	if err := add(sug.Daily, models.TaskDaily); err != nil {
		return nil, err
	}
	if err := add(sug.Weekly, models.TaskWeekly); err != nil {
		return nil, err
	}

	s.logger.Info("tasks generated", slog.String("location", label), slog.Int("count", len(out.Tasks)))
	return out, nil
}

// LocationLabel renders a LocationInfo as "city, state, country", skipping empty parts.
func LocationLabel(loc models.LocationInfo) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{loc.City, loc.State, loc.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return loc.Natural
	}
	return strings.Join(parts, ", ")
}
