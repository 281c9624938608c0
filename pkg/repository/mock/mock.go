package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

var _ repository.GameStore = (*Store)(nil)

// Store is an in-memory GameStore for tests. The *Err fields force the matching
// call to fail so callers can exercise their error paths.
type Store struct {
	mu        sync.Mutex
	tasks     []models.Task
	spottings []models.Spotting
	badges    []models.Badge
	awards    []models.Award

	CreateSpottingErr error
	CountErr          error
	GrantErr          error
	HasAwardErr       error

	// GrantCalls counts GrantAward invocations, successful or not.
	GrantCalls int
}

func NewStore() *Store {
	return &Store{}
}

func (m *Store) CreateTask(ctx context.Context, t *models.Task) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = int64(len(m.tasks) + 1)
	m.tasks = append(m.tasks, *t)
	return t.ID, nil
}

func (m *Store) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			out := t
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Store) TasksCurrentAt(ctx context.Context, now time.Time) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := now.UTC().Truncate(24 * time.Hour)
	var out []models.Task
	for _, t := range m.tasks {
		if !t.ExpiresAt.Before(day) && !t.CreatedAt.Before(day.AddDate(0, 0, -1)) && !t.CreatedAt.After(day.AddDate(0, 0, 1)) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Store) CreateSpotting(ctx context.Context, s *models.Spotting) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateSpottingErr != nil {
		return 0, m.CreateSpottingErr
	}
	for _, e := range m.spottings {
		if e.ShareToken == s.ShareToken {
			return 0, repository.ErrDuplicateShareToken
		}
	}
	s.ID = int64(len(m.spottings) + 1)
	stored := *s
	stored.Task = nil
	m.spottings = append(m.spottings, stored)
	return s.ID, nil
}

func (m *Store) GetSpotting(ctx context.Context, id int64) (*models.Spotting, error) {
	return m.findSpotting(func(s models.Spotting) bool { return s.ID == id })
}

func (m *Store) GetSpottingByShareToken(ctx context.Context, token string) (*models.Spotting, error) {
	return m.findSpotting(func(s models.Spotting) bool { return s.ShareToken == token })
}

func (m *Store) findSpotting(match func(models.Spotting) bool) (*models.Spotting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spottings {
		if match(s) {
			out := s
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Store) ListSpottingsByTask(ctx context.Context, taskID int64) ([]models.Spotting, error) {
	grouped, err := m.ListSpottingsByTasks(ctx, []int64{taskID})
	return grouped[taskID], err
}

func (m *Store) ListSpottingsByTasks(ctx context.Context, taskIDs []int64) (map[int64][]models.Spotting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[int64]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	out := make(map[int64][]models.Spotting)
	for _, s := range m.spottings {
		if s.TaskID != nil && want[*s.TaskID] {
			out[*s.TaskID] = append(out[*s.TaskID], s)
		}
	}
	return out, nil
}

func (m *Store) ListRecentSpottings(ctx context.Context, limit int) ([]models.Spotting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.Spotting(nil), m.spottings...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SpottedAt.After(out[j].SpottedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) CountSpottings(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return int64(len(m.spottings)), nil
}

func (m *Store) CountSpottingsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	var n int64
	for _, s := range m.spottings {
		if !s.SpottedAt.Before(from) && s.SpottedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *Store) CreateBadge(ctx context.Context, b *models.Badge) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.badges {
		if e.Criteria == b.Criteria {
			return 0, repository.ErrDuplicateCriteria
		}
	}
	b.ID = int64(len(m.badges) + 1)
	m.badges = append(m.badges, *b)
	return b.ID, nil
}

func (m *Store) AllBadges(ctx context.Context) ([]models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Badge(nil), m.badges...), nil
}

func (m *Store) GetBadgeByCriteria(ctx context.Context, c models.Criteria) (*models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.badges {
		if b.Criteria == c {
			out := b
			return &out, nil
		}
	}
	return nil, nil
}

func (m *Store) CreateAward(ctx context.Context, a *models.Award) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hasAward(a.SpottingID, a.BadgeID) {
		return repository.ErrDuplicateAward
	}
	m.awards = append(m.awards, *a)
	return nil
}

func (m *Store) GrantAward(ctx context.Context, spottingID, badgeID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GrantCalls++
	if m.GrantErr != nil {
		return false, m.GrantErr
	}
	if m.hasAward(spottingID, badgeID) {
		return false, nil
	}
	m.awards = append(m.awards, models.Award{SpottingID: spottingID, BadgeID: badgeID, AwardedAt: at})
	return true, nil
}

func (m *Store) HasAward(ctx context.Context, spottingID, badgeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.HasAwardErr != nil {
		return false, m.HasAwardErr
	}
	return m.hasAward(spottingID, badgeID), nil
}

func (m *Store) hasAward(spottingID, badgeID int64) bool {
	for _, a := range m.awards {
		if a.SpottingID == spottingID && a.BadgeID == badgeID {
			return true
		}
	}
	return false
}

func (m *Store) ListBadgesForSpotting(ctx context.Context, spottingID int64) ([]models.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Badge
	for _, a := range m.awards {
		if a.SpottingID != spottingID {
			continue
		}
		for _, b := range m.badges {
			if b.ID == a.BadgeID {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

// Awards returns a copy of every granted award.
func (m *Store) Awards() []models.Award {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Award(nil), m.awards...)
}
