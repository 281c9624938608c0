package tasks_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/garnizeh/wildspot/internal/ai"
	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/internal/tasks"
	"github.com/garnizeh/wildspot/internal/testutil"
	"github.com/garnizeh/wildspot/pkg/repository/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGeo struct {
	loc   models.LocationInfo
	err   error
	calls int
}

func (f *fakeGeo) ReverseGeocode(ctx context.Context, lat, lng float64) (models.LocationInfo, error) {
	f.calls++
	return f.loc, f.err
}

type failingSuggester struct{}

func (failingSuggester) Suggest(ctx context.Context, loc models.LocationInfo) (*ai.Suggestions, error) {
	return nil, apperr.Provider("test", errors.New("model offline"))
}

type blankSuggester struct{}

func (blankSuggester) Suggest(ctx context.Context, loc models.LocationInfo) (*ai.Suggestions, error) {
	return &ai.Suggestions{Daily: []ai.Suggestion{{Animal: "  "}, {Animal: "Crow"}}}, nil
}

func TestGenerate_CreatesTasks(t *testing.T) {
	store := mock.NewStore()
	geo := &fakeGeo{loc: models.LocationInfo{City: "Bristol", Country: "United Kingdom"}}
	svc := tasks.NewService(store, geo, ai.DemoProvider{}, nil).WithClock(func() time.Time { return now })

	out, err := svc.Generate(context.Background(), 51.45, -2.58)
	require.NoError(t, err)
	assert.Equal(t, "Bristol", out.Location.City)
	assert.Len(t, out.Daily, 3)
	assert.Len(t, out.Weekly, 2)
	require.Len(t, out.Tasks, 5)

	for _, tk := range out.Tasks {
		assert.NotZero(t, tk.ID)
		assert.Equal(t, "Bristol, United Kingdom", tk.Location)
		assert.Equal(t, now, tk.CreatedAt)
		assert.True(t, tk.ExpiresAt.After(tk.CreatedAt))
		switch tk.Kind {
		case models.TaskDaily:
			assert.Equal(t, now.Add(24*time.Hour), tk.ExpiresAt)
		case models.TaskWeekly:
			assert.Equal(t, now.Add(7*24*time.Hour), tk.ExpiresAt)
		default:
			t.Fatalf("unexpected kind %q", tk.Kind)
		}
	}
}

func TestGenerate_SkipsBlankAnimals(t *testing.T) {
	svc := tasks.NewService(mock.NewStore(), &fakeGeo{}, blankSuggester{}, nil)
	out, err := svc.Generate(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, "Crow", out.Tasks[0].Animal)
}

func TestGenerate_RejectsBadCoordinates(t *testing.T) {
	geo := &fakeGeo{}
	svc := tasks.NewService(mock.NewStore(), geo, ai.DemoProvider{}, nil)
	for _, c := range [][2]float64{{91, 0}, {-91, 0}, {0, 181}, {0, -181}, {math.NaN(), 0}, {0, math.NaN()}} {
		_, err := svc.Generate(context.Background(), c[0], c[1])
		assert.True(t, apperr.IsValidation(err), "coords %v: %v", c, err)
	}
	assert.Zero(t, geo.calls, "invalid input never reaches the geocoder")
}

func TestGenerate_ProviderFailures(t *testing.T) {
	store := mock.NewStore()

	geoErr := &fakeGeo{err: apperr.Provider("nominatim", errors.New("timeout"))}
	_, err := tasks.NewService(store, geoErr, ai.DemoProvider{}, nil).Generate(context.Background(), 1, 1)
	assert.True(t, apperr.IsProvider(err))

	_, err = tasks.NewService(store, &fakeGeo{}, failingSuggester{}, nil).Generate(context.Background(), 1, 1)
	assert.True(t, apperr.IsProvider(err))

	cur, err := store.TasksCurrentAt(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, cur, "no tasks stored when a provider fails")
}

func TestCurrent_WithProgress(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewRepo(t)

	daily := task(models.TaskDaily, now.Add(-2*time.Hour))
	weekly := task(models.TaskWeekly, now.Add(-3*time.Hour))
	stale := task(models.TaskWeekly, now.Add(-3*24*time.Hour))
	for _, tk := range []*models.Task{&daily, &weekly, &stale} {
		_, err := repo.CreateTask(ctx, tk)
		require.NoError(t, err)
	}
	for i, id := range []int64{daily.ID, daily.ID, weekly.ID} {
		tid := id
		_, err := repo.CreateSpotting(ctx, &models.Spotting{
			TaskID: &tid, ImageHandle: "img.jpg", Label: "Fox", SpottedAt: now,
			ShareToken: []string{"AAAAAAA1", "AAAAAAA2", "AAAAAAA3"}[i],
		})
		require.NoError(t, err)
	}

	cur, err := tasks.NewService(repo, &fakeGeo{}, ai.DemoProvider{}, nil).Current(ctx, now)
	require.NoError(t, err)
	require.Len(t, cur, 2, "the weekly task created three days ago is outside the lookback")

	byID := map[int64]tasks.CurrentTask{}
	for _, c := range cur {
		byID[c.ID] = c
	}
	assert.Equal(t, tasks.Progress{Count: 2, Completed: true}, byID[daily.ID].Progress)
	assert.Equal(t, tasks.Progress{Completed: true}, byID[weekly.ID].Progress)
}

func TestCurrent_Empty(t *testing.T) {
	cur, err := tasks.NewService(mock.NewStore(), &fakeGeo{}, ai.DemoProvider{}, nil).Current(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, cur)
}
