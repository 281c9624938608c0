package intake_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	dbfs "github.com/garnizeh/wildspot/db"
	"github.com/garnizeh/wildspot/internal/ai"
	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/badges"
	"github.com/garnizeh/wildspot/internal/blob"
	"github.com/garnizeh/wildspot/internal/intake"
	"github.com/garnizeh/wildspot/internal/metrics"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/internal/testutil"
	"github.com/garnizeh/wildspot/pkg/repository"
	"github.com/garnizeh/wildspot/pkg/repository/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDRfake")
	noon     = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
)

type fakeClassifier struct {
	res   ai.ClassificationResult
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, image []byte) ai.ClassificationResult {
	f.calls++
	return f.res
}

func okClassifier(animal string) *fakeClassifier {
	return &fakeClassifier{res: ai.OK("test", models.AnimalReport{
		Animal:  animal,
		Details: models.AnimalDetails{Habitat: "woods", Diet: "mice", Behavior: "shy", InterestingFacts: []string{"fast"}},
	})}
}

type fakeQueue struct {
	mu    sync.Mutex
	jobs  []json.RawMessage
	types []string
	err   error
}

func (q *fakeQueue) Enqueue(ctx context.Context, typ string, payload any, priority int) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return 0, q.err
	}
	b, _ := json.Marshal(payload)
	q.jobs = append(q.jobs, b)
	q.types = append(q.types, typ)
	return int64(len(q.jobs)), nil
}

type fixture struct {
	store repository.GameStore
	blobs *blob.Local
	dir   string
	svc   *intake.Service
	queue *fakeQueue
}

func seed(t *testing.T, store repository.BadgeRepo) {
	t.Helper()
	catalog, err := badges.ParseCatalog(dbfs.BadgeCatalog)
	require.NoError(t, err)
	_, err = badges.EnsureCatalogSeeded(context.Background(), store, catalog, nil)
	require.NoError(t, err)
}

func newFixture(t *testing.T, store repository.GameStore, cl ai.Classifier) *fixture {
	t.Helper()
	seed(t, store)
	dir := t.TempDir()
	blobs, err := blob.NewLocal(dir)
	require.NoError(t, err)
	q := &fakeQueue{}
	svc := intake.NewService(store, blobs, cl, q, metrics.New(), intake.Config{
		PublicBaseURL:  "https://wild.example/",
		MaxUploadBytes: 1 << 10,
	}, nil).WithClock(func() time.Time { return noon })
	return &fixture{store: store, blobs: blobs, dir: dir, svc: svc, queue: q}
}

func (f *fixture) files(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	return len(entries)
}

func (f *fixture) saveImage(t *testing.T) string {
	t.Helper()
	h, err := f.blobs.Save(context.Background(), blob.NewName("photo.png", noon), "image/png", pngBytes)
	require.NoError(t, err)
	return h
}

func criteriaOf(bs []models.Badge) []models.Criteria {
	out := make([]models.Criteria, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Criteria)
	}
	return out
}

func TestSubmit_FirstSpottingEarnsFirstSpotter(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	f := newFixture(t, repo, okClassifier("Red Fox"))

	res, err := f.svc.Submit(ctx, intake.Upload{Filename: "fox.png", Data: pngBytes, Location: "Bristol"})
	require.NoError(t, err)

	assert.Equal(t, "Red Fox", res.Label)
	require.NotNil(t, res.Details)
	assert.Equal(t, "woods", res.Details.Habitat)
	require.Len(t, res.NewBadges, 1)
	assert.Equal(t, "First Spotter", res.NewBadges[0].Name)
	assert.Equal(t, []string{"First Spotter"}, res.NewBadgeNames)
	assert.Zero(t, res.PendingAwards)
	assert.Len(t, res.Spotting.ShareToken, 8)
	assert.Equal(t, "https://wild.example/share/"+res.Spotting.ShareToken, res.ShareURL)
	assert.Equal(t, 1, f.files(t))

	stored, err := repo.GetSpottingByShareToken(ctx, res.Spotting.ShareToken)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Bristol", stored.Location)
	assert.Equal(t, noon, stored.SpottedAt)

	got, err := repo.ListBadgesForSpotting(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.Criteria{models.CriteriaFirstSpot}, criteriaOf(got))

	// The second spotting earns nothing.
	res2, err := f.svc.Submit(ctx, intake.Upload{Filename: "fox2.png", Data: pngBytes})
	require.NoError(t, err)
	assert.Empty(t, res2.NewBadges)
}

func TestRecord_FifthInWindowEarnsDailyExplorer(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	f := newFixture(t, repo, okClassifier("Robin"))

	var last *intake.Result
	for i := 0; i < 5; i++ {
		res, err := f.svc.Record(ctx, intake.Submission{Label: "Robin", ImageHandle: f.saveImage(t)})
		require.NoError(t, err)
		if i < 4 && i > 0 {
			assert.Empty(t, res.NewBadges, "spotting %d", i+1)
		}
		last = res
	}
	assert.Equal(t, []models.Criteria{models.CriteriaDaily5}, criteriaOf(last.NewBadges))
}

func TestRecord_DailyWindowPolicy(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		policy badges.WindowPolicy
		want   []models.Criteria
	}{
		{badges.WindowLiteral, []models.Criteria{models.CriteriaDaily5}},
		{badges.WindowSameDay, []models.Criteria{}},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			repo := testutil.NewRepo(t)
			seed(t, repo)
			blobs, err := blob.NewLocal(t.TempDir())
			require.NoError(t, err)

			clock := noon.AddDate(0, 0, -1)
			svc := intake.NewService(repo, blobs, okClassifier("Robin"), nil, nil, intake.Config{Window: tc.policy}, nil).
				WithClock(func() time.Time { return clock })

			// Three yesterday, two today.
			var res *intake.Result
			for i := 0; i < 5; i++ {
				if i == 3 {
					clock = noon
				}
				res, err = svc.Record(ctx, intake.Submission{Label: "Robin", ImageHandle: "img.png"})
				require.NoError(t, err)
			}
			assert.Equal(t, tc.want, criteriaOf(res.NewBadges))
		})
	}
}

func TestRecord_WeeklyTaskEarnsWeeklyChampion(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	f := newFixture(t, repo, okClassifier("Kingfisher"))

	// A first spotting so the weekly one is not also the first.
	_, err := f.svc.Record(ctx, intake.Submission{Label: "Crow", ImageHandle: f.saveImage(t)})
	require.NoError(t, err)

	weekly := models.Task{Animal: "Kingfisher", Kind: models.TaskWeekly, CreatedAt: noon, ExpiresAt: noon.Add(models.TaskWeekly.Lifetime())}
	_, err = repo.CreateTask(ctx, &weekly)
	require.NoError(t, err)
	daily := models.Task{Animal: "Crow", Kind: models.TaskDaily, CreatedAt: noon, ExpiresAt: noon.Add(models.TaskDaily.Lifetime())}
	_, err = repo.CreateTask(ctx, &daily)
	require.NoError(t, err)

	res, err := f.svc.Record(ctx, intake.Submission{Label: "Kingfisher", ImageHandle: f.saveImage(t), TaskID: &weekly.ID})
	require.NoError(t, err)
	assert.Equal(t, []models.Criteria{models.CriteriaWeeklyComplete}, criteriaOf(res.NewBadges))

	res, err = f.svc.Record(ctx, intake.Submission{Label: "Crow", ImageHandle: f.saveImage(t), TaskID: &daily.ID})
	require.NoError(t, err)
	assert.Empty(t, res.NewBadges)
}

func TestSubmit_ClassifierFailureLeavesNothing(t *testing.T) {
	for name, res := range map[string]ai.ClassificationResult{
		"unavailable": ai.Unavailable("test", errors.New("connection refused")),
		"malformed":   ai.Malformed("test", "not json", nil),
	} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			repo := testutil.NewRepo(t)
			f := newFixture(t, repo, &fakeClassifier{res: res})

			_, err := f.svc.Submit(ctx, intake.Upload{Filename: "x.png", Data: pngBytes})
			require.Error(t, err)
			assert.True(t, apperr.IsProvider(err), "got %v", err)

			n, err := repo.CountSpottings(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Zero(t, f.files(t), "no orphaned image")
		})
	}
}

func TestSubmit_RejectsBadUploads(t *testing.T) {
	cl := okClassifier("Fox")
	f := newFixture(t, mock.NewStore(), cl)
	ctx := context.Background()

	for name, data := range map[string][]byte{
		"empty":     nil,
		"too large": append(append([]byte{}, pngBytes...), make([]byte, 2<<10)...),
		"not image": []byte("hello, plain text"),
	} {
		_, err := f.svc.Submit(ctx, intake.Upload{Filename: "x.png", Data: data})
		assert.True(t, apperr.IsValidation(err), "%s: %v", name, err)
	}
	assert.Zero(t, cl.calls)
	assert.Zero(t, f.files(t))
}

func TestRecord_ValidationDeletesImage(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	f := newFixture(t, store, okClassifier("Fox"))

	_, err := f.svc.Record(ctx, intake.Submission{Label: "  ", ImageHandle: f.saveImage(t)})
	assert.True(t, apperr.IsValidation(err))

	missing := int64(404)
	_, err = f.svc.Record(ctx, intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t), TaskID: &missing})
	assert.True(t, apperr.IsValidation(err))

	_, err = f.svc.Record(ctx, intake.Submission{Label: "Fox"})
	assert.True(t, apperr.IsValidation(err))

	assert.Zero(t, f.files(t))
	n, _ := store.CountSpottings(ctx)
	assert.Zero(t, n)
}

func TestRecord_InsertFailureDeletesImage(t *testing.T) {
	store := mock.NewStore()
	store.CreateSpottingErr = errors.New("disk I/O error")
	f := newFixture(t, store, okClassifier("Fox"))

	_, err := f.svc.Record(context.Background(), intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t)})
	assert.True(t, apperr.IsStorage(err), "got %v", err)
	assert.Zero(t, f.files(t))
}

func TestRecord_CountFailureKeepsSpotting(t *testing.T) {
	store := mock.NewStore()
	f := newFixture(t, store, okClassifier("Fox"))
	store.CountErr = errors.New("database is locked")

	_, err := f.svc.Record(context.Background(), intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t)})
	assert.True(t, apperr.IsStorage(err))
	assert.Equal(t, 1, f.files(t), "the stored spotting still references its image")
}

func TestRecord_GrantFailureIsQueued(t *testing.T) {
	ctx := context.Background()
	store := mock.NewStore()
	f := newFixture(t, store, okClassifier("Fox"))
	store.GrantErr = errors.New("database is locked")

	res, err := f.svc.Record(ctx, intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t)})
	require.NoError(t, err)
	assert.Equal(t, []models.Criteria{models.CriteriaFirstSpot}, criteriaOf(res.NewBadges))
	assert.Equal(t, 1, res.PendingAwards)
	assert.Empty(t, store.Awards())

	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, intake.JobGrantAward, f.queue.types[0])

	// The retry lands once the store recovers, and running it again is a no-op.
	store.GrantErr = nil
	job := &models.BackgroundJob{Type: intake.JobGrantAward, Payload: f.queue.jobs[0]}
	require.NoError(t, f.svc.HandleGrantAward(ctx, job))
	require.NoError(t, f.svc.HandleGrantAward(ctx, job))
	awards := store.Awards()
	require.Len(t, awards, 1)
	assert.Equal(t, res.Spotting.ID, awards[0].SpottingID)
	assert.Equal(t, noon, awards[0].AwardedAt)
}

func TestRecord_HasAwardFailureIsQueued(t *testing.T) {
	store := mock.NewStore()
	f := newFixture(t, store, okClassifier("Fox"))
	store.HasAwardErr = errors.New("boom")
	f.queue.err = errors.New("queue down")

	res, err := f.svc.Record(context.Background(), intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.PendingAwards)
	assert.Zero(t, store.GrantCalls)
}

func TestHandleGrantAward_BadPayload(t *testing.T) {
	f := newFixture(t, mock.NewStore(), okClassifier("Fox"))
	ctx := context.Background()
	assert.Error(t, f.svc.HandleGrantAward(ctx, &models.BackgroundJob{Payload: []byte("{")}))
	assert.Error(t, f.svc.HandleGrantAward(ctx, &models.BackgroundJob{Payload: []byte(`{"spotting_id":1}`)}))
}

// collidingStore reports a share-token collision on the first n inserts.
type collidingStore struct {
	*mock.Store
	collisions int
	tokens     []string
}

func (c *collidingStore) CreateSpotting(ctx context.Context, s *models.Spotting) (int64, error) {
	c.tokens = append(c.tokens, s.ShareToken)
	if c.collisions > 0 {
		c.collisions--
		return 0, repository.ErrDuplicateShareToken
	}
	return c.Store.CreateSpotting(ctx, s)
}

func TestRecord_RetriesShareTokenCollision(t *testing.T) {
	store := &collidingStore{Store: mock.NewStore(), collisions: 2}
	f := newFixture(t, store, okClassifier("Fox"))

	res, err := f.svc.Record(context.Background(), intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t)})
	require.NoError(t, err)
	require.Len(t, store.tokens, 3)
	assert.NotEqual(t, store.tokens[0], store.tokens[1])
	assert.Equal(t, store.tokens[2], res.Spotting.ShareToken)

	store.collisions = 100
	_, err = f.svc.Record(context.Background(), intake.Submission{Label: "Fox", ImageHandle: f.saveImage(t)})
	assert.True(t, apperr.IsStorage(err))
}

func TestRecord_ConcurrentFirstSpotAwardedOnce(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewRepo(t)
	f := newFixture(t, repo, okClassifier("Fox"))

	var wg sync.WaitGroup
	results := make([]*intake.Result, 10)
	errs := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Record(ctx, intake.Submission{Label: "Fox", ImageHandle: "img.png"})
		}(i)
	}
	wg.Wait()

	first := 0
	for i, r := range results {
		require.NoError(t, errs[i])
		for _, b := range r.NewBadges {
			if b.Criteria == models.CriteriaFirstSpot {
				first++
			}
		}
	}
	assert.Equal(t, 1, first)
}
