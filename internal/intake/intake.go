// Package intake records spottings: it stores the photo, classifies it, persists the
// spotting and grants the badges it earns.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/garnizeh/wildspot/internal/ai"
	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/badges"
	"github.com/garnizeh/wildspot/internal/blob"
	"github.com/garnizeh/wildspot/internal/metrics"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

// JobGrantAward retries an award grant that failed during intake.
const JobGrantAward = "grant_award"

const maxTokenAttempts = 5

// Enqueuer queues background work.
type Enqueuer interface {
	Enqueue(ctx context.Context, typ string, payload any, priority int) (int64, error)
}

type Config struct {
	PublicBaseURL  string
	MaxUploadBytes int64
	Window         badges.WindowPolicy
}

// Upload is a photo as received from a client.
type Upload struct {
	Filename string
	Data     []byte
	TaskID   *int64
	Location string
}

// Submission is a classified photo ready to be recorded.
type Submission struct {
	Label       string
	Details     *models.AnimalDetails
	TaskID      *int64
	Location    string
	ImageHandle string
	Demo        bool
}

// Result is what a recorded spotting produced.
type Result struct {
	Spotting  models.Spotting       `json:"-"`
	Label     string                `json:"result"`
	Details   *models.AnimalDetails `json:"details,omitempty"`
	NewBadges []models.Badge        `json:"new_badges"`
	// NewBadgeNames lists the names of NewBadges for clients that only show text.
	NewBadgeNames []string `json:"new_badge_names"`
	ShareURL      string   `json:"share_url"`
	// PendingAwards counts badges that were earned but could not be stored yet;
	// they are queued for retry.
	PendingAwards int  `json:"pending_awards"`
	Demo          bool `json:"demo"`
}

type Service struct {
	store      repository.GameStore
	blobs      blob.Store
	classifier ai.Classifier
	queue      Enqueuer
	metrics    *metrics.Metrics
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time

	// mu serializes insert, count and award so snapshots never interleave.
	mu sync.Mutex
}

func NewService(store repository.GameStore, blobs blob.Store, classifier ai.Classifier, queue Enqueuer, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window == "" {
		cfg.Window = badges.WindowLiteral
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &Service{store: store, blobs: blobs, classifier: classifier, queue: queue, metrics: m, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock replaces the service clock. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit stores the uploaded photo, classifies it and records the spotting. When the
// classifier gives no usable answer the photo is removed and nothing is written.
func (s *Service) Submit(ctx context.Context, up Upload) (*Result, error) {
	if len(up.Data) == 0 {
		return nil, apperr.Validation("image", "no image provided")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(up.Data)) > s.cfg.MaxUploadBytes {
		return nil, apperr.Validation("image", fmt.Sprintf("image exceeds %d bytes", s.cfg.MaxUploadBytes))
	}
	contentType := http.DetectContentType(up.Data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Validation("image", "not an image: "+contentType)
	}

	handle, err := s.blobs.Save(ctx, blob.NewName(up.Filename, s.now()), contentType, up.Data)
	if err != nil {
		return nil, apperr.Storage("save image", err)
	}

	res := s.classifier.Classify(ctx, up.Data)
	s.metrics.Classified(res.Provider, res.Outcome.String())
	if err := res.Err(); err != nil {
		s.logger.Warn("classification failed", slog.String("provider", res.Provider), slog.String("outcome", res.Outcome.String()), slog.Any("err", res.Cause))
		s.deleteImage(ctx, handle)
		return nil, err
	}

	details := res.Report.Details
	return s.Record(ctx, Submission{
		Label:       res.Report.Animal,
		Details:     &details,
		TaskID:      up.TaskID,
		Location:    up.Location,
		ImageHandle: handle,
		Demo:        res.Demo,
	})
}

// Record persists a classified spotting and grants the badges it earns. Input errors
// and a failed insert remove the image; once the spotting is stored the image stays.
func (s *Service) Record(ctx context.Context, sub Submission) (*Result, error) {
	label := strings.TrimSpace(sub.Label)
	if label == "" || sub.ImageHandle == "" {
		s.deleteImage(ctx, sub.ImageHandle)
		if label == "" {
			return nil, apperr.Validation("label", "classification label is empty")
		}
		return nil, apperr.Validation("image", "image handle is empty")
	}

	var task *models.Task
	if sub.TaskID != nil {
		t, err := s.store.GetTask(ctx, *sub.TaskID)
		if err != nil {
			s.deleteImage(ctx, sub.ImageHandle)
			return nil, apperr.Storage("get task", err)
		}
		if t == nil {
			s.deleteImage(ctx, sub.ImageHandle)
			return nil, apperr.Validation("task_id", fmt.Sprintf("task %d does not exist", *sub.TaskID))
		}
		task = t
	}

	sp := models.Spotting{
		TaskID:      sub.TaskID,
		ImageHandle: sub.ImageHandle,
		Label:       label,
		Details:     sub.Details,
		Location:    strings.TrimSpace(sub.Location),
		SpottedAt:   s.now().UTC(),
		Demo:        sub.Demo,
		Task:        task,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insert(ctx, &sp); err != nil {
		s.deleteImage(ctx, sub.ImageHandle)
		return nil, err
	}
	s.metrics.SpottingRecorded()
	log := s.logger.With(slog.Int64("spotting_id", sp.ID))

	total, err := s.store.CountSpottings(ctx)
	if err != nil {
		return nil, apperr.Storage("count spottings", err)
	}
	from, to := s.cfg.Window.DailyWindow(sp.SpottedAt)
	inWindow, err := s.store.CountSpottingsBetween(ctx, from, to)
	if err != nil {
		return nil, apperr.Storage("count spottings in window", err)
	}
	catalog, err := s.store.AllBadges(ctx)
	if err != nil {
		return nil, apperr.Storage("load badges", err)
	}

	earned := badges.NewEngine(catalog).Evaluate(sp, badges.Snapshot{Total: total, InDailyWindow: inWindow})
	res := &Result{
		Spotting:      sp,
		Label:         sp.Label,
		Details:       sp.Details,
		NewBadges:     make([]models.Badge, 0, len(earned)),
		NewBadgeNames: make([]string, 0, len(earned)),
		ShareURL:      s.ShareURL(sp.ShareToken),
		Demo:          sp.Demo,
	}
	for _, b := range earned {
		res.NewBadges = append(res.NewBadges, b)
		res.NewBadgeNames = append(res.NewBadgeNames, b.Name)
		if err := s.grant(ctx, sp.ID, b, sp.SpottedAt); err != nil {
			res.PendingAwards++
			log.Error("award grant failed, queued for retry", slog.String("criteria", string(b.Criteria)), slog.Any("err", err))
			s.metrics.AwardFailed(string(b.Criteria))
			s.queueGrant(ctx, sp.ID, b, sp.SpottedAt)
		}
	}

	log.Info("spotting recorded", slog.String("label", sp.Label), slog.Int("badges", len(res.NewBadges)), slog.Int("pending_awards", res.PendingAwards))
	return res, nil
}

// insert stores sp, drawing a fresh share token whenever the current one is taken.
func (s *Service) insert(ctx context.Context, sp *models.Spotting) error {
	var err error
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		GenerateShareToken(sp)
		if _, err = s.store.CreateSpotting(ctx, sp); err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateShareToken) {
			return apperr.Storage("insert spotting", err)
		}
		s.logger.Debug("share token collision", slog.String("token", sp.ShareToken))
		sp.ShareToken = ""
	}
	return apperr.Storage("insert spotting", fmt.Errorf("no free share token after %d attempts: %w", maxTokenAttempts, err))
}

func (s *Service) grant(ctx context.Context, spottingID int64, b models.Badge, at time.Time) error {
	has, err := s.store.HasAward(ctx, spottingID, b.ID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	granted, err := s.store.GrantAward(ctx, spottingID, b.ID, at)
	if err != nil {
		return err
	}
	if granted {
		s.metrics.BadgeAwarded(string(b.Criteria))
	}
	return nil
}

type grantPayload struct {
	SpottingID int64           `json:"spotting_id"`
	BadgeID    int64           `json:"badge_id"`
	Criteria   models.Criteria `json:"criteria"`
	AwardedAt  time.Time       `json:"awarded_at"`
}

func (s *Service) queueGrant(ctx context.Context, spottingID int64, b models.Badge, at time.Time) {
	if s.queue == nil {
		return
	}
	p := grantPayload{SpottingID: spottingID, BadgeID: b.ID, Criteria: b.Criteria, AwardedAt: at}
	if _, err := s.queue.Enqueue(ctx, JobGrantAward, p, 10); err != nil {
		s.logger.Error("queue award retry", slog.Int64("spotting_id", spottingID), slog.String("criteria", string(b.Criteria)), slog.Any("err", err))
	}
}

// HandleGrantAward is the job handler for JobGrantAward. Granting is idempotent, so
// a retry of an award that did land is harmless.
func (s *Service) HandleGrantAward(ctx context.Context, j *models.BackgroundJob) error {
	var p grantPayload
	if err := json.Unmarshal(j.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", JobGrantAward, err)
	}
	if p.SpottingID <= 0 || p.BadgeID <= 0 {
		return fmt.Errorf("%s payload missing ids", JobGrantAward)
	}
	granted, err := s.store.GrantAward(ctx, p.SpottingID, p.BadgeID, p.AwardedAt)
	if err != nil {
		return err
	}
	if granted {
		s.metrics.BadgeAwarded(string(p.Criteria))
		s.logger.Info("queued award granted", slog.Int64("spotting_id", p.SpottingID), slog.String("criteria", string(p.Criteria)))
	}
	return nil
}

// ShareURL is the public link for a share token.
func (s *Service) ShareURL(token string) string {
	return s.cfg.PublicBaseURL + "/share/" + token
}

func (s *Service) deleteImage(ctx context.Context, handle string) {
	if handle == "" {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), handle); err != nil {
		s.logger.Error("delete image", slog.String("handle", handle), slog.Any("err", err))
	}
}
