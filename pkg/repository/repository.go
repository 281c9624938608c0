package repository

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/wildspot/internal/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Single-row getters return (nil, nil) when the row does not exist; callers
// translate that into ErrNotFound where the miss is an error for them.

var (
	ErrNotFound            = errors.New("not found")
	ErrDuplicateCriteria   = errors.New("badge criteria already exists")
	ErrDuplicateAward      = errors.New("award already granted")
	ErrDuplicateShareToken = errors.New("share token already in use")
)

type TaskRepo interface {
	CreateTask(ctx context.Context, t *models.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (*models.Task, error)
	// TasksCurrentAt returns tasks that have not expired before the start of now's UTC day
	// and were created between the day before and the day after it.
	TasksCurrentAt(ctx context.Context, now time.Time) ([]models.Task, error)
}

type SpottingRepo interface {
	CreateSpotting(ctx context.Context, s *models.Spotting) (int64, error)
	GetSpotting(ctx context.Context, id int64) (*models.Spotting, error)
	GetSpottingByShareToken(ctx context.Context, token string) (*models.Spotting, error)
	ListSpottingsByTask(ctx context.Context, taskID int64) ([]models.Spotting, error)
	ListSpottingsByTasks(ctx context.Context, taskIDs []int64) (map[int64][]models.Spotting, error)
	ListRecentSpottings(ctx context.Context, limit int) ([]models.Spotting, error)
	CountSpottings(ctx context.Context) (int64, error)
	// CountSpottingsBetween counts spottings with from <= spotted_at < to.
	CountSpottingsBetween(ctx context.Context, from, to time.Time) (int64, error)
}

type BadgeRepo interface {
	CreateBadge(ctx context.Context, b *models.Badge) (int64, error)
	AllBadges(ctx context.Context) ([]models.Badge, error)
	GetBadgeByCriteria(ctx context.Context, c models.Criteria) (*models.Badge, error)
}

type AwardRepo interface {
	CreateAward(ctx context.Context, a *models.Award) error
	// GrantAward inserts the award unless the pair already exists and reports whether it inserted.
	GrantAward(ctx context.Context, spottingID, badgeID int64, at time.Time) (bool, error)
	HasAward(ctx context.Context, spottingID, badgeID int64) (bool, error)
	ListBadgesForSpotting(ctx context.Context, spottingID int64) ([]models.Badge, error)
}

type SchemaRepo interface {
	CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error)
	GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error)
	ListSchemas(ctx context.Context) ([]models.Schema, error)
	DeleteSchema(ctx context.Context, version string) error
}

type TemplateRepo interface {
	CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error)
	GetTemplate(ctx context.Context, name, version string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)
	DeleteTemplate(ctx context.Context, name, version string) error
}

type JobRepo interface {
	EnqueueJob(ctx context.Context, j *models.BackgroundJob) (int64, error)
	FetchNextJob(ctx context.Context) (*models.BackgroundJob, error)
	UpdateJob(ctx context.Context, j *models.BackgroundJob) error
	MoveToDeadLetter(ctx context.Context, j *models.BackgroundJob) error
	CountDeadLetters(ctx context.Context) (int64, error)
}

// GameStore is the persistence surface of the spotting game.
type GameStore interface {
	TaskRepo
	SpottingRepo
	BadgeRepo
	AwardRepo
}
