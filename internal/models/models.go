package models

import (
	"encoding/json"
	"time"
)

// TaskKind is the cadence of a task.
type TaskKind string

const (
	TaskDaily  TaskKind = "daily"
	TaskWeekly TaskKind = "weekly"
)

// Valid reports whether k is one of the known kinds.
func (k TaskKind) Valid() bool {
	return k == TaskDaily || k == TaskWeekly
}

// Lifetime returns how long a task of this kind stays open after creation.
func (k TaskKind) Lifetime() time.Duration {
	if k == TaskWeekly {
		return 7 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Criteria is the machine-checkable rule a badge is bound to.
type Criteria string

const (
	CriteriaFirstSpot      Criteria = "first_spot"
	CriteriaDaily5         Criteria = "daily_5"
	CriteriaWeeklyComplete Criteria = "weekly_complete"
)

// KnownCriteria lists every rule the badge engine knows how to evaluate, in evaluation order.
var KnownCriteria = []Criteria{CriteriaFirstSpot, CriteriaDaily5, CriteriaWeeklyComplete}

// Valid reports whether c is part of the fixed criteria set.
func (c Criteria) Valid() bool {
	for _, k := range KnownCriteria {
		if c == k {
			return true
		}
	}
	return false
}

type Task struct {
	ID        int64     `json:"id" db:"id"`
	Animal    string    `json:"animal" db:"animal"`
	Kind      TaskKind  `json:"kind" db:"kind"`
	Location  string    `json:"location,omitempty" db:"location"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
}

// AnimalDetails is the structured fact sheet returned by the classifier.
type AnimalDetails struct {
	Habitat          string   `json:"habitat"`
	Diet             string   `json:"diet"`
	Behavior         string   `json:"behavior"`
	InterestingFacts []string `json:"interestingFacts"`
}

// AnimalReport is a successful classification.
type AnimalReport struct {
	Animal  string        `json:"animal"`
	Details AnimalDetails `json:"details"`
}

type Spotting struct {
	ID          int64          `json:"id" db:"id"`
	TaskID      *int64         `json:"task_id,omitempty" db:"task_id"`
	ImageHandle string         `json:"image_handle" db:"image_handle"`
	Label       string         `json:"label" db:"label"`
	Details     *AnimalDetails `json:"details,omitempty" db:"details"`
	Location    string         `json:"location,omitempty" db:"location"`
	SpottedAt   time.Time      `json:"spotted_at" db:"spotted_at"`
	ShareToken  string         `json:"share_token" db:"share_token"`
	Demo        bool           `json:"demo,omitempty" db:"demo"`

	// Task is hydrated by callers that need the owning task; it is not a column.
	Task *Task `json:"-" db:"-"`
}

type Badge struct {
	ID          int64    `json:"id" db:"id" yaml:"-"`
	Name        string   `json:"name" db:"name" yaml:"name"`
	Description string   `json:"description" db:"description" yaml:"description"`
	IconClass   string   `json:"icon_class" db:"icon_class" yaml:"icon_class"`
	Criteria    Criteria `json:"criteria" db:"criteria" yaml:"criteria"`
}

type Award struct {
	SpottingID int64     `json:"spotting_id" db:"spotting_id"`
	BadgeID    int64     `json:"badge_id" db:"badge_id"`
	AwardedAt  time.Time `json:"awarded_at" db:"awarded_at"`
}

// LocationInfo is the reverse-geocoded description of a coordinate pair.
type LocationInfo struct {
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Natural string `json:"natural,omitempty"`
}

type Schema struct {
	ID          int64  `json:"id" db:"id"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

type Template struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty" db:"schema_version"`
	Metadata    *string `json:"metadata,omitempty" db:"metadata"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}

type BackgroundJob struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}
