// Package badges evaluates badge criteria against a spotting and seeds the badge catalog.
//
// The engine is pure: it sees a spotting plus a count snapshot and returns the badges
// the spotting earns. Persisting awards is the caller's job.
package badges

import (
	"time"

	"github.com/garnizeh/wildspot/internal/models"
)

// DailyTarget is the number of spottings in the daily window that earns daily_5.
const DailyTarget = 5

// Snapshot is the count view of all spottings the rules need, taken after the
// evaluated spotting was stored.
type Snapshot struct {
	Total         int64
	InDailyWindow int64
}

// SnapshotOf builds a Snapshot from a full list of spottings, using the daily window
// of at under policy.
func SnapshotOf(all []models.Spotting, at time.Time, policy WindowPolicy) Snapshot {
	from, to := policy.DailyWindow(at)
	snap := Snapshot{Total: int64(len(all))}
	for _, s := range all {
		if !s.SpottedAt.Before(from) && s.SpottedAt.Before(to) {
			snap.InDailyWindow++
		}
	}
	return snap
}

type rule struct {
	criteria models.Criteria
	match    func(s models.Spotting, snap Snapshot) bool
}

var rules = []rule{
	{models.CriteriaFirstSpot, func(_ models.Spotting, snap Snapshot) bool {
		return snap.Total == 1
	}},
	{models.CriteriaDaily5, func(_ models.Spotting, snap Snapshot) bool {
		return snap.InDailyWindow >= DailyTarget
	}},
	{models.CriteriaWeeklyComplete, func(s models.Spotting, _ Snapshot) bool {
		return s.Task != nil && s.Task.Kind == models.TaskWeekly
	}},
}

// Engine resolves rule hits to badges from a fixed catalog.
type Engine struct {
	catalog map[models.Criteria]models.Badge
}

// NewEngine indexes catalog by criteria. Badges with unknown criteria are ignored.
func NewEngine(catalog []models.Badge) *Engine {
	e := &Engine{catalog: make(map[models.Criteria]models.Badge, len(catalog))}
	for _, b := range catalog {
		if b.Criteria.Valid() {
			e.catalog[b.Criteria] = b
		}
	}
	return e
}

// Evaluate returns the badges s earns given snap, in rule order. A rule whose
// badge is missing from the catalog yields nothing.
func (e *Engine) Evaluate(s models.Spotting, snap Snapshot) []models.Badge {
	var out []models.Badge
	for _, r := range rules {
		if !r.match(s, snap) {
			continue
		}
		if b, ok := e.catalog[r.criteria]; ok {
			out = append(out, b)
		}
	}
	return out
}
