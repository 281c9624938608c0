package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

func (r *SQLiteRepo) CreateAward(ctx context.Context, a *models.Award) error {
	if a == nil {
		return errors.New("nil award")
	}
	_, err := r.conn.Exec(ctx, `INSERT INTO awards (spotting_id, badge_id, awarded_at) VALUES (?, ?, ?)`,
		a.SpottingID, a.BadgeID, toMillis(a.AwardedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicateAward
		}
		return apperr.Storage("insert award", err)
	}
	return nil
}

func (r *SQLiteRepo) GrantAward(ctx context.Context, spottingID, badgeID int64, at time.Time) (bool, error) {
	res, err := r.conn.Exec(ctx, `INSERT INTO awards (spotting_id, badge_id, awarded_at) VALUES (?, ?, ?) ON CONFLICT(spotting_id, badge_id) DO NOTHING`,
		spottingID, badgeID, toMillis(at))
	if err != nil {
		return false, apperr.Storage("grant award", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Storage("grant award", err)
	}
	return n == 1, nil
}

func (r *SQLiteRepo) HasAward(ctx context.Context, spottingID, badgeID int64) (bool, error) {
	var n int
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM awards WHERE spotting_id = ? AND badge_id = ?`, spottingID, badgeID)
	if err := row.Scan(&n); err != nil {
		return false, apperr.Storage("has award", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepo) ListBadgesForSpotting(ctx context.Context, spottingID int64) ([]models.Badge, error) {
	return r.listBadges(ctx, `SELECT b.id, b.name, b.description, b.icon_class, b.criteria FROM badges b JOIN awards a ON a.badge_id = b.id WHERE a.spotting_id = ? ORDER BY a.awarded_at, b.id`, spottingID)
}
