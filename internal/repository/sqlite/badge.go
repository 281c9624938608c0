package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

const badgeColumns = `id, name, description, icon_class, criteria`

// CreateBadge inserts b. Criteria is unique; a second badge with the same criteria
// returns repository.ErrDuplicateCriteria.
func (r *SQLiteRepo) CreateBadge(ctx context.Context, b *models.Badge) (int64, error) {
	if b == nil {
		return 0, errors.New("nil badge")
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO badges (name, description, icon_class, criteria) VALUES (?, ?, ?, ?)`,
		b.Name, b.Description, b.IconClass, string(b.Criteria))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicateCriteria
		}
		return 0, apperr.Storage("insert badge", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("insert badge", err)
	}
	b.ID = id
	return id, nil
}

func (r *SQLiteRepo) AllBadges(ctx context.Context) ([]models.Badge, error) {
	return r.listBadges(ctx, `SELECT `+badgeColumns+` FROM badges ORDER BY id`)
}

func (r *SQLiteRepo) GetBadgeByCriteria(ctx context.Context, c models.Criteria) (*models.Badge, error) {
	b, err := scanBadge(r.conn.QueryRow(ctx, `SELECT `+badgeColumns+` FROM badges WHERE criteria = ?`, string(c)))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Storage("get badge", err)
	}
	return b, nil
}

func (r *SQLiteRepo) listBadges(ctx context.Context, q string, args ...any) ([]models.Badge, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, apperr.Storage("list badges", err)
	}
	defer rows.Close()

	var out []models.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, apperr.Storage("scan badge", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list badges", err)
	}
	return out, nil
}

func scanBadge(s scanner) (*models.Badge, error) {
	var (
		b        models.Badge
		criteria string
	)
	if err := s.Scan(&b.ID, &b.Name, &b.Description, &b.IconClass, &criteria); err != nil {
		return nil, err
	}
	b.Criteria = models.Criteria(criteria)
	return &b, nil
}
