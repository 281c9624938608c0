package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
)

const spottingColumns = `id, task_id, image_handle, label, details, location, spotted_at, share_token, demo`

// CreateSpotting inserts s and sets its ID. A share token collision returns
// repository.ErrDuplicateShareToken so the caller can pick a new token.
func (r *SQLiteRepo) CreateSpotting(ctx context.Context, s *models.Spotting) (int64, error) {
	if s == nil {
		return 0, errors.New("nil spotting")
	}
	var details any
	if s.Details != nil {
		b, err := json.Marshal(s.Details)
		if err != nil {
			return 0, fmt.Errorf("marshal details: %w", err)
		}
		details = string(b)
	}
	var taskID any
	if s.TaskID != nil {
		taskID = *s.TaskID
	}
	demo := 0
	if s.Demo {
		demo = 1
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO spottings (task_id, image_handle, label, details, location, spotted_at, share_token, demo) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		taskID, s.ImageHandle, s.Label, details, s.Location, toMillis(s.SpottedAt), s.ShareToken, demo)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, repository.ErrDuplicateShareToken
		}
		return 0, apperr.Storage("insert spotting", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("insert spotting", err)
	}
	s.ID = id
	return id, nil
}

func (r *SQLiteRepo) GetSpotting(ctx context.Context, id int64) (*models.Spotting, error) {
	return r.getSpotting(ctx, `SELECT `+spottingColumns+` FROM spottings WHERE id = ?`, id)
}

func (r *SQLiteRepo) GetSpottingByShareToken(ctx context.Context, token string) (*models.Spotting, error) {
	return r.getSpotting(ctx, `SELECT `+spottingColumns+` FROM spottings WHERE share_token = ?`, token)
}

func (r *SQLiteRepo) getSpotting(ctx context.Context, q string, arg any) (*models.Spotting, error) {
	s, err := scanSpotting(r.conn.QueryRow(ctx, q, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Storage("get spotting", err)
	}
	return s, nil
}

func (r *SQLiteRepo) ListSpottingsByTask(ctx context.Context, taskID int64) ([]models.Spotting, error) {
	return r.listSpottings(ctx, `SELECT `+spottingColumns+` FROM spottings WHERE task_id = ? ORDER BY spotted_at, id`, taskID)
}

// ListSpottingsByTasks groups the spottings of every task in taskIDs. Tasks without
// spottings are absent from the map.
func (r *SQLiteRepo) ListSpottingsByTasks(ctx context.Context, taskIDs []int64) (map[int64][]models.Spotting, error) {
	out := make(map[int64][]models.Spotting, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	q := `SELECT ` + spottingColumns + ` FROM spottings WHERE task_id IN (?` + strings.Repeat(",?", len(taskIDs)-1) + `) ORDER BY spotted_at, id`
	list, err := r.listSpottings(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	for _, s := range list {
		out[*s.TaskID] = append(out[*s.TaskID], s)
	}
	return out, nil
}

func (r *SQLiteRepo) ListRecentSpottings(ctx context.Context, limit int) ([]models.Spotting, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.listSpottings(ctx, `SELECT `+spottingColumns+` FROM spottings ORDER BY spotted_at DESC, id DESC LIMIT ?`, limit)
}

func (r *SQLiteRepo) listSpottings(ctx context.Context, q string, args ...any) ([]models.Spotting, error) {
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, apperr.Storage("list spottings", err)
	}
	defer rows.Close()

	var out []models.Spotting
	for rows.Next() {
		s, err := scanSpotting(rows)
		if err != nil {
			return nil, apperr.Storage("scan spotting", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list spottings", err)
	}
	return out, nil
}

func (r *SQLiteRepo) CountSpottings(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM spottings`).Scan(&n); err != nil {
		return 0, apperr.Storage("count spottings", err)
	}
	return n, nil
}

func (r *SQLiteRepo) CountSpottingsBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	row := r.conn.QueryRow(ctx, `SELECT COUNT(1) FROM spottings WHERE spotted_at >= ? AND spotted_at < ?`, toMillis(from), toMillis(to))
	if err := row.Scan(&n); err != nil {
		return 0, apperr.Storage("count spottings in window", err)
	}
	return n, nil
}

func scanSpotting(s scanner) (*models.Spotting, error) {
	var (
		sp        models.Spotting
		taskID    sql.NullInt64
		details   sql.NullString
		location  sql.NullString
		spottedAt int64
		demo      int
	)
	if err := s.Scan(&sp.ID, &taskID, &sp.ImageHandle, &sp.Label, &details, &location, &spottedAt, &sp.ShareToken, &demo); err != nil {
		return nil, err
	}
	if taskID.Valid {
		id := taskID.Int64
		sp.TaskID = &id
	}
	if details.Valid && details.String != "" {
		var d models.AnimalDetails
		if err := json.Unmarshal([]byte(details.String), &d); err != nil {
			return nil, fmt.Errorf("decode details of spotting %d: %w", sp.ID, err)
		}
		sp.Details = &d
	}
	sp.Location = location.String
	sp.SpottedAt = fromMillis(spottedAt)
	sp.Demo = demo != 0
	return &sp, nil
}
