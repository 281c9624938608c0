package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/garnizeh/wildspot/internal/apperr"
	"github.com/garnizeh/wildspot/internal/models"
)

const taskColumns = `id, animal, kind, location, created_at, expires_at`

func (r *SQLiteRepo) CreateTask(ctx context.Context, t *models.Task) (int64, error) {
	if t == nil {
		return 0, errors.New("nil task")
	}
	if !t.ExpiresAt.After(t.CreatedAt) {
		return 0, apperr.Validation("expires_at", "must be after created_at")
	}
	res, err := r.conn.Exec(ctx, `INSERT INTO tasks (animal, kind, location, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		t.Animal, string(t.Kind), t.Location, toMillis(t.CreatedAt), toMillis(t.ExpiresAt))
	if err != nil {
		return 0, apperr.Storage("insert task", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Storage("insert task", err)
	}
	t.ID = id
	return id, nil
}

func (r *SQLiteRepo) GetTask(ctx context.Context, id int64) (*models.Task, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Storage("get task", err)
	}
	return t, nil
}

func (r *SQLiteRepo) TasksCurrentAt(ctx context.Context, now time.Time) ([]models.Task, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	rows, err := r.conn.QueryRows(ctx, `SELECT `+taskColumns+` FROM tasks WHERE expires_at >= ? AND created_at >= ? AND created_at <= ? ORDER BY created_at, id`,
		toMillis(day), toMillis(day.AddDate(0, 0, -1)), toMillis(day.AddDate(0, 0, 1)))
	if err != nil {
		return nil, apperr.Storage("list current tasks", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apperr.Storage("scan task", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list current tasks", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var (
		t                  models.Task
		kind               string
		location           sql.NullString
		created, expiresAt int64
	)
	if err := s.Scan(&t.ID, &t.Animal, &kind, &location, &created, &expiresAt); err != nil {
		return nil, err
	}
	t.Kind = models.TaskKind(kind)
	t.Location = location.String
	t.CreatedAt = fromMillis(created)
	t.ExpiresAt = fromMillis(expiresAt)
	return &t, nil
}
