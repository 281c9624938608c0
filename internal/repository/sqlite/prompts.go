package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garnizeh/wildspot/internal/models"
)

// Prompt assets: the JSON schemas that validate provider output and the
// templates rendered into provider prompts. Both are upserted by version.

const (
	schemaColumns   = `id, version, description, schema_json, created, updated`
	templateColumns = `id, name, version, template_text, schema_version, metadata, created, updated`
)

func (r *SQLiteRepo) CreateSchema(ctx context.Context, version, description, schemaJSON string) (int64, error) {
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?) ON CONFLICT(version) DO UPDATE SET description=excluded.description, schema_json=excluded.schema_json, updated=excluded.updated`,
		version, description, schemaJSON, ts, ts)
	if err != nil {
		return 0, fmt.Errorf("upsert schema %s: %w", version, err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetSchemaByVersion(ctx context.Context, version string) (*models.Schema, error) {
	s, err := scanSchema(r.conn.QueryRow(ctx, `SELECT `+schemaColumns+` FROM ai_schemas WHERE version = ?`, version))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get schema %s: %w", version, err)
	}
	return s, nil
}

func (r *SQLiteRepo) ListSchemas(ctx context.Context) ([]models.Schema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+schemaColumns+` FROM ai_schemas ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var out []models.Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteSchema(ctx context.Context, version string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM ai_schemas WHERE version = ?`, version); err != nil {
		return fmt.Errorf("delete schema %s: %w", version, err)
	}
	return nil
}

func (r *SQLiteRepo) CreateTemplate(ctx context.Context, name, version, templateText string, schemaVersion *string, metadata *string) (int64, error) {
	ts := now()
	res, err := r.conn.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(name, version) DO UPDATE SET template_text=excluded.template_text, schema_version=excluded.schema_version, metadata=excluded.metadata, updated=excluded.updated`,
		name, version, templateText, nullable(schemaVersion), nullable(metadata), ts, ts)
	if err != nil {
		return 0, fmt.Errorf("upsert template %s:%s: %w", name, version, err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) GetTemplate(ctx context.Context, name, version string) (*models.Template, error) {
	t, err := scanTemplate(r.conn.QueryRow(ctx, `SELECT `+templateColumns+` FROM ai_templates WHERE name = ? AND version = ?`, name, version))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template %s:%s: %w", name, version, err)
	}
	return t, nil
}

func (r *SQLiteRepo) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+templateColumns+` FROM ai_templates ORDER BY name, version`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteTemplate(ctx context.Context, name, version string) error {
	if _, err := r.conn.Exec(ctx, `DELETE FROM ai_templates WHERE name = ? AND version = ?`, name, version); err != nil {
		return fmt.Errorf("delete template %s:%s: %w", name, version, err)
	}
	return nil
}

func scanSchema(s scanner) (*models.Schema, error) {
	var (
		out  models.Schema
		desc sql.NullString
	)
	if err := s.Scan(&out.ID, &out.Version, &desc, &out.SchemaJSON, &out.Created, &out.Updated); err != nil {
		return nil, err
	}
	out.Description = desc.String
	return &out, nil
}

func scanTemplate(s scanner) (*models.Template, error) {
	var t models.Template
	if err := s.Scan(&t.ID, &t.Name, &t.Version, &t.TemplateTxt, &t.SchemaVer, &t.Metadata, &t.Created, &t.Updated); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
