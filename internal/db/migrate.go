package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// seedSchemas maps seed files to the ai_schemas version they populate.
var seedSchemas = []struct {
	file, version, description string
}{
	{"animal_report_v1.json", "animal_report_v1", "classifier response schema"},
	{"task_suggestions_v1.json", "task_suggestions_v1", "task suggester response schema"},
}

// seedTemplates maps seed files to the ai_templates row they populate.
var seedTemplates = []struct {
	file, name, version, schemaVersion string
}{
	{"template_recognize_v1.txt", "recognize", "v1", "animal_report_v1"},
	{"template_suggest_v1.txt", "suggest", "v1", "task_suggestions_v1"},
}

// Migrate applies migrations and the prompt/schema seed files.
// It creates a `schema_migrations` table to track applied migrations and applies
// any SQL files under `migrations/` that have not yet been recorded. Seed files
// under `seed/` are upserted, so running Migrate again refreshes them.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		// filename without extension is the version key
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, strftime('%s','now'))`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	if seedFS == nil {
		return nil
	}
	ts := time.Now().UTC().UnixMilli()

	for _, s := range seedSchemas {
		b, err := fs.ReadFile(seedFS, path.Join("seed", s.file))
		if err != nil {
			continue
		}
		if _, err := d.Exec(ctx, `INSERT INTO ai_schemas (version, description, schema_json, created, updated) VALUES (?, ?, ?, ?, ?) ON CONFLICT(version) DO UPDATE SET description=excluded.description, schema_json=excluded.schema_json, updated=excluded.updated`, s.version, s.description, string(b), ts, ts); err != nil {
			return fmt.Errorf("seed schema %s: %w", s.version, err)
		}
	}

	for _, t := range seedTemplates {
		b, err := fs.ReadFile(seedFS, path.Join("seed", t.file))
		if err != nil {
			continue
		}
		if _, err := d.Exec(ctx, `INSERT INTO ai_templates (name, version, template_text, schema_version, metadata, created, updated) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(name, version) DO UPDATE SET template_text=excluded.template_text, schema_version=excluded.schema_version, updated=excluded.updated`, t.name, t.version, string(b), t.schemaVersion, `{"owner":"system"}`, ts, ts); err != nil {
			return fmt.Errorf("seed template %s:%s: %w", t.name, t.version, err)
		}
	}

	return nil
}
