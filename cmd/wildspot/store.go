package main

import (
	"context"
	"fmt"
	"log/slog"

	dbfs "github.com/garnizeh/wildspot/db"
	"github.com/garnizeh/wildspot/internal/badges"
	"github.com/garnizeh/wildspot/internal/config"
	"github.com/garnizeh/wildspot/internal/db"
	"github.com/garnizeh/wildspot/internal/repository/sqlite"
)

// openStore opens the database, migrates it when asked to and makes sure the badge
// catalog is present.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*db.DB, *sqlite.SQLiteRepo, error) {
	d, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			_ = d.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	repo := sqlite.New(d, logger)
	if _, err := seedBadges(ctx, repo, logger); err != nil {
		_ = d.Close()
		return nil, nil, err
	}
	return d, repo, nil
}

func seedBadges(ctx context.Context, repo *sqlite.SQLiteRepo, logger *slog.Logger) (int, error) {
	catalog, err := badges.ParseCatalog(dbfs.BadgeCatalog)
	if err != nil {
		return 0, err
	}
	return badges.EnsureCatalogSeeded(ctx, repo, catalog, logger)
}
