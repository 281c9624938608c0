package badges

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/garnizeh/wildspot/internal/models"
	"github.com/garnizeh/wildspot/pkg/repository"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Badges []models.Badge `yaml:"badges"`
}

// ParseCatalog decodes a YAML badge catalog. Every badge needs a name and a known,
// unique criteria key.
func ParseCatalog(b []byte) ([]models.Badge, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse badge catalog: %w", err)
	}
	seen := make(map[models.Criteria]bool, len(f.Badges))
	for i, badge := range f.Badges {
		if badge.Name == "" {
			return nil, fmt.Errorf("badge %d: missing name", i)
		}
		if !badge.Criteria.Valid() {
			return nil, fmt.Errorf("badge %q: unknown criteria %q", badge.Name, badge.Criteria)
		}
		if seen[badge.Criteria] {
			return nil, fmt.Errorf("badge %q: duplicate criteria %q", badge.Name, badge.Criteria)
		}
		seen[badge.Criteria] = true
	}
	return f.Badges, nil
}

// EnsureCatalogSeeded inserts every catalog badge whose criteria is not stored yet and
// returns how many it inserted. Existing badges are left untouched, so running it on
// every start is safe, including from several processes at once.
func EnsureCatalogSeeded(ctx context.Context, repo repository.BadgeRepo, catalog []models.Badge, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	inserted := 0
	for _, b := range catalog {
		existing, err := repo.GetBadgeByCriteria(ctx, b.Criteria)
		if err != nil {
			return inserted, fmt.Errorf("lookup badge %s: %w", b.Criteria, err)
		}
		if existing != nil {
			continue
		}
		nb := b
		if _, err := repo.CreateBadge(ctx, &nb); err != nil {
			if errors.Is(err, repository.ErrDuplicateCriteria) {
				continue
			}
			return inserted, fmt.Errorf("seed badge %s: %w", b.Criteria, err)
		}
		inserted++
		logger.Info("badge seeded", slog.String("criteria", string(b.Criteria)), slog.String("name", b.Name))
	}
	return inserted, nil
}
