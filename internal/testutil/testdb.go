// Package testutil opens migrated in-memory stores for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	dbfs "github.com/garnizeh/wildspot/db"
	"github.com/garnizeh/wildspot/internal/db"
	"github.com/garnizeh/wildspot/internal/repository/sqlite"
)

var seq atomic.Int64

// NewDB opens a private in-memory database with every migration and seed file applied.
// The database is closed when the test ends.
func NewDB(t testing.TB) *db.DB {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	d, err := db.New(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

// NewRepo returns a SQLiteRepo over NewDB.
func NewRepo(t testing.TB) *sqlite.SQLiteRepo {
	t.Helper()
	return sqlite.New(NewDB(t), nil)
}
