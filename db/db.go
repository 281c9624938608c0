// Package db embeds the SQL migrations and seed files shipped with the binary.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed seed/*.*
var SeedFiles embed.FS

// BadgeCatalog is the default badge catalog applied by EnsureCatalogSeeded.
//
//go:embed seed/badges.yaml
var BadgeCatalog []byte
