// Package blob stores uploaded images and hands back durable handles.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/garnizeh/wildspot/internal/config"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var ErrNotFound = errors.New("blob not found")

// Store saves and serves image bytes. Handles are opaque, URL-safe names.
type Store interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, string, error)
	// Delete removes handle. Deleting a missing blob is not an error.
	Delete(ctx context.Context, handle string) error
}

// New builds the store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.StorageLocal:
		return NewLocal(cfg.Dir)
	case config.StorageS3:
		return NewS3FromConfig(ctx, cfg.S3)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// NewName derives a unique handle from an uploaded file name: a UTC timestamp, the
// slugged base name and a short random suffix, keeping the extension.
func NewName(original string, now time.Time) string {
	ext := strings.ToLower(path.Ext(original))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	base := slug.Make(strings.TrimSuffix(path.Base(strings.ReplaceAll(original, `\`, "/")), path.Ext(original)))
	if base == "" {
		base = "upload"
	}
	if len(base) > 48 {
		base = base[:48]
	}
	return fmt.Sprintf("%s_%s_%s%s", now.UTC().Format("20060102_150405"), base, uuid.NewString()[:8], ext)
}

// validHandle rejects anything that could escape the store's namespace.
func validHandle(h string) bool {
	return h != "" && h != "." && h != ".." && !strings.ContainsAny(h, `/\`) && !strings.Contains(h, "..")
}
