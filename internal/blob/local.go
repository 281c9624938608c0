package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Local keeps blobs as files in a single directory.
type Local struct {
	dir string
}

var _ Store = (*Local)(nil)

func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		return nil, errors.New("local blob store needs a directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Save writes data under name. The file is written to a temporary name first so a
// crash never leaves a truncated image behind the handle.
func (l *Local) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if !validHandle(name) {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(l.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(l.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename blob: %w", err)
	}
	return name, nil
}

func (l *Local) Open(ctx context.Context, handle string) (io.ReadCloser, string, error) {
	if !validHandle(handle) {
		return nil, "", ErrNotFound
	}
	f, err := os.Open(filepath.Join(l.dir, handle))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	ct := mime.TypeByExtension(filepath.Ext(handle))
	if ct == "" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		ct = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			_ = f.Close()
			return nil, "", err
		}
	}
	return f, ct, nil
}

func (l *Local) Delete(ctx context.Context, handle string) error {
	if !validHandle(handle) {
		return nil
	}
	err := os.Remove(filepath.Join(l.dir, handle))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
