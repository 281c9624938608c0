package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Backup writes a consistent copy of the open database to dst. dst must not exist.
func (db *DB) Backup(ctx context.Context, dst string) error {
	if dst == "" {
		return errors.New("backup destination is empty")
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("backup destination %s already exists", dst)
	}
	if _, err := db.conn.ExecContext(ctx, `VACUUM INTO ?`, dst); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	db.logger.Info("database backed up", "dst", dst)
	return nil
}

// Restore replaces the database file at dst with src. The database must not be open.
// The copy goes through a temporary file so a failed restore leaves dst untouched.
func Restore(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".restore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("copy backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(dst + suffix)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}
