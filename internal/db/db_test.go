package db_test

import (
	"context"
	"testing"
	"time"

	dbpkg "github.com/garnizeh/wildspot/internal/db"
)

func TestNew_Close_GetConn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	d, err := dbpkg.New(ctx, "file:db_new_close?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	conn := d.GetConn()
	if conn == nil {
		t.Fatalf("expected non-nil sql.DB from GetConn")
	}
	if got := conn.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("expected a single open connection, got %d", got)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestExec_QueryRow_QueryRows(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, "file:db_exec_query?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	_, err = d.Exec(ctx, `CREATE TABLE IF NOT EXISTS items (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT);`)
	if err != nil {
		t.Fatalf("Exec create table returned error: %v", err)
	}

	res, err := d.Exec(ctx, `INSERT INTO items (name) VALUES (?), (?)`, "foo", "bar")
	if err != nil {
		t.Fatalf("Exec insert returned error: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 2 {
		t.Fatalf("expected 2 rows affected, got %d", n)
	}

	row := d.QueryRow(ctx, `SELECT name FROM items WHERE id = ?`, 1)
	var name string
	if err := row.Scan(&name); err != nil {
		t.Fatalf("QueryRow scan returned error: %v", err)
	}
	if name != "foo" {
		t.Fatalf("expected name 'foo' got %q", name)
	}

	rows, err := d.QueryRows(ctx, `SELECT name FROM items ORDER BY id`)
	if err != nil {
		t.Fatalf("QueryRows returned error: %v", err)
	}
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, n)
	}
	_ = rows.Close()
	if len(names) != 2 || names[1] != "bar" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, "file:db_fk?mode=memory&cache=shared", nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer d.Close()

	var on int
	if err := d.QueryRow(ctx, `PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if on != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", on)
	}
}

func TestNew_BadDSN(t *testing.T) {
	ctx := context.Background()
	_, err := dbpkg.New(ctx, "file:/nonexistent-dir/sub/wildspot.db?mode=ro", nil)
	if err == nil {
		t.Fatalf("expected error for bad DSN, got nil")
	}
}
