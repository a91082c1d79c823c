// Package testdb builds SQLite fixture databases for tests.
package testdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"restables/internal/config"
	"restables/internal/driver"
)

// Users is the canonical fixture: users(id, name, age) plus a hidden-by-config
// secrets table.
var Users = []string{
	`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, age INTEGER)`,
	`INSERT INTO users (id, name, age) VALUES
		(1, 'ada', 36),
		(2, 'grace', 45),
		(3, 'linus', 28),
		(4, 'margaret, "peggy"', 52),
		(5, 'ken', 41)`,
	`CREATE TABLE secrets (id INTEGER PRIMARY KEY, token TEXT)`,
	`INSERT INTO secrets (id, token) VALUES (1, 'hunter2')`,
}

// Seed creates a SQLite file in a temp dir, runs stmts against it and returns its path.
func Seed(t testing.TB, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed %q: %v", s, err)
		}
	}
	return path
}

// Connection returns the connection settings for a seeded file.
func Connection(path string, hide ...string) config.Connection {
	return config.Connection{Dialect: "sqlite", Database: path, HideTables: hide}
}

// Open seeds a fixture and opens it through the sqlite dialect.
func Open(t testing.TB, stmts ...string) *driver.Connection {
	t.Helper()
	conn, err := driver.Open(context.Background(), "test", Connection(Seed(t, stmts...)))
	if err != nil {
		t.Fatalf("open connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
