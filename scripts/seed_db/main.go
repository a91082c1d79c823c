package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	sq "github.com/Masterminds/squirrel"

	"restables/internal/driver"
)

// schemas holds the demo DDL per dialect; postgres DDL also serves pgx.
var schemas = map[string][]string{
	"mysql": {
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			email VARCHAR(200),
			age INT,
			score DOUBLE,
			created_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			user_id BIGINT,
			amount DECIMAL(15, 2),
			status VARCHAR(20),
			created_at DATETIME,
			INDEX idx_user_id (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (id BIGINT PRIMARY KEY, token VARCHAR(64))`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			age INTEGER,
			score DOUBLE PRECISION,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			user_id BIGINT,
			amount NUMERIC(15, 2),
			status TEXT,
			created_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (id BIGINT PRIMARY KEY, token TEXT)`,
	},
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			age INTEGER,
			score REAL,
			created_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id INTEGER PRIMARY KEY,
			user_id INTEGER,
			amount DECIMAL(15, 2),
			status TEXT,
			created_at DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS secrets (id INTEGER PRIMARY KEY, token TEXT)`,
	},
}

var statuses = []string{"PENDING", "PAID", "SHIPPED", "REFUNDED"}

func main() {
	dialectName := flag.String("dialect", "sqlite", "mysql, postgres, pgx or sqlite")
	dsn := flag.String("dsn", "demo.db", "driver DSN (read-write)")
	users := flag.Int("users", 10000, "number of users to seed")
	ordersPerUser := flag.Int("orders", 5, "orders per user")
	batchSize := flag.Int("batch", 500, "rows per INSERT")
	flag.Parse()

	d, err := driver.Lookup(*dialectName)
	if err != nil {
		slog.Error("Unsupported dialect", "error", err)
		os.Exit(1)
	}
	ddlKey := d.Name()
	if ddlKey == "pgx" {
		ddlKey = "postgres"
	}

	db, err := sql.Open(d.DriverName(), *dsn)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		slog.Info("Waiting for database...", "attempt", i+1)
		time.Sleep(time.Second)
	}
	if err != nil {
		slog.Error("Database not reachable", "error", err)
		os.Exit(1)
	}

	slog.Info("Connected. Creating tables...", "dialect", d.Name())
	for _, stmt := range schemas[ddlKey] {
		if _, err := db.Exec(stmt); err != nil {
			slog.Error("Create table failed", "error", err)
			os.Exit(1)
		}
	}

	s := seeder{db: db, dialect: d, batch: *batchSize}
	now := time.Now().UTC().Truncate(time.Second)

	s.fill("users", []string{"id", "name", "email", "age", "score", "created_at"}, *users, func(i int) []any {
		id := i + 1
		return []any{id, fmt.Sprintf("User%d", id), fmt.Sprintf("user%d@example.com", id), 18 + id%60, float64(id) * 0.1, now.Add(-time.Duration(id) * time.Minute)}
	})

	total := *users * *ordersPerUser
	s.fill("orders", []string{"id", "user_id", "amount", "status", "created_at"}, total, func(i int) []any {
		uid := i%*users + 1
		return []any{i + 1, uid, fmt.Sprintf("%d.%02d", uid%1000, i%100), statuses[i%len(statuses)], now.Add(-time.Duration(i) * time.Second)}
	})

	s.fill("secrets", []string{"id", "token"}, 3, func(i int) []any {
		return []any{i + 1, fmt.Sprintf("tok_%08x", (i+1)*2654435761)}
	})

	slog.Info("Demo data ready. Hide the secrets table with hide_tables in config.yaml.")
}

type seeder struct {
	db      *sql.DB
	dialect driver.Dialect
	batch   int
}

// fill inserts total rows into an empty table in batches. Tables that already
// hold rows are left alone.
func (s seeder) fill(table string, columns []string, total int, row func(i int) []any) {
	var existing int
	countSQL, _, _ := sq.Select("COUNT(*)").From(driver.Ident(s.dialect, table)).ToSql()
	if err := s.db.QueryRow(countSQL).Scan(&existing); err != nil {
		slog.Error("Count failed", "table", table, "error", err)
		os.Exit(1)
	}
	if existing > 0 {
		slog.Info("Table already seeded", "table", table, "count", existing)
		return
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = driver.Ident(s.dialect, c)
	}

	start := time.Now()
	for i := 0; i < total; i += s.batch {
		ins := sq.Insert(driver.Ident(s.dialect, table)).Columns(quoted...).PlaceholderFormat(s.dialect.Placeholder())
		for j := i; j < i+s.batch && j < total; j++ {
			ins = ins.Values(row(j)...)
		}
		stmt, args, err := ins.ToSql()
		if err != nil {
			slog.Error("Build insert failed", "table", table, "error", err)
			os.Exit(1)
		}
		if _, err := s.db.Exec(stmt, args...); err != nil {
			slog.Error("Insert failed", "table", table, "error", err)
			os.Exit(1)
		}
		if done := min(i+s.batch, total); done%(s.batch*20) == 0 || done == total {
			fmt.Printf("\rSeeding %s: %d/%d", table, done, total)
		}
	}
	fmt.Println()
	slog.Info("Seeding complete", "table", table, "rows", total, "duration", time.Since(start))
}
