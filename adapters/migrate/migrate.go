// Package migrate applies the embedded schema migrations of the SQL
// backends. Each migration runs in its own transaction together with the
// row that records it, so a failed step leaves no trace.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Table records applied migration versions. Schema stores hide it from
// entity discovery.
const Table = "schema_migrations"

// Dialect holds the statements that differ between backends.
type Dialect struct {
	// CreateTable creates Table when missing.
	CreateTable string
	// Record inserts one version; it takes a single placeholder.
	Record string
}

// SQLite is the dialect of mattn/go-sqlite3.
var SQLite = Dialect{
	CreateTable: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
		version    TEXT PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	Record: `INSERT INTO ` + Table + ` (version) VALUES (?)`,
}

// Postgres is the dialect of the pgx stdlib driver.
var Postgres = Dialect{
	CreateTable: `CREATE TABLE IF NOT EXISTS ` + Table + ` (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	Record: `INSERT INTO ` + Table + ` (version) VALUES ($1)`,
}

// Step is one migration file. Version is the file name without ".sql".
type Step struct {
	Version string
	SQL     string
}

// Load reads the *.sql files of dir in name order.
func Load(fsys fs.FS, dir string) ([]Step, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var steps []Step
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		steps = append(steps, Step{Version: strings.TrimSuffix(name, ".sql"), SQL: string(content)})
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Version < steps[j].Version })
	return steps, nil
}

// Applied returns the recorded versions.
func Applied(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM "+Table)
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan migration: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// Up applies every step not yet recorded and returns the versions it ran.
func Up(ctx context.Context, db *sql.DB, d Dialect, steps []Step) ([]string, error) {
	if _, err := db.ExecContext(ctx, d.CreateTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := Applied(ctx, db)
	if err != nil {
		return nil, err
	}

	var ran []string
	for _, step := range steps {
		if applied[step.Version] {
			continue
		}
		if err := apply(ctx, db, d, step); err != nil {
			return ran, err
		}
		ran = append(ran, step.Version)
	}
	return ran, nil
}

func apply(ctx context.Context, db *sql.DB, d Dialect, step Step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", step.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return fmt.Errorf("execute migration %s: %w", step.Version, err)
	}
	if _, err := tx.ExecContext(ctx, d.Record, step.Version); err != nil {
		return fmt.Errorf("record migration %s: %w", step.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", step.Version, err)
	}
	return nil
}
