// Package migrator applies ordered SQL migrations from a file system,
// recording each applied file with a checksum so drift is detected on the
// next run.
package migrator

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Migrator struct {
	pool *pgxpool.Pool
	fsys fs.FS
	dir  string
}

// New creates a Migrator reading .sql files from dir inside fsys,
// typically the embedded db.Migrations.
func New(pool *pgxpool.Pool, fsys fs.FS, dir string) *Migrator {
	return &Migrator{
		pool: pool,
		fsys: fsys,
		dir:  dir,
	}
}

// ApplyAll applies all pending migrations in filename order. Already
// applied migrations are checksum-verified instead of re-run.
func (m *Migrator) ApplyAll(ctx context.Context) error {
	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := m.getMigrationFiles()
	if err != nil {
		return fmt.Errorf("failed to get migration files: %w", err)
	}

	for _, filename := range files {
		if applied[filename] {
			if err := m.verifyChecksum(ctx, filename); err != nil {
				return fmt.Errorf("checksum verification failed for %s: %w", filename, err)
			}
			continue
		}

		if err := m.applyMigration(ctx, filename); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", filename, err)
		}
	}

	return nil
}

func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	var exists bool
	err := m.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = 'migrations'
		)`).Scan(&exists)
	if err != nil {
		return nil, err
	}

	if !exists {
		return make(map[string]bool), nil
	}

	rows, err := m.pool.Query(ctx, "SELECT filename FROM migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) getMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (m *Migrator) readMigration(filename string) ([]byte, error) {
	return fs.ReadFile(m.fsys, m.dir+"/"+filename)
}

func (m *Migrator) applyMigration(ctx context.Context, filename string) error {
	content, err := m.readMigration(filename)
	if err != nil {
		return err
	}
	checksum := fmt.Sprintf("%x", sha256.Sum256(content))

	return pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			CREATE TABLE IF NOT EXISTS migrations (
				filename TEXT PRIMARY KEY,
				checksum TEXT NOT NULL,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, string(content)); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			"INSERT INTO migrations (filename, checksum) VALUES ($1, $2)",
			filename, checksum)
		return err
	})
}

func (m *Migrator) verifyChecksum(ctx context.Context, filename string) error {
	content, err := m.readMigration(filename)
	if err != nil {
		return err
	}
	expected := fmt.Sprintf("%x", sha256.Sum256(content))

	var stored string
	err = m.pool.QueryRow(ctx,
		"SELECT checksum FROM migrations WHERE filename = $1", filename).Scan(&stored)
	if err != nil {
		return err
	}

	if stored != expected {
		return fmt.Errorf("migration file changed after being applied (stored %s, current %s)", stored, expected)
	}
	return nil
}
