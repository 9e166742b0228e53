package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roadwatch/roadwatch/internal/logger"
)

// MigrationFile is one NNN_name.up.sql or NNN_name.down.sql file
type MigrationFile struct {
	Version int
	Name    string
	Path    string
	Kind    string // up or down
}

// Migrator applies versioned SQL files and records them in schema_migrations
type Migrator struct {
	db     *sql.DB
	files  fs.FS
	logger logger.Logger
}

// NewMigrator creates a migrator reading SQL files from files
func NewMigrator(db *sql.DB, files fs.FS, log logger.Logger) *Migrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Migrator{db: db, files: files, logger: log}
}

// Up applies every pending up migration in version order
func (m *Migrator) Up(ctx context.Context) error {
	files, err := m.load()
	if err != nil {
		return err
	}
	if err := m.ensureSchemaMigrations(ctx); err != nil {
		return err
	}

	for _, f := range files {
		if f.Kind != "up" {
			continue
		}
		applied, err := m.applied(ctx, f.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		m.logger.Info(ctx, "Applying migration", map[string]interface{}{"version": f.Version, "name": f.Name})
		if err := m.exec(ctx, f, `INSERT INTO schema_migrations(version, name, applied_at) VALUES($1, $2, $3)`, f.Version, f.Name, time.Now()); err != nil {
			return fmt.Errorf("failed applying %s: %w", f.Path, err)
		}
	}
	return nil
}

// Down reverts every applied migration in reverse version order
func (m *Migrator) Down(ctx context.Context) error {
	files, err := m.load()
	if err != nil {
		return err
	}
	if err := m.ensureSchemaMigrations(ctx); err != nil {
		return err
	}

	var downs []MigrationFile
	for _, f := range files {
		if f.Kind == "down" {
			downs = append(downs, f)
		}
	}
	sort.Slice(downs, func(i, j int) bool { return downs[i].Version > downs[j].Version })

	for _, f := range downs {
		applied, err := m.applied(ctx, f.Version)
		if err != nil {
			return err
		}
		if !applied {
			continue
		}

		m.logger.Info(ctx, "Reverting migration", map[string]interface{}{"version": f.Version, "name": f.Name})
		if err := m.exec(ctx, f, `DELETE FROM schema_migrations WHERE version = $1`, f.Version); err != nil {
			return fmt.Errorf("failed reverting %s: %w", f.Path, err)
		}
	}
	return nil
}

// exec runs the file and the bookkeeping statement in one transaction
func (m *Migrator) exec(ctx context.Context, f MigrationFile, bookkeeping string, args ...interface{}) error {
	body, err := fs.ReadFile(m.files, f.Path)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Migrator) ensureSchemaMigrations(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations: %w", err)
	}
	return nil
}

func (m *Migrator) applied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := m.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	return exists, err
}

func (m *Migrator) load() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	return ParseMigrationFiles(entries, m.logger), nil
}

// ParseMigrationFiles keeps the versioned .sql files of entries, sorted by version
func ParseMigrationFiles(entries []fs.DirEntry, log logger.Logger) []MigrationFile {
	var files []MigrationFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		lower := strings.ToLower(name)
		if !strings.HasSuffix(lower, ".sql") {
			continue
		}

		kind := "up"
		if strings.HasSuffix(lower, ".down.sql") {
			kind = "down"
		}

		version, migName, err := parseVersionAndName(name)
		if err != nil {
			log.Warn(context.Background(), "Skipping migration without version prefix", map[string]interface{}{"file": name})
			continue
		}

		files = append(files, MigrationFile{Version: version, Name: migName, Path: name, Kind: kind})
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files
}

func parseVersionAndName(filename string) (int, string, error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 {
		return 0, "", errors.New("invalid filename")
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil || version <= 0 {
		return 0, "", errors.New("invalid version")
	}
	name := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(parts[1], ".sql"), ".up"), ".down")
	return version, name, nil
}
