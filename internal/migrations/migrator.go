// Package migrations applies the embedded SQL schema in filename order, recording each applied
// version in schema_migrations. Every file runs in its own transaction.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var files embed.FS

const createVersionTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    VARCHAR(255) PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migration is one embedded SQL file.
type Migration struct {
	Version string     `db:"version" json:"version"`
	Name    string     `db:"name" json:"name"`
	Applied *time.Time `db:"applied_at" json:"applied_at,omitempty"`
	SQL     string     `db:"-" json:"-"`
}

// Migrator manages database migrations.
type Migrator struct {
	db     *sqlx.DB
	source fs.FS
	logger *zap.Logger
}

// NewMigrator creates a migrator over the embedded schema.
func NewMigrator(db *sqlx.DB, logger *zap.Logger) *Migrator {
	return newMigrator(db, files, logger)
}

func newMigrator(db *sqlx.DB, source fs.FS, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{db: db, source: source, logger: logger}
}

// Load returns the embedded migrations sorted by version.
func (m *Migrator) Load() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var result []Migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		body, err := fs.ReadFile(m.source, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		version, _, _ := strings.Cut(entry.Name(), "_")
		result = append(result, Migration{Version: version, Name: entry.Name(), SQL: string(body)})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

// Status lists every embedded migration with its applied timestamp, if any.
func (m *Migrator) Status(ctx context.Context) ([]Migration, error) {
	if _, err := m.db.ExecContext(ctx, createVersionTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}
	all, err := m.Load()
	if err != nil {
		return nil, err
	}
	var applied []Migration
	if err := sqlx.SelectContext(ctx, m.db, &applied, `SELECT version, name, applied_at FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	byVersion := make(map[string]*time.Time, len(applied))
	for _, a := range applied {
		byVersion[a.Version] = a.Applied
	}
	for i := range all {
		all[i].Applied = byVersion[all[i].Version]
	}
	return all, nil
}

// Up applies all pending migrations and returns the versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	pending, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	var done []string
	for _, mig := range pending {
		if mig.Applied != nil {
			m.logger.Debug("migration already applied", zap.String("version", mig.Version))
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return done, err
		}
		done = append(done, mig.Version)
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) (err error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", mig.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, mig.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", mig.Name, err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
		return fmt.Errorf("record migration %s: %w", mig.Name, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mig.Name, err)
	}
	m.logger.Info("migration applied", zap.String("version", mig.Version), zap.String("name", mig.Name))
	return nil
}
