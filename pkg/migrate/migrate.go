// Package migrate runs the goose SQL migrations that own the notification schema.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Open connects through lib/pq so schema changes do not share the worker's pool.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("dsn is required")
	}
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return conn, nil
}

// Runner applies the migrations in dir to db.
type Runner struct {
	db  *sql.DB
	dir string
}

func NewRunner(db *sql.DB, dir string) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dir == "" {
		dir = DefaultDir
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Runner{db: db, dir: dir}, nil
}

func (r *Runner) Up(ctx context.Context) error {
	return r.wrap("up", goose.UpContext(ctx, r.db, r.dir))
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	return r.wrap("down", goose.DownContext(ctx, r.db, r.dir))
}

// Status prints applied and pending migrations to stdout.
func (r *Runner) Status(ctx context.Context) error {
	return r.wrap("status", goose.StatusContext(ctx, r.db, r.dir))
}

// To moves the schema up or down until version is the current one.
func (r *Runner) To(ctx context.Context, version int64) error {
	current, err := goose.GetDBVersionContext(ctx, r.db)
	if err != nil {
		return fmt.Errorf("read db version: %w", err)
	}
	switch {
	case version > current:
		return r.wrap(fmt.Sprintf("up-to %d", version), goose.UpToContext(ctx, r.db, r.dir, version))
	case version < current:
		return r.wrap(fmt.Sprintf("down-to %d", version), goose.DownToContext(ctx, r.db, r.dir, version))
	default:
		return nil
	}
}

func (r *Runner) wrap(cmd string, err error) error {
	if err != nil {
		return fmt.Errorf("goose %s (%s): %w", cmd, r.dir, err)
	}
	return nil
}
