package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Default per-user fetch caps.
const (
	DefaultWorkoutLimit   = 30
	DefaultGroupLimit     = 30
	DefaultFormCheckLimit = 10
	DefaultCoachNoteLimit = 20
)

// Limits caps how many documents each list query returns.
type Limits struct {
	Workouts      int
	GroupWorkouts int
	FormChecks    int
	CoachNotes    int
}

// DefaultLimits returns the default fetch caps.
func DefaultLimits() Limits {
	return Limits{
		Workouts:      DefaultWorkoutLimit,
		GroupWorkouts: DefaultGroupLimit,
		FormChecks:    DefaultFormCheckLimit,
		CoachNotes:    DefaultCoachNoteLimit,
	}
}

// DB wraps a pgxpool.Pool and provides the document queries.
type DB struct {
	Pool   *pgxpool.Pool
	Limits Limits
	log    *slog.Logger
}

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string, log *slog.Logger) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &DB{Pool: pool, Limits: DefaultLimits(), log: log}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
