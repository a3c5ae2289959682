package feedback

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresRecorder stores records in the training_feedback table.
type PostgresRecorder struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRecorder, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("feedback: open postgres: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("feedback: ping postgres: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresRecorder(db), nil
}

// Migrate brings the schema up to date.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("feedback: migrations source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("feedback: migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("feedback: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("feedback: migrate up: %w", err)
	}
	return nil
}

// NewPostgresRecorder wraps an open, migrated database handle.
func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Name() string { return "postgres" }

// Record implements Recorder.
func (r *PostgresRecorder) Record(ctx context.Context, rec Record) error {
	if rec.Comment == "" {
		return ErrEmptyComment
	}
	const query = `
		INSERT INTO training_feedback (label, action_type, comment)
		VALUES ($1, $2, $3)`

	if _, err := r.db.ExecContext(ctx, query, rec.Label, rec.Verdict.Code(), rec.Comment); err != nil {
		return fmt.Errorf("feedback: insert: %w", err)
	}
	return nil
}

// CountByLabel returns how many examples are stored per label.
func (r *PostgresRecorder) CountByLabel(ctx context.Context) (map[int]int, error) {
	const query = `SELECT label, COUNT(*) FROM training_feedback GROUP BY label`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("feedback: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var label, n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("feedback: count scan: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}

// Close closes the database handle.
func (r *PostgresRecorder) Close() error {
	return r.db.Close()
}
