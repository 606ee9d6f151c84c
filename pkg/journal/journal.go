package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	"github.com/openfroyo/junction/pkg/engine"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal is an SQLite operation log. Safe for concurrent use.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens the journal at path, creating and migrating it as needed.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, journalError("journal path is required", path, nil)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, journalError("failed to open journal", path, err)
	}

	// One writer per invocation.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, journalError("failed to open journal", path, err)
	}

	j := &Journal{db: db, path: path, now: time.Now}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, journalError("failed to migrate journal", path, err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Path returns the file the journal is stored in.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends entry. A missing ID or timestamp is filled in.
func (j *Journal) Record(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = j.now().UTC()
	}

	var class *string
	if entry.ErrorClass != nil {
		c := string(*entry.ErrorClass)
		class = &c
	}

	query := `
		INSERT INTO operations (
			id, recorded_at, platform, tenant, service, processor, instance,
			pipeline, action, outcome, error_class, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		entry.ID,
		entry.RecordedAt,
		entry.Platform,
		entry.Tenant,
		entry.Service,
		entry.Processor,
		entry.Instance,
		entry.Pipeline,
		string(entry.Action),
		string(entry.Outcome),
		class,
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

// List returns the entries matching filter, newest first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	for _, c := range []struct {
		column string
		value  string
	}{
		{"platform", filter.Platform},
		{"tenant", filter.Tenant},
		{"service", filter.Service},
	} {
		if c.value != "" {
			where = append(where, c.column+" = ?")
			args = append(args, c.value)
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, recorded_at, platform, tenant, service, processor, instance,
			pipeline, action, outcome, error_class, error
		FROM operations
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	entries := []*Entry{}
	for rows.Next() {
		entry := &Entry{}
		var class sql.NullString
		err := rows.Scan(
			&entry.ID,
			&entry.RecordedAt,
			&entry.Platform,
			&entry.Tenant,
			&entry.Service,
			&entry.Processor,
			&entry.Instance,
			&entry.Pipeline,
			&entry.Action,
			&entry.Outcome,
			&class,
			&entry.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		if class.Valid {
			c := engine.ErrorClass(class.String)
			entry.ErrorClass = &c
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return entries, nil
}

func journalError(msg, path string, err error) *engine.Error {
	return engine.NewConfigError(msg, err).
		WithCode(engine.ErrCodeInvalidConfig).
		WithSubjectString("file", path)
}
