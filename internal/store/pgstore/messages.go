// Package pgstore provides PostgreSQL-backed storage for the append-only
// message log. Each row captures provenance, recipient, body, kind and the
// wall-clock stamp assigned at creation; a bigserial sequence preserves
// insertion order for reads.
package pgstore

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
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/sala/chat-api/internal/chat"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Messages implements store.MessageStore on PostgreSQL.
type Messages struct {
	db *sql.DB
}

// NewMessages opens the database, verifies the connection and applies any
// pending migrations.
func NewMessages(dsn string) (*Messages, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: connection failed: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Messages{db: db}, nil
}

// NewMessagesWithDB wraps an existing database handle without running
// migrations. Intended for tests that manage schema themselves.
func NewMessagesWithDB(db *sql.DB) *Messages {
	return &Messages{db: db}
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("pgstore: load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("pgstore: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pgstore: migrate up: %w", err)
	}
	return nil
}

// Append inserts a message at the tail of the log. A missing ID is filled
// in with a fresh UUID.
func (s *Messages) Append(ctx context.Context, m chat.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO messages (id, from_name, to_name, body, kind, stamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.ExecContext(ctx, query, m.ID, m.From, m.To, m.Text, m.Type, m.Time)
	if err != nil {
		return fmt.Errorf("pgstore: append: %w", err)
	}
	return nil
}

// List returns every message in insertion order.
func (s *Messages) List(ctx context.Context) ([]chat.Message, error) {
	const query = `
		SELECT id, from_name, to_name, body, kind, stamp
		FROM messages
		ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
	}
	defer rows.Close()

	var out []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := rows.Scan(&m.ID, &m.From, &m.To, &m.Text, &m.Type, &m.Time); err != nil {
			return nil, fmt.Errorf("pgstore: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: rows: %w", err)
	}
	return out, nil
}

// Close closes the database handle.
func (s *Messages) Close() error {
	return s.db.Close()
}
