// Package store defines the persistence contracts backing the chat service.
// Participants and messages live in two independent collections; every
// service operation round-trips through these interfaces, no in-process
// caching sits in front of them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sala/chat-api/internal/chat"
)

// ErrDuplicate is returned by Insert when a participant with the same name
// already exists. Backends enforce this at the storage layer so two
// concurrent registrations cannot both win.
var ErrDuplicate = errors.New("store: duplicate participant")

// ErrNotFound is returned by Touch when no participant record exists.
var ErrNotFound = errors.New("store: participant not found")

// ParticipantStore persists participant liveness records keyed by name.
type ParticipantStore interface {
	// Insert creates the record, failing with ErrDuplicate if the name is
	// taken. The check-and-create must be atomic.
	Insert(ctx context.Context, p chat.Participant) error

	// Get returns the record, or (nil, nil) when absent.
	Get(ctx context.Context, name string) (*chat.Participant, error)

	// Touch sets the record's last activity to at, failing with
	// ErrNotFound when absent.
	Touch(ctx context.Context, name string, at time.Time) error

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, name string) error

	// List returns all records ordered by name.
	List(ctx context.Context) ([]chat.Participant, error)
}

// MessageStore persists the append-only message log.
type MessageStore interface {
	// Append adds a message to the log.
	Append(ctx context.Context, m chat.Message) error

	// List returns every message in insertion order.
	List(ctx context.Context) ([]chat.Message, error)
}
