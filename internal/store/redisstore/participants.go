// Package redisstore keeps participant liveness records in Redis as plain
// key-value pairs:
//
//	Key:   participant:<name>
//	Value: <last activity, unix milliseconds>
//
// Registration uses SET NX so the uniqueness check and the insert are one
// atomic step; heartbeats use SET XX so refreshing a record that was just
// evicted fails instead of resurrecting it.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/store"
)

// ParticipantPrefix is the Redis key prefix for all participant records.
const ParticipantPrefix = "participant:"

// Participants implements store.ParticipantStore on Redis.
type Participants struct {
	client *redis.Client
}

// NewParticipants connects to Redis and verifies the connection.
func NewParticipants(addr string) (*Participants, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redisstore: connection failed: %w", err)
	}

	return &Participants{client: client}, nil
}

// NewParticipantsWithClient wraps an existing Redis client.
func NewParticipantsWithClient(client *redis.Client) *Participants {
	return &Participants{client: client}
}

// Insert atomically creates the participant record, failing with
// store.ErrDuplicate when the name is already registered.
func (s *Participants) Insert(ctx context.Context, p chat.Participant) error {
	key := ParticipantPrefix + p.Name
	ok, err := s.client.SetNX(ctx, key, strconv.FormatInt(p.LastStatus, 10), 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: insert %s: %w", p.Name, err)
	}
	if !ok {
		return store.ErrDuplicate
	}
	return nil
}

// Get retrieves a participant record. Returns (nil, nil) if not found.
func (s *Participants) Get(ctx context.Context, name string) (*chat.Participant, error) {
	key := ParticipantPrefix + name
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: %w", name, err)
	}

	last, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redisstore: get %s: bad timestamp %q: %w", name, val, err)
	}
	return &chat.Participant{Name: name, LastStatus: last}, nil
}

// Touch updates the record's last activity, failing with store.ErrNotFound
// when the participant does not exist. SET XX makes the existence check and
// the write a single atomic step.
func (s *Participants) Touch(ctx context.Context, name string, at time.Time) error {
	key := ParticipantPrefix + name
	ok, err := s.client.SetXX(ctx, key, strconv.FormatInt(at.UnixMilli(), 10), 0).Result()
	if err != nil {
		return fmt.Errorf("redisstore: touch %s: %w", name, err)
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a participant record.
func (s *Participants) Delete(ctx context.Context, name string) error {
	key := ParticipantPrefix + name
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redisstore: delete %s: %w", name, err)
	}
	return nil
}

// List scans all participant keys and returns the records ordered by name.
// Records deleted mid-scan are skipped.
func (s *Participants) List(ctx context.Context) ([]chat.Participant, error) {
	var out []chat.Participant

	iter := s.client.Scan(ctx, 0, ParticipantPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		name := iter.Val()[len(ParticipantPrefix):]
		p, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if p != nil {
			out = append(out, *p)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redisstore: list: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Close closes the Redis connection.
func (s *Participants) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Participants) Client() *redis.Client {
	return s.client
}
