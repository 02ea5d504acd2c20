// Package memstore provides in-memory implementations of the store
// contracts. They back unit tests and the infra-free server mode; a mutex
// per collection stands in for the per-operation atomicity the real
// backends get from Redis and PostgreSQL.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/store"
)

// Participants implements store.ParticipantStore in memory.
type Participants struct {
	mu      sync.RWMutex
	records map[string]chat.Participant
}

// NewParticipants returns an empty participant collection.
func NewParticipants() *Participants {
	return &Participants{records: make(map[string]chat.Participant)}
}

func (s *Participants) Insert(ctx context.Context, p chat.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[p.Name]; ok {
		return store.ErrDuplicate
	}
	s.records[p.Name] = p
	return nil
}

func (s *Participants) Get(ctx context.Context, name string) (*chat.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.records[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *Participants) Touch(ctx context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[name]
	if !ok {
		return store.ErrNotFound
	}
	p.LastStatus = at.UnixMilli()
	s.records[name] = p
	return nil
}

func (s *Participants) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, name)
	return nil
}

func (s *Participants) List(ctx context.Context) ([]chat.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Participant, 0, len(s.records))
	for _, p := range s.records {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Messages implements store.MessageStore in memory.
type Messages struct {
	mu  sync.RWMutex
	log []chat.Message
}

// NewMessages returns an empty message log.
func NewMessages() *Messages {
	return &Messages{}
}

func (s *Messages) Append(ctx context.Context, m chat.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, m)
	return nil
}

func (s *Messages) List(ctx context.Context) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]chat.Message, len(s.log))
	copy(out, s.log)
	return out, nil
}
