// Package presence owns participant liveness: registration, heartbeat
// refresh, and the periodic eviction sweep. Joining and leaving the room
// both leave a status notice in the message log, so the log alone tells the
// room's history.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/events"
	"github.com/sala/chat-api/internal/metrics"
	"github.com/sala/chat-api/internal/store"
)

// Status notice bodies, matching what room clients display.
const (
	joinedText = "entra na sala..."
	leftText   = "sai da sala..."
)

// ErrConflict is returned by Register when the name is already taken.
var ErrConflict = errors.New("presence: participant already exists")

// ErrNotFound is returned by Heartbeat when the participant is unknown.
var ErrNotFound = errors.New("presence: participant not found")

// Service implements the presence operations over the injected stores.
type Service struct {
	participants store.ParticipantStore
	messages     store.MessageStore
	events       events.Publisher
	log          *logrus.Entry
}

// NewService wires a presence service. The events publisher may be
// events.Nop when no broker is configured.
func NewService(participants store.ParticipantStore, messages store.MessageStore, pub events.Publisher, log *logrus.Entry) *Service {
	return &Service{
		participants: participants,
		messages:     messages,
		events:       pub,
		log:          log,
	}
}

// Register validates the payload, creates the participant and appends the
// join notice. The two writes are not transactional across backends: if the
// notice append fails the participant stays registered and the error is
// reported, never rolled back.
func (s *Service) Register(ctx context.Context, payload chat.ParticipantPayload) (chat.Participant, error) {
	payload, verr := chat.ValidateParticipant(payload)
	if verr != nil {
		return chat.Participant{}, verr
	}

	now := time.Now()
	p := chat.NewParticipant(payload.Name, now)

	if err := s.participants.Insert(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return chat.Participant{}, ErrConflict
		}
		return chat.Participant{}, fmt.Errorf("presence: register %s: %w", p.Name, err)
	}

	notice := chat.Message{
		From: p.Name,
		To:   chat.Broadcast,
		Text: joinedText,
		Type: chat.StatusType,
		Time: chat.Stamp(now),
	}
	if err := s.messages.Append(ctx, notice); err != nil {
		return chat.Participant{}, fmt.Errorf("presence: join notice for %s: %w", p.Name, err)
	}

	metrics.ParticipantsActive.Inc()
	metrics.MessagesTotal.WithLabelValues(chat.StatusType).Inc()
	s.events.ParticipantJoined(p.Name)
	s.log.WithField("name", p.Name).Info("participant registered")

	return p, nil
}

// Heartbeat resets the participant's staleness clock.
func (s *Service) Heartbeat(ctx context.Context, name string) error {
	err := s.participants.Touch(ctx, name, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("presence: heartbeat %s: %w", name, err)
	}
	return nil
}

// ListNames returns the names of all registered participants, ordered.
func (s *Service) ListNames(ctx context.Context) ([]string, error) {
	all, err := s.participants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("presence: list: %w", err)
	}

	names := make([]string, 0, len(all))
	for _, p := range all {
		names = append(names, p.Name)
	}
	return names, nil
}

// EvictStale removes every participant whose last activity is at least
// threshold before now, appending a leave notice for each. The notice is
// written before the record is deleted, so a concurrent reader never sees a
// silent disappearance; a participant whose notice fails to append is kept
// for the next sweep. Returns the number of participants evicted.
func (s *Service) EvictStale(ctx context.Context, now time.Time, threshold time.Duration) (int, error) {
	all, err := s.participants.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("presence: sweep list: %w", err)
	}

	evicted := 0
	for _, p := range all {
		if !p.StaleAt(now, threshold) {
			continue
		}

		notice := chat.Message{
			From: p.Name,
			To:   chat.Broadcast,
			Text: leftText,
			Type: chat.StatusType,
			Time: chat.Stamp(now),
		}
		if err := s.messages.Append(ctx, notice); err != nil {
			s.log.WithError(err).WithField("name", p.Name).Error("leave notice failed, keeping participant")
			continue
		}
		if err := s.participants.Delete(ctx, p.Name); err != nil {
			s.log.WithError(err).WithField("name", p.Name).Error("evict delete failed")
			continue
		}

		evicted++
		metrics.ParticipantsActive.Dec()
		metrics.EvictionsTotal.Inc()
		metrics.MessagesTotal.WithLabelValues(chat.StatusType).Inc()
		s.events.ParticipantLeft(p.Name)
		s.log.WithFields(logrus.Fields{
			"name": p.Name,
			"idle": now.UnixMilli() - p.LastStatus,
		}).Info("participant evicted")
	}

	return evicted, nil
}
