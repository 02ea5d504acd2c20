// Package message owns message creation and the per-requester visibility
// filter. Posting stamps provenance and wall-clock time server-side;
// clients never control either.
package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/sala/chat-api/internal/chat"
	"github.com/sala/chat-api/internal/events"
	"github.com/sala/chat-api/internal/metrics"
	"github.com/sala/chat-api/internal/store"
)

// ErrNotRegistered is returned by Post when the sender has no active
// participant record.
var ErrNotRegistered = errors.New("message: sender not registered")

// ErrUnauthorized is returned by List when the requester has no active
// participant record.
var ErrUnauthorized = errors.New("message: requester not registered")

// Service implements message posting and reads over the injected stores.
type Service struct {
	participants store.ParticipantStore
	messages     store.MessageStore
	events       events.Publisher
	log          *logrus.Entry
}

// NewService wires a message service. The events publisher may be
// events.Nop when no broker is configured.
func NewService(participants store.ParticipantStore, messages store.MessageStore, pub events.Publisher, log *logrus.Entry) *Service {
	return &Service{
		participants: participants,
		messages:     messages,
		events:       pub,
		log:          log,
	}
}

// Post validates the payload, checks the sender is registered, stamps the
// message and appends it to the log.
func (s *Service) Post(ctx context.Context, sender string, payload chat.MessagePayload) (chat.Message, error) {
	payload, verr := chat.ValidateMessage(payload)
	if verr != nil {
		s.log.WithField("sender", sender).Warn("message payload rejected")
		return chat.Message{}, verr
	}

	p, err := s.participants.Get(ctx, sender)
	if err != nil {
		return chat.Message{}, fmt.Errorf("message: post lookup %s: %w", sender, err)
	}
	if p == nil {
		return chat.Message{}, ErrNotRegistered
	}

	m := chat.Message{
		ID:   uuid.NewString(),
		From: sender,
		To:   payload.To,
		Text: payload.Text,
		Type: payload.Type,
		Time: chat.Stamp(time.Now()),
	}
	if err := s.messages.Append(ctx, m); err != nil {
		return chat.Message{}, fmt.Errorf("message: append: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues(m.Type).Inc()
	s.events.MessagePosted(m)
	return m, nil
}

// List returns the messages visible to the requester, in chronological
// order. A non-negative limit keeps only the most recent limit entries of
// the visible set; a negative limit means no truncation. Requesters without
// an active participant record are rejected.
func (s *Service) List(ctx context.Context, requester string, limit int) ([]chat.Message, error) {
	p, err := s.participants.Get(ctx, requester)
	if err != nil {
		return nil, fmt.Errorf("message: list lookup %s: %w", requester, err)
	}
	if p == nil {
		return nil, ErrUnauthorized
	}

	all, err := s.messages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("message: list: %w", err)
	}

	visible := lo.Filter(all, func(m chat.Message, _ int) bool {
		return m.VisibleTo(requester)
	})

	if limit >= 0 && limit < len(visible) {
		visible = visible[len(visible)-limit:]
	}
	return visible, nil
}
