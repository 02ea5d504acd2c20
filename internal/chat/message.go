// Package chat holds the domain records shared by every service: chat
// participants, the append-only message log, and payload validation for
// client-supplied input.
package chat

import "time"

// Broadcast is the recipient sentinel meaning "everyone in the room".
const Broadcast = "Todos"

// Message type values. StatusType is reserved for system notices
// (join/leave) and is never accepted from clients.
const (
	MessageType = "message"
	PrivateType = "private_message"
	StatusType  = "status"
)

// TimeLayout is the wall-clock format stamped on every message.
const TimeLayout = "15:04:05"

// Message is one entry in the append-only log. Messages are immutable once
// created and are never deleted.
type Message struct {
	ID   string `json:"-"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

// Stamp returns t formatted the way messages record their creation time.
func Stamp(t time.Time) string {
	return t.Format(TimeLayout)
}

// VisibleTo reports whether the message may be returned to the given
// requester. Public and status messages are visible to everyone; private
// messages only to their two parties.
func (m Message) VisibleTo(requester string) bool {
	return m.To == requester || m.From == requester ||
		m.Type == StatusType || m.Type == MessageType
}
