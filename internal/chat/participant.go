package chat

import "time"

// Participant is an active chat session, identified solely by name. The name
// doubles as the storage key, so at most one record exists per name.
type Participant struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"` // unix milliseconds of last activity
}

// NewParticipant builds a participant whose activity clock starts at now.
func NewParticipant(name string, now time.Time) Participant {
	return Participant{Name: name, LastStatus: now.UnixMilli()}
}

// StaleAt reports whether the participant has been inactive for at least
// threshold as of now.
func (p Participant) StaleAt(now time.Time, threshold time.Duration) bool {
	return now.UnixMilli()-p.LastStatus >= threshold.Milliseconds()
}
