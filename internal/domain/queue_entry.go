package domain

import "time"

type QueueEntryStatus string

const (
	QueueEntryWaiting   QueueEntryStatus = "waiting"
	QueueEntryActive    QueueEntryStatus = "active"
	QueueEntryExpired   QueueEntryStatus = "expired"
	QueueEntryCompleted QueueEntryStatus = "completed"
)

// Terminal reports whether the status admits no further transitions. An
// expired entry never returns to waiting; the user rejoins at the back.
func (s QueueEntryStatus) Terminal() bool {
	return s == QueueEntryExpired || s == QueueEntryCompleted
}

// QueueEntry is one user's place in a drop's fair-access queue. Positions are
// assigned from an atomic per-drop sequence in join order; ExpiresAt is set
// only once the entry becomes active.
type QueueEntry struct {
	ID        string
	DropID    string
	UserID    string
	Position  int
	Status    QueueEntryStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Lapsed reports whether an active entry's purchase window has run out.
// Callers must treat a lapsed entry as expired regardless of whether the
// sweep has stamped it yet.
func (e QueueEntry) Lapsed(now time.Time) bool {
	return e.Status == QueueEntryActive && e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}
