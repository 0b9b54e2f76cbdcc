package domain

import "time"

type DropType string

const (
	DropTypeLimited   DropType = "limited"
	DropTypeCollab    DropType = "collab"
	DropTypeSeasonal  DropType = "seasonal"
	DropTypeExclusive DropType = "exclusive"
)

// ValidDropType reports whether t is one of the known drop types.
func ValidDropType(t DropType) bool {
	switch t {
	case DropTypeLimited, DropTypeCollab, DropTypeSeasonal, DropTypeExclusive:
		return true
	}
	return false
}

// DropStatus is the owner-settable part of a drop's lifecycle. The
// scheduled->live and live->ended edges are driven by time, so the stored
// status usually stays "scheduled" while the derived Phase moves on its own.
type DropStatus string

const (
	DropStatusDraft     DropStatus = "draft"
	DropStatusScheduled DropStatus = "scheduled"
	DropStatusLive      DropStatus = "live"
	DropStatusEnded     DropStatus = "ended"
)

// Drop is a time-boxed release of one or more limited-quantity product lines.
type Drop struct {
	ID                  string
	Name                string
	Type                DropType
	Status              DropStatus
	StartTime           time.Time
	EndTime             *time.Time
	MaxQuantity         *int
	VIPEarlyAccessHours int
	QueueSeq            int
	CreatedAt           time.Time
}

// VIPStart returns the instant VIP early access opens. When no early-access
// offset is configured it equals StartTime.
func (d Drop) VIPStart() time.Time {
	if d.VIPEarlyAccessHours <= 0 {
		return d.StartTime
	}
	return d.StartTime.Add(-time.Duration(d.VIPEarlyAccessHours) * time.Hour)
}

// Gated reports whether access to the drop is ordered through the waiting
// queue: max_quantity is set and at or below the configured threshold.
func (d Drop) Gated(threshold int) bool {
	return d.MaxQuantity != nil && *d.MaxQuantity <= threshold
}
