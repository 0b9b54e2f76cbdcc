package domain

import "time"

// Phase is the derived lifecycle position of a drop. It is recomputed from
// {status, start_time, end_time, now} on every read and never stored.
type Phase string

const (
	PhaseDraft     Phase = "draft"
	PhaseScheduled Phase = "scheduled"
	PhaseVIPLive   Phase = "vip_live"
	PhaseLive      Phase = "live"
	PhaseEnded     Phase = "ended"
)

// PhaseAt derives the drop's phase as seen by a caller at the given instant.
// vip selects the early-access view: during the window between VIPStart and
// StartTime a VIP caller sees vip_live while everyone else still sees
// scheduled. Time only ever moves the phase forward; backward moves require
// an explicit admin status change.
func (d Drop) PhaseAt(now time.Time, vip bool) Phase {
	switch d.Status {
	case DropStatusDraft:
		return PhaseDraft
	case DropStatusEnded:
		return PhaseEnded
	}

	if d.EndTime != nil && !now.Before(*d.EndTime) {
		return PhaseEnded
	}
	if !now.Before(d.StartTime) {
		return PhaseLive
	}
	if d.VIPEarlyAccessHours > 0 && !now.Before(d.VIPStart()) {
		if vip {
			return PhaseVIPLive
		}
		return PhaseScheduled
	}
	return PhaseScheduled
}

// Purchasable reports whether the phase admits purchase attempts.
func (p Phase) Purchasable() bool {
	return p == PhaseLive || p == PhaseVIPLive
}
