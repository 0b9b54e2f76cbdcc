// Package flags provides feature-flag evaluation over an immutable snapshot.
// A Snapshot is loaded as a whole and passed explicitly to whatever needs it,
// so evaluation is a pure function of (key, snapshot) with no shared mutable
// state. Sources refresh by swapping in a new snapshot, never by editing one.
package flags

import "time"

// Flag keys consulted by the drop core.
const (
	FlagDynamicPricing = "dynamic_pricing"
	FlagVIPEarlyAccess = "vip_early_access"
)

// Defaults returns the flag values assumed when no backing store is
// configured or a key is missing from it.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagDynamicPricing: true,
		FlagVIPEarlyAccess: true,
	}
}

// Snapshot is an immutable point-in-time view of all flags.
type Snapshot struct {
	values   map[string]bool
	loadedAt time.Time
}

// NewSnapshot copies values into an immutable snapshot.
func NewSnapshot(values map[string]bool, loadedAt time.Time) Snapshot {
	copied := make(map[string]bool, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Snapshot{values: copied, loadedAt: loadedAt}
}

// Enabled reports whether the flag is on in this snapshot. Unknown keys are
// off.
func (s Snapshot) Enabled(key string) bool {
	return s.values[key]
}

// LoadedAt returns when the snapshot was taken.
func (s Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Source supplies the current snapshot. Implementations swap snapshots
// atomically; callers hold one snapshot for the duration of a request.
type Source interface {
	Current() Snapshot
}

// Static is a fixed-snapshot source for tests and flag-store-less deployments.
type Static struct {
	snap Snapshot
}

func NewStatic(values map[string]bool) *Static {
	return &Static{snap: NewSnapshot(values, time.Time{})}
}

func (s *Static) Current() Snapshot {
	return s.snap
}
