// Package state maintains the last-known device state assembled from
// decoded broadcast messages.
//
// Broadcasts are partial: a volume-only update must not erase a previously
// learned input source. The tracker therefore merges only the fields
// present in each update and keeps no history; Snapshot always returns the
// most recent merged view.
package state

import (
	"sync"

	"github.com/tombabolewski/vidaa-control/internal/protocol"
)

// DeviceState is the cached view of the TV.
type DeviceState struct {
	// Volume is the last broadcast volume level, 0-100.
	Volume int

	// Muted is the last broadcast mute state. Muting does not zero the
	// cached volume level; the two are tracked independently.
	Muted bool

	// Power is the last known power state ("on", "standby"); empty until
	// a broadcast carries it.
	Power string

	// Input is the last known input source identifier; empty until a
	// broadcast carries it.
	Input string
}

// Tracker merges StateUpdate broadcasts into a DeviceState cache.
// Safe for concurrent use; Apply never blocks on anything but the lock.
type Tracker struct {
	mu    sync.RWMutex
	state DeviceState
}

// NewTracker returns a tracker with zero-valued state.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Apply merges the fields present in the update into the cached state.
// Volume values outside 0-100 are clamped so the cache invariant holds
// even against misbehaving firmware.
func (t *Tracker) Apply(update *protocol.StateUpdate) {
	if update == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if update.Volume != nil {
		level := *update.Volume
		if level < 0 {
			level = 0
		}
		if level > 100 {
			level = 100
		}
		t.state.Volume = level
	}
	if update.Muted != nil {
		t.state.Muted = *update.Muted
	}
	if update.Power != nil {
		t.state.Power = *update.Power
	}
	if update.Input != nil {
		t.state.Input = *update.Input
	}
}

// Snapshot returns a copy of the most recent merged state.
func (t *Tracker) Snapshot() DeviceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Reset clears the cache, typically on disconnect so a stale snapshot
// does not survive into the next session.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = DeviceState{}
}
