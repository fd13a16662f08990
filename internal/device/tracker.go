package device

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"
)

// Tracker holds a DeviceState behind a lock. Device implementations embed
// one and update it as commands go out and status reports come in.
type Tracker struct {
	mu    sync.RWMutex
	state DeviceState
	now   func() time.Time
}

// NewTracker returns a Tracker with no status and no command recorded.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		state: DeviceState{LastCommand: CommandNone},
		now:   now,
	}
}

// RecordCommand notes that cmd was issued.
func (t *Tracker) RecordCommand(cmd Command) time.Time {
	at := t.now()
	t.mu.Lock()
	t.state.LastCommand = cmd
	t.state.LastCommandAt = &at
	t.mu.Unlock()
	return at
}

// SetStatus replaces the cached status.
func (t *Tracker) SetStatus(status json.RawMessage) {
	at := t.now()
	cp := append(json.RawMessage(nil), bytes.TrimSpace(status)...)

	t.mu.Lock()
	t.state.CachedStatus = cp
	t.state.UpdatedAt = &at
	t.mu.Unlock()
}

// Status returns a copy of the cached status, or nil.
func (t *Tracker) Status() json.RawMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.state.CachedStatus == nil {
		return nil
	}
	return append(json.RawMessage(nil), t.state.CachedStatus...)
}

// Snapshot returns a copy of the full state.
func (t *Tracker) Snapshot() DeviceState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.state
	if s.CachedStatus != nil {
		s.CachedStatus = append(json.RawMessage(nil), s.CachedStatus...)
	}
	return s
}
