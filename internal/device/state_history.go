package device

import (
	"context"
	"encoding/json"
	"time"
)

// State history source values.
const (
	StateHistorySourceMQTT   = "mqtt"
	StateHistorySourceResync = "resync"
)

// StateHistoryEntry is one recorded status report.
type StateHistoryEntry struct {
	ID        int64           `json:"id"`
	DeviceID  string          `json:"device_id"`
	Kind      Kind            `json:"kind"`
	State     json.RawMessage `json:"state"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// StateHistoryRepository stores and retrieves device status history.
// Implementations must be safe for concurrent use and store UTC timestamps.
type StateHistoryRepository interface {
	RecordStateChange(ctx context.Context, deviceID string, kind Kind, state json.RawMessage, source string) error

	// GetHistory returns entries newest first. limit is clamped by the
	// implementation.
	GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error)
}
