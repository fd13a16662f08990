package bridge

import (
	"encoding/json"
	"time"
)

// RequestStatus asks the bridge to re-query the device.
const RequestStatus = "status"

// CommandMessage is published to fluxhaus/command/{kind}/{id}.
type CommandMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Protocol  string    `json:"protocol,omitempty"`
	Command   string    `json:"command"`
	Source    string    `json:"source"`
}

// RequestMessage is published to fluxhaus/request/{kind}/{id}.
type RequestMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Protocol  string    `json:"protocol,omitempty"`
	Request   string    `json:"request"`
}

// StateMessage is received on fluxhaus/state/{kind}/{id}.
//
// RequestID echoes the RequestMessage that triggered the report, if any.
// Odometer and EVStatus are only sent by vehicle bridges.
type StateMessage struct {
	DeviceID  string          `json:"device_id"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
	Status    json.RawMessage `json:"status"`
	Odometer  json.RawMessage `json:"odometer,omitempty"`
	EVStatus  json.RawMessage `json:"ev_status,omitempty"`
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
