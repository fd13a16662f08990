package bridge

import (
	"encoding/json"

	"github.com/fluxhaus/fluxhaus-core/internal/command"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/mqtt"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

// eventQoS is at-most-once: notifications are hints and a newer one always
// follows.
const eventQoS = 0

// EventPublisher mirrors Core activity onto the bus so other household
// services can react without polling the API. It satisfies both
// poller.Notifier and command.Notifier.
//
// Snapshot notifications are retained so late subscribers see the latest
// refresh time. They carry only the key and timestamp, never the payload.
type EventPublisher struct {
	mqtt   MQTTClient
	logger Logger
	topics mqtt.Topics
}

// NewEventPublisher creates an EventPublisher. logger may be nil.
func NewEventPublisher(client MQTTClient, logger Logger) *EventPublisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &EventPublisher{mqtt: client, logger: logger}
}

type snapshotNotice struct {
	Key       string `json:"key"`
	Timestamp string `json:"timestamp"`
}

// SnapshotUpdated publishes to fluxhaus/core/snapshot/{key}.
func (p *EventPublisher) SnapshotUpdated(key string, snap snapshot.Snapshot) {
	notice := snapshotNotice{Key: key, Timestamp: snap.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00")}
	p.publish(p.topics.CoreSnapshot(key), notice, true)
}

// CommandUpdated publishes to fluxhaus/core/command/{device}.
func (p *EventPublisher) CommandUpdated(exec command.Execution) {
	p.publish(p.topics.CoreCommand(exec.Device), exec, false)
}

func (p *EventPublisher) publish(topic string, v any, retained bool) {
	if !p.mqtt.IsConnected() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		p.logger.Error("encoding event", "topic", topic, "error", err)
		return
	}
	if err := p.mqtt.Publish(topic, payload, eventQoS, retained); err != nil {
		p.logger.Debug("publishing event failed", "topic", topic, "error", err)
	}
}
