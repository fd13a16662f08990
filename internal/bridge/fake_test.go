package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/mqtt"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
}

// fakeMQTT records publishes and lets tests deliver messages to subscribers.
type fakeMQTT struct {
	mu         sync.Mutex
	connected  bool
	publishErr error
	published  []published
	handlers   map[string]mqtt.MessageHandler

	// onPublish runs after each successful publish, outside the lock.
	onPublish func(topic string, payload []byte)
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, _ bool) error {
	f.mu.Lock()
	if f.publishErr != nil {
		f.mu.Unlock()
		return f.publishErr
	}
	f.published = append(f.published, published{topic: topic, payload: payload, qos: qos})
	hook := f.onPublish
	f.mu.Unlock()
	if hook != nil {
		hook(topic, payload)
	}
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.handlers[topic]; !ok {
		return errors.New("not subscribed")
	}
	delete(f.handlers, topic)
	return nil
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTT) deliver(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return errors.New("no handler for " + topic)
	}
	return h(topic, payload)
}

func (f *fakeMQTT) last() published {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return published{}
	}
	return f.published[len(f.published)-1]
}

type historyCall struct {
	deviceID string
	kind     device.Kind
	state    string
	source   string
}

type fakeHistory struct {
	mu    sync.Mutex
	calls []historyCall
}

func (h *fakeHistory) RecordStateChange(_ context.Context, deviceID string, kind device.Kind, state json.RawMessage, source string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, historyCall{deviceID, kind, string(state), source})
	return nil
}

type telemetryPoint struct {
	deviceID string
	odometer float64
	battery  float64
	at       time.Time
}

type fakeTelemetry struct {
	points []telemetryPoint
}

func (t *fakeTelemetry) WriteVehicle(deviceID string, odometer, batteryPercent float64, at time.Time) {
	t.points = append(t.points, telemetryPoint{deviceID, odometer, batteryPercent, at})
}
