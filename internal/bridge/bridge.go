package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/mqtt"
)

const (
	commandQoS = 1
	stateQoS   = 1

	defaultResyncTimeout = 10 * time.Second
	historyWriteTimeout  = 5 * time.Second
)

// MQTTClient is the subset of *mqtt.Client the bridge needs.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// HistoryRecorder stores status reports. *device.SQLiteStateHistoryRepository
// satisfies it.
type HistoryRecorder interface {
	RecordStateChange(ctx context.Context, deviceID string, kind device.Kind, state json.RawMessage, source string) error
}

// Logger is the logging interface used by bridge devices.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a bridge-backed device.
type Options struct {
	// Name is the device name used by Core (e.g. "broombot").
	Name string

	// DeviceID is the id the bridge process knows the device by.
	DeviceID string

	// Protocol names the integration the bridge uses for the device, for
	// example "roomba" or "bluelink". It is sent with every command.
	Protocol string

	MQTT MQTTClient

	// History is optional.
	History HistoryRecorder

	// Logger is optional.
	Logger Logger

	// ResyncTimeout bounds Resync when the caller's context has no deadline.
	ResyncTimeout time.Duration

	// Now is optional and defaults to time.Now.
	Now func() time.Time
}

// endpoint is the MQTT plumbing shared by robots and the vehicle.
type endpoint struct {
	kind          device.Kind
	name          string
	id            string
	protocol      string
	mqtt          MQTTClient
	history       HistoryRecorder
	logger        Logger
	resyncTimeout time.Duration
	now           func() time.Time
	tracker       *device.Tracker
	topics        mqtt.Topics

	// beforeStatus runs with each state report before waiters are woken.
	beforeStatus func(StateMessage)

	// waiters maps outstanding resync request ids to the channel closed
	// when the matching report arrives.
	waitMu  sync.Mutex
	waiters map[string]chan struct{}
}

func newEndpoint(kind device.Kind, opts Options) (*endpoint, error) {
	if opts.Name == "" || opts.DeviceID == "" {
		return nil, fmt.Errorf("%w: name and device id are required", ErrInvalidOptions)
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt client is required", ErrInvalidOptions)
	}
	e := &endpoint{
		kind:          kind,
		name:          opts.Name,
		id:            opts.DeviceID,
		protocol:      opts.Protocol,
		mqtt:          opts.MQTT,
		history:       opts.History,
		logger:        opts.Logger,
		resyncTimeout: opts.ResyncTimeout,
		now:           opts.Now,
		waiters:       make(map[string]chan struct{}),
	}
	if e.logger == nil {
		e.logger = noopLogger{}
	}
	if e.resyncTimeout <= 0 {
		e.resyncTimeout = defaultResyncTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.tracker = device.NewTracker(e.now)
	return e, nil
}

// start subscribes to the device's state topic.
func (e *endpoint) start() error {
	topic := e.topics.DeviceState(string(e.kind), e.id)
	if err := e.mqtt.Subscribe(topic, stateQoS, e.handleState); err != nil {
		return fmt.Errorf("subscribing to %s state: %w", e.name, err)
	}
	e.logger.Info("bridge device subscribed", "device", e.name, "topic", topic)
	return nil
}

func (e *endpoint) stop() error {
	if err := e.mqtt.Unsubscribe(e.topics.DeviceState(string(e.kind), e.id)); err != nil {
		return fmt.Errorf("unsubscribing from %s state: %w", e.name, err)
	}
	return nil
}

// send publishes cmd. The returned Ack is always populated; Accepted is
// false when the command could not be handed to the bridge.
func (e *endpoint) send(ctx context.Context, cmd device.Command, source string) (device.Ack, error) {
	ack := device.Ack{Device: e.name, Command: cmd, At: e.now()}

	if err := ctx.Err(); err != nil {
		ack.Message = err.Error()
		return ack, err
	}
	if !e.mqtt.IsConnected() {
		ack.Message = "bridge not connected"
		return ack, fmt.Errorf("%s %s: %w", e.name, cmd, device.ErrNotConnected)
	}

	msg := CommandMessage{
		ID:        uuid.NewString(),
		Timestamp: ack.At.UTC(),
		DeviceID:  e.id,
		Protocol:  e.protocol,
		Command:   string(cmd),
		Source:    source,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return ack, fmt.Errorf("encoding command: %w", err)
	}
	if err := e.mqtt.Publish(e.topics.DeviceCommand(string(e.kind), e.id), payload, commandQoS, false); err != nil {
		ack.Message = "publish failed"
		return ack, fmt.Errorf("%s %s: %w", e.name, cmd, err)
	}

	ack.At = e.tracker.RecordCommand(cmd)
	ack.Accepted = true
	ack.Message = "sent to bridge"
	e.logger.Debug("command sent", "device", e.name, "command", cmd, "id", msg.ID)
	return ack, nil
}

// resync asks the bridge for fresh state and waits for the report that
// echoes the request id. Unsolicited reports and replies to other requests
// update the cache but do not complete the wait.
func (e *endpoint) resync(ctx context.Context) error {
	if !e.mqtt.IsConnected() {
		return fmt.Errorf("%s resync: %w", e.name, device.ErrNotConnected)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.resyncTimeout)
		defer cancel()
	}

	req := RequestMessage{
		ID:        uuid.NewString(),
		Timestamp: e.now().UTC(),
		DeviceID:  e.id,
		Protocol:  e.protocol,
		Request:   RequestStatus,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	// Register before publishing so a fast reply is not missed.
	done := e.await(req.ID)
	defer e.release(req.ID)

	if err := e.mqtt.Publish(e.topics.DeviceRequest(string(e.kind), e.id), payload, commandQoS, false); err != nil {
		return fmt.Errorf("%s resync: %w", e.name, err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", e.name, device.ErrResyncTimeout)
	}
}

func (e *endpoint) await(requestID string) <-chan struct{} {
	ch := make(chan struct{})
	e.waitMu.Lock()
	e.waiters[requestID] = ch
	e.waitMu.Unlock()
	return ch
}

func (e *endpoint) release(requestID string) {
	e.waitMu.Lock()
	delete(e.waiters, requestID)
	e.waitMu.Unlock()
}

// answer wakes the resync waiting on requestID, if any.
func (e *endpoint) answer(requestID string) {
	if requestID == "" {
		return
	}
	e.waitMu.Lock()
	ch, ok := e.waiters[requestID]
	delete(e.waiters, requestID)
	e.waitMu.Unlock()
	if ok {
		close(ch)
	}
}

func (e *endpoint) handleState(_ string, payload []byte) error {
	var msg StateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("decoding %s state: %w", e.name, err)
	}
	if isNull(msg.Status) {
		return fmt.Errorf("%s: %w", e.name, ErrEmptyStatus)
	}

	if e.beforeStatus != nil {
		e.beforeStatus(msg)
	}

	// History is written before waiters are woken so a returning Resync
	// sees its report persisted.
	if e.history != nil {
		source := device.StateHistorySourceMQTT
		if msg.RequestID != "" {
			source = device.StateHistorySourceResync
		}
		ctx, cancel := context.WithTimeout(context.Background(), historyWriteTimeout)
		defer cancel()
		if err := e.history.RecordStateChange(ctx, e.name, e.kind, msg.Status, source); err != nil {
			e.logger.Warn("recording state history failed", "device", e.name, "error", err)
		}
	}

	e.tracker.SetStatus(msg.Status)
	e.answer(msg.RequestID)
	return nil
}
