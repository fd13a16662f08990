package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

const (
	defaultSettleDelay    = 5 * time.Second
	defaultDeepCleanDelay = 20 * time.Minute
	defaultCommandTimeout = 10 * time.Second
	defaultResyncTimeout  = 10 * time.Second

	recordTimeout = 5 * time.Second
)

// Devices resolves device names. *device.Registry satisfies it.
type Devices interface {
	Robot(name string) (device.Robot, error)
	Vehicle() (device.Vehicle, error)
}

// Metrics receives command outcomes. *metrics.Metrics satisfies it.
type Metrics interface {
	ObserveCommand(device, command string, err error)
	ObserveReconcile(err error)
}

// Telemetry receives lifecycle transitions. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteCommand(device, command, state string, accepted bool)
}

// Notifier is told about every lifecycle transition.
type Notifier interface {
	CommandUpdated(exec Execution)
}

// Logger is the logging interface used by the dispatcher.
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

// Options configures a Dispatcher. Only Devices is required.
type Options struct {
	Devices   Devices
	Log       Repository
	Metrics   Metrics
	Telemetry Telemetry
	Notifiers []Notifier
	Logger    Logger
	Scheduler Scheduler
	Now       func() time.Time

	// SettleDelay is how long a device gets to apply a command before it
	// is resynced.
	SettleDelay time.Duration

	// DeepCleanDelay is how long after the broombot the mopbot starts.
	DeepCleanDelay time.Duration

	CommandTimeout time.Duration
	ResyncTimeout  time.Duration
}

// Dispatcher issues device commands and schedules their reconciliation.
type Dispatcher struct {
	devices   Devices
	log       Repository
	metrics   Metrics
	telemetry Telemetry
	notifiers []Notifier
	logger    Logger
	sched     Scheduler
	now       func() time.Time

	settleDelay    time.Duration
	deepCleanDelay time.Duration
	commandTimeout time.Duration
	resyncTimeout  time.Duration

	// base outlives request contexts so reconciles run after the
	// handler returns.
	base context.Context

	mu          sync.Mutex
	closed      bool
	deepClean   Timer
	deepCleanAt time.Time
	inflight    sync.WaitGroup
}

// New creates a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Devices == nil {
		return nil, errors.New("command: devices are required")
	}
	d := &Dispatcher{
		devices:        opts.Devices,
		log:            opts.Log,
		metrics:        opts.Metrics,
		telemetry:      opts.Telemetry,
		notifiers:      opts.Notifiers,
		logger:         opts.Logger,
		sched:          opts.Scheduler,
		now:            opts.Now,
		settleDelay:    orDefault(opts.SettleDelay, defaultSettleDelay),
		deepCleanDelay: orDefault(opts.DeepCleanDelay, defaultDeepCleanDelay),
		commandTimeout: orDefault(opts.CommandTimeout, defaultCommandTimeout),
		resyncTimeout:  orDefault(opts.ResyncTimeout, defaultResyncTimeout),
		base:           context.Background(),
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	if d.sched == nil {
		d.sched = realScheduler{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Robot sends cmd (on or off) to the named robot.
func (d *Dispatcher) Robot(ctx context.Context, name string, cmd device.Command) (device.Ack, error) {
	robot, err := d.devices.Robot(name)
	if err != nil {
		return device.Ack{}, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return d.robot(ctx, robot, cmd)
}

func (d *Dispatcher) robot(ctx context.Context, robot device.Robot, cmd device.Command) (device.Ack, error) {
	var send func(context.Context) (device.Ack, error)
	switch cmd {
	case device.CommandOn:
		send = robot.TurnOn
	case device.CommandOff:
		send = robot.TurnOff
	default:
		return device.Ack{}, fmt.Errorf("%w: %s for robot", ErrUnknownAction, cmd)
	}
	return d.dispatch(ctx, robot.Name(), cmd, send, robot.Resync)
}

// Vehicle sends cmd (start, stop, lock or unlock) to the vehicle.
func (d *Dispatcher) Vehicle(ctx context.Context, cmd device.Command) (device.Ack, error) {
	v, err := d.devices.Vehicle()
	if err != nil {
		return device.Ack{}, fmt.Errorf("%w: vehicle", ErrUnknownDevice)
	}

	var send func(context.Context) (device.Ack, error)
	switch cmd {
	case device.CommandStart:
		send = v.Start
	case device.CommandStop:
		send = v.Stop
	case device.CommandLock:
		send = v.Lock
	case device.CommandUnlock:
		send = v.Unlock
	default:
		return device.Ack{}, fmt.Errorf("%w: %s for vehicle", ErrUnknownAction, cmd)
	}
	return d.dispatch(ctx, v.Name(), cmd, send, v.Resync)
}

// ResyncVehicle starts a vehicle resync without waiting for it. The
// returned Execution is in pending_resync.
func (d *Dispatcher) ResyncVehicle(ctx context.Context) (Execution, error) {
	v, err := d.devices.Vehicle()
	if err != nil {
		return Execution{}, fmt.Errorf("%w: vehicle", ErrUnknownDevice)
	}

	l := d.begin(ctx, v.Name(), CommandResync)
	l.setAck(device.Ack{Accepted: true, Message: "resync requested"})
	if err := d.schedule(l, v.Resync, 0); err != nil {
		return l.snapshot(), err
	}
	return l.snapshot(), nil
}

// dispatch sends one command and schedules a resync after the settle
// delay whatever the ack says: a timed-out publish may still have reached
// the device, and only the resync tells. The ack is returned as soon as
// send does.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	deviceName string,
	cmd device.Command,
	send func(context.Context) (device.Ack, error),
	resync func(context.Context) error,
) (device.Ack, error) {
	if d.isClosed() {
		return device.Ack{Device: deviceName, Command: cmd, At: d.now()}, ErrClosed
	}

	l := d.begin(ctx, deviceName, cmd)

	sendCtx, cancel := context.WithTimeout(ctx, d.commandTimeout)
	ack, err := send(sendCtx)
	cancel()

	if d.metrics != nil {
		d.metrics.ObserveCommand(deviceName, string(cmd), err)
	}

	if err != nil || !ack.Accepted {
		reason := ack.Message
		if err != nil {
			reason = err.Error()
		}
		d.logger.Warn("command not accepted", "device", deviceName, "command", cmd, "reason", reason)
		l.setAck(device.Ack{Accepted: false, Message: "not accepted: " + reason})
	} else {
		d.logger.Info("command dispatched", "device", deviceName, "command", cmd, "source", device.SourceFrom(ctx))
		l.setAck(ack)
	}

	if serr := d.schedule(l, resync, d.settleDelay); serr != nil && err == nil {
		return ack, serr
	}
	return ack, err
}

// begin creates and records a new execution in the dispatched state.
func (d *Dispatcher) begin(ctx context.Context, deviceName string, cmd device.Command) *lifecycle {
	l := newLifecycle(deviceName, cmd, ActorFrom(ctx), d.now, d.publish)
	d.publish(l.snapshot())
	return l
}

// schedule moves l to pending_resync and arranges for resync to run after
// delay. Scheduled resyncs are never cancelled; Close waits for them.
func (d *Dispatcher) schedule(l *lifecycle, resync func(context.Context) error, delay time.Duration) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.fire(l, EventFail, ErrClosed.Error())
		return ErrClosed
	}
	d.inflight.Add(1)
	d.mu.Unlock()

	if err := l.fire(EventSchedule, ""); err != nil {
		d.inflight.Done()
		return fmt.Errorf("scheduling resync: %w", err)
	}

	d.sched.AfterFunc(delay, func() {
		defer d.inflight.Done()
		d.reconcile(l, resync)
	})
	return nil
}

func (d *Dispatcher) reconcile(l *lifecycle, resync func(context.Context) error) {
	ctx, cancel := context.WithTimeout(d.base, d.resyncTimeout)
	defer cancel()

	err := resync(ctx)
	if d.metrics != nil {
		d.metrics.ObserveReconcile(err)
	}

	exec := l.snapshot()
	if err != nil {
		d.logger.Warn("resync failed", "device", exec.Device, "command", exec.Command, "error", err)
		d.fire(l, EventFail, err.Error())
		return
	}
	d.logger.Debug("resync complete", "device", exec.Device, "command", exec.Command)
	d.fire(l, EventReconcile, "")
}

// fire applies event to l, logging a rejected transition.
func (d *Dispatcher) fire(l *lifecycle, event, message string) {
	if err := l.fire(event, message); err != nil {
		d.logger.Error("command lifecycle", "id", l.snapshot().ID, "event", event, "error", err)
	}
}

// publish fans an execution out to the command log, telemetry and notifiers.
func (d *Dispatcher) publish(exec Execution) {
	if d.log != nil {
		ctx, cancel := context.WithTimeout(d.base, recordTimeout)
		if err := d.log.Record(ctx, exec); err != nil {
			d.logger.Warn("recording command failed", "id", exec.ID, "error", err)
		}
		cancel()
	}
	if d.telemetry != nil {
		d.telemetry.WriteCommand(exec.Device, string(exec.Command), string(exec.State), exec.Accepted)
	}
	for _, n := range d.notifiers {
		n.CommandUpdated(exec)
	}
}

func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Close stops the pending deep-clean timer, rejects new commands and waits
// for scheduled resyncs to finish or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	if d.deepClean != nil {
		d.deepClean.Stop()
		d.deepClean = nil
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pending resyncs: %w", ctx.Err())
	}
}

type actorKey struct{}

// WithActor records who issued commands sent with ctx.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

// ActorFrom returns the username set by WithActor.
func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey{}).(string)
	return s
}
