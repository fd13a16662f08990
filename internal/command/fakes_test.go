package command

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// manualScheduler fires timers only when Advance moves its clock past them.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Advance moves the clock forward and runs every timer that became due,
// including timers scheduled by those callbacks.
func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		var due []*manualTimer
		for _, t := range s.timers {
			if !t.stopped && !t.fired && t.at <= s.now {
				t.fired = true
				due = append(due, t)
			}
		}
		s.mu.Unlock()
		if len(due) == 0 {
			return
		}
		sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
		for _, t := range due {
			t.f()
		}
	}
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type call struct {
	command device.Command
	source  string
}

// fakeDevice implements both device.Robot and device.Vehicle.
type fakeDevice struct {
	mu        sync.Mutex
	name      string
	reject    bool
	sendErr   error
	resyncErr error
	calls     []call
	resyncs   int
}

func (f *fakeDevice) Name() string { return f.name }

func (f *fakeDevice) send(ctx context.Context, cmd device.Command) (device.Ack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{cmd, device.SourceFrom(ctx)})
	ack := device.Ack{Device: f.name, Command: cmd, Accepted: !f.reject && f.sendErr == nil, At: time.Now()}
	if f.reject {
		ack.Message = "rejected"
	}
	return ack, f.sendErr
}

func (f *fakeDevice) TurnOn(ctx context.Context) (device.Ack, error) {
	return f.send(ctx, device.CommandOn)
}
func (f *fakeDevice) TurnOff(ctx context.Context) (device.Ack, error) {
	return f.send(ctx, device.CommandOff)
}
func (f *fakeDevice) Start(ctx context.Context) (device.Ack, error) {
	return f.send(ctx, device.CommandStart)
}
func (f *fakeDevice) Stop(ctx context.Context) (device.Ack, error) {
	return f.send(ctx, device.CommandStop)
}
func (f *fakeDevice) Lock(ctx context.Context) (device.Ack, error) {
	return f.send(ctx, device.CommandLock)
}
func (f *fakeDevice) Unlock(ctx context.Context) (device.Ack, error) {
	return f.send(ctx, device.CommandUnlock)
}

func (f *fakeDevice) Resync(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resyncs++
	return f.resyncErr
}

func (f *fakeDevice) CachedStatus() json.RawMessage { return nil }
func (f *fakeDevice) Status() json.RawMessage       { return nil }
func (f *fakeDevice) Odometer() json.RawMessage     { return nil }
func (f *fakeDevice) EVStatus() json.RawMessage     { return nil }
func (f *fakeDevice) State() device.DeviceState {
	return device.DeviceState{LastCommand: device.CommandNone}
}

func (f *fakeDevice) count(cmd device.Command) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.command == cmd {
			n++
		}
	}
	return n
}

func (f *fakeDevice) resyncCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resyncs
}

type memoryLog struct {
	mu      sync.Mutex
	records []Execution
}

func (m *memoryLog) Record(_ context.Context, exec Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, exec)
	return nil
}

func (m *memoryLog) List(context.Context, int) ([]Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Execution(nil), m.records...), nil
}

// states returns the recorded state sequence for one execution id.
func (m *memoryLog) states(id string) []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []State
	for _, r := range m.records {
		if r.ID == id {
			out = append(out, r.State)
		}
	}
	return out
}

func (m *memoryLog) first() Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[0]
}

type countingMetrics struct {
	mu         sync.Mutex
	commands   int
	failures   int
	reconciled int
	reconFails int
}

func (c *countingMetrics) ObserveCommand(_, _ string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands++
	if err != nil {
		c.failures++
	}
}

func (c *countingMetrics) ObserveReconcile(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.reconFails++
		return
	}
	c.reconciled++
}

type recordingNotifier struct {
	mu    sync.Mutex
	execs []Execution
}

func (r *recordingNotifier) CommandUpdated(exec Execution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.execs = append(r.execs, exec)
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (*recordingLogger) Debug(string, ...any) {}
func (*recordingLogger) Info(string, ...any)  {}
func (*recordingLogger) Warn(string, ...any)  {}

func (r *recordingLogger) Error(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, msg)
}
