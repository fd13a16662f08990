package command

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// State is a command execution's lifecycle state.
type State string

const (
	StateDispatched    State = "dispatched"
	StatePendingResync State = "pending_resync"
	StateReconciled    State = "reconciled"
	StateFailed        State = "failed"
)

// Lifecycle events.
const (
	EventSchedule  = "schedule"
	EventReconcile = "reconcile"
	EventFail      = "fail"
)

// CommandResync is logged for resyncs requested on their own.
const CommandResync device.Command = "resync"

// Execution is one dispatched command as stored in the command log.
type Execution struct {
	ID        string         `json:"id"`
	Device    string         `json:"device"`
	Command   device.Command `json:"command"`
	Username  string         `json:"username,omitempty"`
	State     State          `json:"state"`
	Accepted  bool           `json:"accepted"`
	Message   string         `json:"message,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Terminal reports whether no further transitions are possible.
func (e Execution) Terminal() bool {
	return e.State == StateReconciled || e.State == StateFailed
}

// lifecycle drives one Execution through its state machine.
type lifecycle struct {
	mu      sync.Mutex
	exec    Execution
	machine *fsm.FSM
	now     func() time.Time

	// onEnter runs for every state entered after dispatched.
	onEnter func(Execution)
}

func newLifecycle(deviceName string, cmd device.Command, username string, now func() time.Time, onEnter func(Execution)) *lifecycle {
	at := now().UTC()
	l := &lifecycle{
		exec: Execution{
			ID:        uuid.NewString(),
			Device:    deviceName,
			Command:   cmd,
			Username:  username,
			State:     StateDispatched,
			CreatedAt: at,
			UpdatedAt: at,
		},
		now:     now,
		onEnter: onEnter,
	}

	l.machine = fsm.NewFSM(
		string(StateDispatched),
		fsm.Events{
			{Name: EventSchedule, Src: []string{string(StateDispatched)}, Dst: string(StatePendingResync)},
			{Name: EventReconcile, Src: []string{string(StatePendingResync)}, Dst: string(StateReconciled)},
			{Name: EventFail, Src: []string{string(StateDispatched), string(StatePendingResync)}, Dst: string(StateFailed)},
		},
		fsm.Callbacks{
			"enter_state": l.enterState,
		},
	)
	return l
}

// enterState runs inside fire, with l.mu held.
func (l *lifecycle) enterState(_ context.Context, e *fsm.Event) {
	l.exec.State = State(e.Dst)
	l.exec.UpdatedAt = l.now().UTC()
	if len(e.Args) > 0 {
		if msg, ok := e.Args[0].(string); ok && msg != "" {
			l.exec.Message = msg
		}
	}
	if l.onEnter != nil {
		l.onEnter(l.exec)
	}
}

// fire applies event. message, if set, replaces the execution's message.
// Transitions must not be lost to a cancelled request, so the machine is
// driven with a background context.
func (l *lifecycle) fire(event, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.machine.Event(context.Background(), event, message)
}

func (l *lifecycle) setAck(ack device.Ack) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exec.Accepted = ack.Accepted
	l.exec.Message = ack.Message
}

func (l *lifecycle) snapshot() Execution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exec
}
