package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

// DeepCleanAck reports what a deep-clean start or stop did.
type DeepCleanAck struct {
	Broombot device.Ack  `json:"broombot"`
	Mopbot   *device.Ack `json:"mopbot,omitempty"`

	// MopbotStartAt is when the mopbot is due to start.
	MopbotStartAt *time.Time `json:"mopbotStartAt,omitempty"`

	// MopbotStartCancelled is set when stopping cancelled a pending start.
	MopbotStartCancelled bool `json:"mopbotStartCancelled,omitempty"`
}

func (d *Dispatcher) deepCleanRobots() (broombot, mopbot device.Robot, err error) {
	if broombot, err = d.devices.Robot(device.NameBroombot); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device.NameBroombot)
	}
	if mopbot, err = d.devices.Robot(device.NameMopbot); err != nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownDevice, device.NameMopbot)
	}
	return broombot, mopbot, nil
}

// StartDeepClean turns the broombot on now and the mopbot on after the
// deep-clean delay. A pending mopbot start from an earlier deep clean is
// cancelled first. If the broombot does not accept the command the mopbot
// is not scheduled.
func (d *Dispatcher) StartDeepClean(ctx context.Context) (DeepCleanAck, error) {
	broombot, mopbot, err := d.deepCleanRobots()
	if err != nil {
		return DeepCleanAck{}, err
	}

	ctx = device.WithSource(ctx, device.SourceDeepClean)
	ack, err := d.robot(ctx, broombot, device.CommandOn)
	result := DeepCleanAck{Broombot: ack}
	if err != nil || !ack.Accepted {
		return result, err
	}

	actor := ActorFrom(ctx)
	startAt := d.now().Add(d.deepCleanDelay)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return result, ErrClosed
	}
	if d.deepClean != nil {
		d.deepClean.Stop()
		d.logger.Info("replacing pending deep clean")
	}

	var timer Timer
	timer = d.sched.AfterFunc(d.deepCleanDelay, func() {
		d.mu.Lock()
		if d.deepClean != timer {
			d.mu.Unlock()
			return
		}
		d.deepClean = nil
		d.mu.Unlock()

		mctx := WithActor(device.WithSource(d.base, device.SourceDeepClean), actor)
		if _, err := d.robot(mctx, mopbot, device.CommandOn); err != nil {
			d.logger.Warn("deep clean mopbot start failed", "error", err)
		}
	})
	d.deepClean = timer
	d.deepCleanAt = startAt

	result.MopbotStartAt = &startAt
	return result, nil
}

// StopDeepClean turns the broombot off, cancels a pending mopbot start and
// turns the mopbot off in case it already started.
func (d *Dispatcher) StopDeepClean(ctx context.Context) (DeepCleanAck, error) {
	broombot, mopbot, err := d.deepCleanRobots()
	if err != nil {
		return DeepCleanAck{}, err
	}

	ctx = device.WithSource(ctx, device.SourceDeepClean)
	broomAck, broomErr := d.robot(ctx, broombot, device.CommandOff)

	d.mu.Lock()
	cancelled := false
	if d.deepClean != nil {
		cancelled = d.deepClean.Stop()
		d.deepClean = nil
	}
	d.mu.Unlock()

	mopAck, mopErr := d.robot(ctx, mopbot, device.CommandOff)

	return DeepCleanAck{
		Broombot:             broomAck,
		Mopbot:               &mopAck,
		MopbotStartCancelled: cancelled,
	}, errors.Join(broomErr, mopErr)
}

// DeepCleanPending reports whether a mopbot start is scheduled and when.
func (d *Dispatcher) DeepCleanPending() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deepClean == nil {
		return time.Time{}, false
	}
	return d.deepCleanAt, true
}
