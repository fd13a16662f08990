package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fluxhaus/fluxhaus-core/internal/rhizome"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

// ErrNoEVStatus is returned when the vehicle reports no EV status.
var ErrNoEVStatus = errors.New("vehicle reported no EV status")

// ScheduleSource fetches the daycare schedule. *rhizome.Client satisfies it.
type ScheduleSource interface {
	FetchSchedule(ctx context.Context) (json.RawMessage, error)
}

// PhotoSource fetches the daycare photo feed. *rhizome.Client satisfies it.
type PhotoSource interface {
	FetchPhotos(ctx context.Context) (rhizome.PhotoFeed, error)
}

// EVSource is the part of device.Vehicle the EV status job needs.
type EVSource interface {
	Resync(ctx context.Context) error
	EVStatus() json.RawMessage
}

// ScheduleJob refreshes the daycare schedule snapshot.
func ScheduleJob(src ScheduleSource) Job {
	return Job{
		Key: snapshot.KeyRhizome,
		Fetch: func(ctx context.Context) (any, error) {
			raw, err := src.FetchSchedule(ctx)
			if err != nil {
				return nil, err
			}
			if len(raw) == 0 {
				return nil, errors.New("empty schedule")
			}
			return raw, nil
		},
	}
}

// PhotosJob refreshes the daycare photo and news snapshot.
func PhotosJob(src PhotoSource) Job {
	return Job{
		Key: snapshot.KeyRhizomePhotos,
		Fetch: func(ctx context.Context) (any, error) {
			return src.FetchPhotos(ctx)
		},
	}
}

// EVStatusJob resyncs the vehicle and stores its EV status.
func EVStatusJob(v EVSource) Job {
	return Job{
		Key: snapshot.KeyEVStatus,
		Fetch: func(ctx context.Context) (any, error) {
			if err := v.Resync(ctx); err != nil {
				return nil, fmt.Errorf("resyncing vehicle: %w", err)
			}
			ev := v.EVStatus()
			if len(ev) == 0 || string(ev) == "null" {
				return nil, ErrNoEVStatus
			}
			return ev, nil
		},
	}
}
