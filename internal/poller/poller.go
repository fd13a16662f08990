// Package poller keeps the snapshot cache fresh.
//
// Each Job fetches one upstream feed. The Scheduler runs every job once at
// start and then on every tick. A successful fetch replaces the job's
// snapshot; a failed one is logged and the previous snapshot stays. The
// next tick is the only retry.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

const (
	defaultInterval     = time.Hour
	defaultFetchTimeout = 10 * time.Second
)

// Job is one periodically refreshed feed.
type Job struct {
	// Key is the snapshot key the result is stored under.
	Key string

	// Fetch returns the payload to store. Any error is a fetch failure.
	Fetch func(ctx context.Context) (any, error)
}

// Store persists snapshots. *snapshot.Store satisfies it.
type Store interface {
	Put(key string, payload any) (snapshot.Snapshot, error)
}

// Notifier is told about every successful refresh.
type Notifier interface {
	SnapshotUpdated(key string, snap snapshot.Snapshot)
}

// Metrics receives fetch outcomes. *metrics.Metrics satisfies it.
type Metrics interface {
	ObserveFetch(key string, err error, took time.Duration)
}

// Telemetry receives fetch outcomes. *influxdb.Client satisfies it.
type Telemetry interface {
	WriteFetch(key string, ok bool, took time.Duration)
}

// Logger is the logging interface used by the scheduler.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Scheduler.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	Notifiers    []Notifier
	Metrics      Metrics
	Telemetry    Telemetry
	Logger       Logger
}

// Scheduler runs jobs on a fixed period.
type Scheduler struct {
	store        Store
	jobs         []Job
	interval     time.Duration
	fetchTimeout time.Duration
	notifiers    []Notifier
	metrics      Metrics
	telemetry    Telemetry
	logger       Logger
}

// New creates a Scheduler writing to store.
func New(store Store, opts Options) *Scheduler {
	s := &Scheduler{
		store:        store,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		notifiers:    opts.Notifiers,
		metrics:      opts.Metrics,
		telemetry:    opts.Telemetry,
		logger:       opts.Logger,
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.fetchTimeout <= 0 {
		s.fetchTimeout = defaultFetchTimeout
	}
	if s.logger == nil {
		s.logger = noopLogger{}
	}
	return s
}

// Add registers a job. Jobs must be added before Run.
func (s *Scheduler) Add(jobs ...Job) {
	s.jobs = append(s.jobs, jobs...)
}

// Run polls every job until ctx is cancelled. Jobs run independently: a
// slow or failing job does not delay the others.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		return errors.New("poller: no jobs")
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		g.Go(func() error {
			s.loop(ctx, job)
			return nil
		})
	}
	s.logger.Info("poller started", "jobs", len(s.jobs), "interval", s.interval)
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_ = s.poll(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.poll(ctx, job)
		}
	}
}

// RunOnce polls every job once, concurrently, and returns the joined fetch
// failures.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	errs := make([]error, len(s.jobs))
	var g errgroup.Group
	for i, job := range s.jobs {
		g.Go(func() error {
			errs[i] = s.poll(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// poll runs one fetch-and-store cycle. A failure leaves the stored
// snapshot untouched.
func (s *Scheduler) poll(ctx context.Context, job Job) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	payload, err := job.Fetch(fetchCtx)
	if err == nil && payload == nil {
		err = errors.New("empty payload")
	}

	var snap snapshot.Snapshot
	if err == nil {
		snap, err = s.store.Put(job.Key, payload)
	}
	took := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveFetch(job.Key, err, took)
	}
	if s.telemetry != nil {
		s.telemetry.WriteFetch(job.Key, err == nil, took)
	}

	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("snapshot fetch failed, keeping previous", "key", job.Key, "error", err)
		}
		return fmt.Errorf("%s: %w", job.Key, err)
	}

	s.logger.Debug("snapshot refreshed", "key", job.Key, "took", took)
	for _, n := range s.notifiers {
		n.SnapshotUpdated(job.Key, snap)
	}
	return nil
}
