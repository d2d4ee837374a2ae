package sched

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/ingest"
)

// historyLimit bounds the retained job history.
const historyLimit = 50

// Scheduler owns the timed trigger loop. Timed and manual triggers share
// the same lease, so at most one collection job runs at a time; a trigger
// that loses the race is recorded as a skipped job. Missed ticks are
// dropped, never queued.
type Scheduler struct {
	pipeline *ingest.Pipeline
	lease    *Lease
	schedule cron.Schedule
	seed     string
	topK     int
	leaseTTL time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	history []*ingest.Job

	stop     chan struct{}
	stopOnce sync.Once
}

// New parses the cron expression and builds a scheduler.
func New(pipeline *ingest.Pipeline, cfg config.IngestConfig, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeConfigInvalid, "invalid ingest schedule "+cfg.Schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pipeline: pipeline,
		lease:    NewLease(),
		schedule: schedule,
		seed:     strings.Join(cfg.SeedQueries, ", "),
		topK:     cfg.TopKPerRun,
		leaseTTL: cfg.LeaseTTL,
		logger:   logger,
		stop:     make(chan struct{}),
	}, nil
}

// Start launches the background trigger loop. The loop sleeps until the
// next cron activation, fires a trigger, and recomputes from the current
// time, which naturally drops any ticks missed while a job was running.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		for {
			next := s.schedule.Next(time.Now())
			timer := time.NewTimer(time.Until(next))

			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-s.stop:
				timer.Stop()
				return
			case <-timer.C:
				job := s.trigger(ctx, s.seed)
				if job.CurrentState() == ingest.JobSkipped {
					s.logger.Info("scheduled collection skipped, lease held")
				}
			}
		}
	}()
}

// Stop terminates the trigger loop. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Trigger starts a manual collection run for the seed (or the configured
// seeds when empty). The returned job is already terminal and Skipped when
// a run is in flight; otherwise it is running and settles in the
// background.
func (s *Scheduler) Trigger(ctx context.Context, seed string) *ingest.Job {
	if strings.TrimSpace(seed) == "" {
		seed = s.seed
	}
	return s.trigger(ctx, seed)
}

func (s *Scheduler) trigger(ctx context.Context, seed string) *ingest.Job {
	token, ok := s.lease.TryAcquire(s.leaseTTL)
	if !ok {
		job := ingest.SkippedJob(seed)
		s.record(job)
		return job
	}

	job := ingest.NewJob(seed)
	// Mark running before handing the job back so callers never observe a
	// pending job that already holds the lease.
	job.Start()
	s.record(job)

	go func() {
		defer s.lease.Release(token)
		s.pipeline.Run(ctx, job, seed, s.topK)
	}()
	return job
}

// TriggerAndWait runs a collection synchronously. Used by the CLI collect
// command.
func (s *Scheduler) TriggerAndWait(ctx context.Context, seed string) *ingest.Job {
	if strings.TrimSpace(seed) == "" {
		seed = s.seed
	}

	token, ok := s.lease.TryAcquire(s.leaseTTL)
	if !ok {
		job := ingest.SkippedJob(seed)
		s.record(job)
		return job
	}
	defer s.lease.Release(token)

	job := ingest.NewJob(seed)
	s.record(job)
	s.pipeline.Run(ctx, job, seed, s.topK)
	return job
}

func (s *Scheduler) record(job *ingest.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, job)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
}

// History returns snapshots of recorded jobs, newest last.
func (s *Scheduler) History() []*ingest.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ingest.Job, 0, len(s.history))
	for _, job := range s.history {
		out = append(out, job.Snapshot())
	}
	return out
}
