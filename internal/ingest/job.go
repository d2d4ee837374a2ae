// Package ingest implements the collection pipeline: fetch laws from the
// upstream source, stage their articles and embeddings, then atomically
// publish each document and invalidate its cache scope.
package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobState is the lifecycle state of a collection job.
type JobState string

const (
	JobPending         JobState = "pending"
	JobRunning         JobState = "running"
	JobSucceeded       JobState = "succeeded"
	JobFailed          JobState = "failed"
	JobPartiallyFailed JobState = "partially_failed"

	// JobSkipped marks a trigger that found the collection lease already
	// held. No job ran.
	JobSkipped JobState = "skipped"
)

// Terminal reports whether the state is final.
func (s JobState) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobPartiallyFailed, JobSkipped:
		return true
	}
	return false
}

// ItemError records a single failed law within a job.
type ItemError struct {
	LawID string    `json:"law_id"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// Job tracks one collection run.
type Job struct {
	mu sync.Mutex

	ID         string      `json:"id"`
	Seed       string      `json:"seed"`
	State      JobState    `json:"state"`
	StartedAt  time.Time   `json:"started_at,omitempty"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
	Processed  int         `json:"processed"`
	Errors     []ItemError `json:"errors,omitempty"`
}

// NewJob creates a pending job for the given seed query.
func NewJob(seed string) *Job {
	return &Job{
		ID:    uuid.NewString(),
		Seed:  seed,
		State: JobPending,
	}
}

// SkippedJob creates a terminal job recording a lease-contention skip.
func SkippedJob(seed string) *Job {
	now := time.Now()
	return &Job{
		ID:         uuid.NewString(),
		Seed:       seed,
		State:      JobSkipped,
		StartedAt:  now,
		FinishedAt: now,
	}
}

// Start transitions the job to running.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.State = JobRunning
	j.StartedAt = time.Now()
}

// RecordProcessed counts a successfully published law.
func (j *Job) RecordProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Processed++
}

// RecordError captures a per-item failure without aborting the job.
func (j *Job) RecordError(lawID string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Errors = append(j.Errors, ItemError{LawID: lawID, Error: err.Error(), At: time.Now()})
}

// Finish settles the terminal state from the processed/error counts:
// all items failed means Failed, some means PartiallyFailed.
func (j *Job) Finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FinishedAt = time.Now()
	switch {
	case len(j.Errors) == 0:
		j.State = JobSucceeded
	case j.Processed == 0:
		j.State = JobFailed
	default:
		j.State = JobPartiallyFailed
	}
}

// Fail marks the whole job failed with a single error.
func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.FinishedAt = time.Now()
	j.State = JobFailed
	j.Errors = append(j.Errors, ItemError{Error: err.Error(), At: time.Now()})
}

// Snapshot returns a copy safe to serialize while the job is running.
func (j *Job) Snapshot() *Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := &Job{
		ID:         j.ID,
		Seed:       j.Seed,
		State:      j.State,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
		Processed:  j.Processed,
	}
	cp.Errors = append(cp.Errors, j.Errors...)
	return cp
}

// CurrentState returns the job state under the lock.
func (j *Job) CurrentState() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.State
}
