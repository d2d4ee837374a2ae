// Package sched runs collection jobs on a cron schedule with a single
// process-wide lease guaranteeing at most one active job.
package sched

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Lease is a time-bounded single-holder lock. A holder that crashes
// without releasing simply lets the lease expire, so the next tick is
// never permanently locked out.
type Lease struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewLease creates an unheld lease.
func NewLease() *Lease {
	return &Lease{}
}

// TryAcquire attempts to take the lease for ttl. Returns the holder token
// and true on success, or "" and false while another holder's lease is
// still live.
func (l *Lease) TryAcquire(ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != "" && time.Now().Before(l.expiresAt) {
		return "", false
	}
	l.token = uuid.NewString()
	l.expiresAt = time.Now().Add(ttl)
	return l.token, true
}

// Release frees the lease if token is the current holder's. A stale token
// (expired and re-acquired by someone else) is a no-op.
func (l *Lease) Release(token string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.token != token {
		return false
	}
	l.token = ""
	l.expiresAt = time.Time{}
	return true
}

// Held reports whether the lease currently has a live holder.
func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token != "" && time.Now().Before(l.expiresAt)
}
