package vector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
)

// DiskStore is the on-disk vector backend: an HNSWStore that loads its graph
// from disk on open and persists after mutations. A file lock guards the
// index against concurrent writers from other processes.
type DiskStore struct {
	inner *HNSWStore
	path  string
	lock  *flock.Flock
	dirty bool
}

// NewDiskStore opens (or creates) a persisted index at path.
func NewDiskStore(path string, dims int) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, lserr.New(lserr.ErrCodeVectorBackend, "create index directory", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "acquire index lock", err)
	}
	if !locked {
		return nil, lserr.New(lserr.ErrCodeStoreUnavailable, "vector index is locked by another process", nil)
	}

	inner, err := NewHNSWStore(dims)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr == nil {
		if err := inner.Load(path); err != nil {
			lock.Unlock()
			return nil, err
		}
	}

	return &DiskStore{inner: inner, path: path, lock: lock}, nil
}

func (s *DiskStore) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	if err := s.inner.Upsert(ctx, id, vec, meta); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

func (s *DiskStore) Query(ctx context.Context, vec []float32, topK int, filter store.Filter) ([]Result, error) {
	return s.inner.Query(ctx, vec, topK, filter)
}

func (s *DiskStore) Delete(ctx context.Context, id string) error {
	if err := s.inner.Delete(ctx, id); err != nil {
		return err
	}
	s.dirty = true
	return nil
}

func (s *DiskStore) Count() int {
	return s.inner.Count()
}

// Flush writes the index to disk if it changed since the last flush.
func (s *DiskStore) Flush() error {
	if !s.dirty {
		return nil
	}
	if err := s.inner.Save(s.path); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *DiskStore) Close() error {
	flushErr := s.Flush()
	closeErr := s.inner.Close()
	unlockErr := s.lock.Unlock()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return closeErr
	}
	if unlockErr != nil {
		return lserr.New(lserr.ErrCodeVectorBackend, "release index lock", unlockErr)
	}
	return nil
}

var _ Store = (*DiskStore)(nil)
