package vector

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
)

func TestDiskStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	s, err := NewDiskStore(path, testDims)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "art_L1_001", []float32{1, 0, 0, 0}, Metadata{LawID: "L1", Status: "현행"}))
	require.NoError(t, s.Upsert(ctx, "art_L2_001", []float32{0, 1, 0, 0}, Metadata{LawID: "L2", Status: "현행"}))
	require.NoError(t, s.Close())

	reopened, err := NewDiskStore(path, testDims)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Count())
	results, err := reopened.Query(ctx, []float32{1, 0, 0, 0}, 1, store.Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "art_L1_001", results[0].ID)
	assert.Equal(t, "L1", results[0].Metadata.LawID)
}

func TestDiskStore_SecondOpenerBlockedByLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := NewDiskStore(path, testDims)
	require.NoError(t, err)
	defer s.Close()

	_, err = NewDiskStore(path, testDims)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeStoreUnavailable, lserr.GetCode(err))
}

func TestDiskStore_DimensionMismatchOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")
	ctx := context.Background()

	s, err := NewDiskStore(path, testDims)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, "art_X", []float32{1, 0, 0, 0}, Metadata{}))
	require.NoError(t, s.Close())

	_, err = NewDiskStore(path, testDims*2)
	require.Error(t, err)
	assert.Equal(t, lserr.ErrCodeCorruptIndex, lserr.GetCode(err))
}

func TestDiskStore_FlushWithoutChangesIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.hnsw")

	s, err := NewDiskStore(path, testDims)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Flush())
}
