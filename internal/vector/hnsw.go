package vector

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
	"github.com/yeonlab/lawsearch/internal/store"
)

// filterOverfetch multiplies topK when a metadata filter is active, so that
// post-query filtering still leaves enough candidates.
const filterOverfetch = 4

// HNSWStore is the in-memory vector backend built on coder/hnsw.
//
// Deletions are lazy: the graph node is orphaned by dropping its id mapping
// rather than removed, which sidesteps graph corruption when the last node
// is deleted. Orphans are skipped at query time.
type HNSWStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	meta    map[string]Metadata
	nextKey uint64

	closed bool
}

// hnswMetadata is the gob-encoded sidecar persisted next to the graph.
type hnswMetadata struct {
	IDMap   map[string]uint64
	Meta    map[string]Metadata
	NextKey uint64
	Dims    int
}

// NewHNSWStore creates an empty in-memory store for vectors of the given
// dimensionality.
func NewHNSWStore(dims int) (*HNSWStore, error) {
	if dims <= 0 {
		return nil, lserr.New(lserr.ErrCodeConfigInvalid, fmt.Sprintf("invalid vector dimensions: %d", dims), nil)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &HNSWStore{
		graph:  graph,
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
		meta:   make(map[string]Metadata),
	}, nil
}

func (s *HNSWStore) Upsert(ctx context.Context, id string, vec []float32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lserr.New(lserr.ErrCodeVectorBackend, "vector store is closed", nil)
	}
	if len(vec) != s.dims {
		return lserr.New(lserr.ErrCodeVectorBackend, "upsert failed",
			ErrDimensionMismatch{Expected: s.dims, Got: len(vec)})
	}

	// Replacing an existing id orphans its old graph node.
	if oldKey, ok := s.idMap[id]; ok {
		delete(s.keyMap, oldKey)
		delete(s.idMap, id)
	}

	key := s.nextKey
	s.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	s.graph.Add(hnsw.MakeNode(key, normalized))
	s.idMap[id] = key
	s.keyMap[key] = id
	s.meta[id] = meta

	return nil
}

func (s *HNSWStore) Query(ctx context.Context, vec []float32, topK int, filter store.Filter) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, lserr.New(lserr.ErrCodeVectorBackend, "vector store is closed", nil)
	}
	if len(vec) != s.dims {
		return nil, lserr.New(lserr.ErrCodeVectorBackend, "query failed",
			ErrDimensionMismatch{Expected: s.dims, Got: len(vec)})
	}
	if topK <= 0 || s.graph.Len() == 0 {
		return []Result{}, nil
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	// Overfetch to compensate for orphaned nodes and post-query filtering.
	k := topK
	if !filter.Empty() {
		k = topK * filterOverfetch
	}
	if orphans := s.graph.Len() - len(s.idMap); orphans > 0 {
		k += orphans
	}

	nodes := s.graph.Search(normalized, k)

	results := make([]Result, 0, topK)
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		meta := s.meta[id]
		if !meta.Matches(filter) {
			continue
		}
		distance := s.graph.Distance(normalized, node.Value)
		results = append(results, Result{
			ID:       id,
			Score:    cosineDistanceToScore(distance),
			Metadata: meta,
		})
	}

	sortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *HNSWStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lserr.New(lserr.ErrCodeVectorBackend, "vector store is closed", nil)
	}
	if key, ok := s.idMap[id]; ok {
		delete(s.keyMap, key)
		delete(s.idMap, id)
		delete(s.meta, id)
	}
	return nil
}

func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return len(s.idMap)
}

func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// Save persists the graph and id/metadata sidecar atomically (temp + rename).
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return lserr.New(lserr.ErrCodeVectorBackend, "vector store is closed", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lserr.New(lserr.ErrCodeVectorBackend, "create index directory", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return lserr.New(lserr.ErrCodeVectorBackend, "create index file", err)
	}
	if err := s.graph.Export(file); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return lserr.New(lserr.ErrCodeVectorBackend, "export graph", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return lserr.New(lserr.ErrCodeVectorBackend, "close index file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return lserr.New(lserr.ErrCodeVectorBackend, "rename index file", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *HNSWStore) saveMetadata(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return lserr.New(lserr.ErrCodeVectorBackend, "create metadata file", err)
	}

	meta := hnswMetadata{
		IDMap:   s.idMap,
		Meta:    s.meta,
		NextKey: s.nextKey,
		Dims:    s.dims,
	}
	if err := gob.NewEncoder(file).Encode(meta); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return lserr.New(lserr.ErrCodeVectorBackend, "encode metadata", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return lserr.New(lserr.ErrCodeVectorBackend, "close metadata file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return lserr.New(lserr.ErrCodeVectorBackend, "rename metadata file", err)
	}
	return nil
}

// Load restores a previously saved graph and sidecar.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lserr.New(lserr.ErrCodeVectorBackend, "vector store is closed", nil)
	}
	if err := s.loadMetadata(path + ".meta"); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return lserr.New(lserr.ErrCodeCorruptIndex, "open index file", err)
	}
	defer file.Close()

	// coder/hnsw Import requires an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(file)); err != nil {
		return lserr.New(lserr.ErrCodeCorruptIndex, "import graph", err)
	}
	return nil
}

func (s *HNSWStore) loadMetadata(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return lserr.New(lserr.ErrCodeCorruptIndex, "open metadata file", err)
	}
	defer file.Close()

	var meta hnswMetadata
	if err := gob.NewDecoder(file).Decode(&meta); err != nil {
		return lserr.New(lserr.ErrCodeCorruptIndex, "decode metadata", err)
	}
	if meta.Dims != s.dims {
		return lserr.New(lserr.ErrCodeCorruptIndex,
			fmt.Sprintf("index dimensions %d do not match configured %d", meta.Dims, s.dims), nil)
	}

	s.idMap = meta.IDMap
	s.meta = meta.Meta
	s.nextKey = meta.NextKey
	s.keyMap = make(map[uint64]string, len(meta.IDMap))
	for id, key := range meta.IDMap {
		s.keyMap[key] = id
	}
	return nil
}

var _ Store = (*HNSWStore)(nil)

// normalizeVectorInPlace scales a vector to unit length.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineDistanceToScore maps cosine distance (0..2) to similarity in [0,1].
func cosineDistanceToScore(distance float32) float64 {
	score := 1.0 - float64(distance)/2.0
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
