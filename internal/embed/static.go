package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// Feature weights for the hash projection.
const (
	tokenWeight  = 0.7
	bigramWeight = 0.3
)

// StaticEmbedder generates embeddings by hashing tokens and character
// bigrams into a fixed-size vector. Deterministic and dependency-free, with
// reduced semantic quality. Character bigrams carry most of the signal for
// Korean text, where whitespace tokenization is too coarse.
type StaticEmbedder struct {
	mu     sync.RWMutex
	closed bool
}

// NewStaticEmbedder creates a static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

func (e *StaticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "embedder is closed", nil)
	}
	e.mu.RUnlock()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return make([]float32, StaticDimensions), nil
	}
	return normalizeVector(e.generateVector(trimmed)), nil
}

func (e *StaticEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, lserr.New(lserr.ErrCodeEmbeddingFailed, "batch cancelled", err)
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		results[i] = vec
	}
	return results, nil
}

func (e *StaticEmbedder) Dimensions() int {
	return StaticDimensions
}

func (e *StaticEmbedder) ModelName() string {
	return "static-hash-256"
}

func (e *StaticEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *StaticEmbedder) generateVector(text string) []float32 {
	vector := make([]float32, StaticDimensions)

	for _, token := range tokenize(text) {
		vector[hashToIndex(token, StaticDimensions)] += tokenWeight
	}
	for _, bigram := range characterBigrams(text) {
		vector[hashToIndex(bigram, StaticDimensions)] += bigramWeight
	}
	return vector
}

// tokenize splits text on anything that is not a letter or digit and
// lowercases the result.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		tokens = append(tokens, strings.ToLower(f))
	}
	return tokens
}

// characterBigrams extracts overlapping rune bigrams, skipping whitespace.
func characterBigrams(text string) []string {
	runes := make([]rune, 0, len(text))
	for _, r := range text {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) < 2 {
		return nil
	}
	bigrams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		bigrams = append(bigrams, string(runes[i:i+2]))
	}
	return bigrams
}

func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

var _ Embedder = (*StaticEmbedder)(nil)
