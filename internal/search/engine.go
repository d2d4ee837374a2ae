package search

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yeonlab/lawsearch/internal/config"
	lserr "github.com/yeonlab/lawsearch/internal/errors"
)

// Engine executes queries against both providers and fuses the results.
type Engine struct {
	lexical  *LexicalProvider
	semantic *SemanticProvider
	weights  FusionWeights
	deadline time.Duration
	reranker Reranker
	logger   *slog.Logger

	defaultTopK int
	maxTopK     int
}

// NewEngine builds a search engine from configured providers.
func NewEngine(lexical *LexicalProvider, semantic *SemanticProvider, cfg config.SearchConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		lexical:  lexical,
		semantic: semantic,
		weights: FusionWeights{
			Lexical:  cfg.LexicalWeight,
			Semantic: cfg.SemanticWeight,
		},
		deadline:    cfg.QueryDeadline,
		reranker:    NoopReranker{},
		logger:      logger,
		defaultTopK: cfg.DefaultTopK,
		maxTopK:     cfg.MaxTopK,
	}
}

// SetReranker replaces the post-fusion rerank stage.
func (e *Engine) SetReranker(r Reranker) {
	if r != nil {
		e.reranker = r
	}
}

// Search runs one query. In hybrid mode both providers run concurrently
// under the query deadline; if one fails or times out, the survivor's
// results are returned with Degraded set. Both failing fails the query.
func (e *Engine) Search(ctx context.Context, q Query) (*Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, lserr.New(lserr.ErrCodeQueryEmpty, "query text is empty", nil)
	}

	mode := q.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	if !mode.Valid() {
		return nil, lserr.Validation("unknown search mode " + string(q.Mode))
	}

	topK := q.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	if e.maxTopK > 0 && topK > e.maxTopK {
		topK = e.maxTopK
	}

	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	switch mode {
	case ModeLexical:
		results, err := e.lexical.Search(ctx, text, topK, q.Filter)
		if err != nil {
			return nil, err
		}
		return e.finish(text, PassThrough(results, ModeLexical), ModeLexical, false, topK), nil

	case ModeSemantic:
		results, err := e.semantic.Search(ctx, text, topK, q.Filter)
		if err != nil {
			return nil, err
		}
		return e.finish(text, PassThrough(results, ModeSemantic), ModeSemantic, false, topK), nil
	}

	// Hybrid fan-out. Errors are captured per provider rather than returned
	// so one failure never cancels the other leg.
	var (
		lexResults, semResults []ProviderResult
		lexErr, semErr         error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lexResults, lexErr = e.lexical.Search(gctx, text, topK, q.Filter)
		return nil
	})
	g.Go(func() error {
		semResults, semErr = e.semantic.Search(gctx, text, topK, q.Filter)
		return nil
	})
	_ = g.Wait()

	if lexErr != nil && semErr != nil {
		return nil, lserr.New(lserr.ErrCodeBothProvidersFailed,
			"both search providers failed", errors.Join(lexErr, semErr))
	}

	degraded := lexErr != nil || semErr != nil
	if lexErr != nil {
		e.logger.Warn("lexical provider failed, degrading to semantic-only",
			slog.String("error", lexErr.Error()))
		lexResults = nil
	}
	if semErr != nil {
		e.logger.Warn("semantic provider failed, degrading to lexical-only",
			slog.String("error", semErr.Error()))
		semResults = nil
	}

	return e.finish(text, Fuse(lexResults, semResults, e.weights), ModeHybrid, degraded, topK), nil
}

func (e *Engine) finish(queryText string, hits []Hit, mode Mode, degraded bool, topK int) *Result {
	hits = e.reranker.Rerank(queryText, hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return &Result{Hits: hits, Mode: mode, Degraded: degraded}
}
