package cmd

import (
	"context"
	"log/slog"

	"github.com/yeonlab/lawsearch/internal/cache"
	"github.com/yeonlab/lawsearch/internal/config"
	"github.com/yeonlab/lawsearch/internal/embed"
	"github.com/yeonlab/lawsearch/internal/ingest"
	"github.com/yeonlab/lawsearch/internal/lawapi"
	"github.com/yeonlab/lawsearch/internal/logging"
	"github.com/yeonlab/lawsearch/internal/sched"
	"github.com/yeonlab/lawsearch/internal/search"
	"github.com/yeonlab/lawsearch/internal/service"
	"github.com/yeonlab/lawsearch/internal/store"
	"github.com/yeonlab/lawsearch/internal/vector"
)

// app holds the wired component graph for one CLI invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	service   *service.Service
	scheduler *sched.Scheduler

	closers []func()
}

// buildApp loads configuration and wires the full stack: canonical store,
// vector backend, cache, embedder, search providers, upstream client,
// pipeline, and scheduler.
func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logCfg := logging.Config{
		Level:         cfg.Log.Level,
		FilePath:      cfg.Log.FilePath,
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: debugMode,
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, logCleanup)

	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	canonical, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = canonical.Close() })

	embedder, err := embed.New(cfg.Embed)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = embedder.Close() })

	// The vector backend must match the embedder, not the config file.
	vecCfg := cfg.Vector
	if d := embedder.Dimensions(); d > 0 && d != vecCfg.Dimensions {
		logger.Warn("overriding vector dimensions to match embedder",
			slog.Int("configured", vecCfg.Dimensions), slog.Int("embedder", d))
		vecCfg.Dimensions = d
	}
	vectors, err := vector.New(ctx, vecCfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = vectors.Close() })

	resultCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = resultCache.Close() })

	lexical, err := search.NewLexicalProvider(cfg.Search.LexicalIndexPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = lexical.Close() })

	semantic := search.NewSemanticProvider(embedder, vectors)
	engine := search.NewEngine(lexical, semantic, cfg.Search, logger)

	client := lawapi.NewClient(cfg.LawAPI, logger)
	pipeline := ingest.NewPipeline(client, canonical, vectors, embedder, lexical,
		resultCache, cfg.Ingest.Workers, logger)

	scheduler, err := sched.New(pipeline, cfg.Ingest, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, scheduler.Stop)

	a.service = service.New(engine, semantic, canonical, resultCache, scheduler, cfg, logger)
	a.scheduler = scheduler

	ok = true
	return a, nil
}

// Close releases all components in reverse construction order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
