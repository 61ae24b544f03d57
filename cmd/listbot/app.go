package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kailas-cloud/listbot/internal/config"
	"github.com/kailas-cloud/listbot/internal/db"
	dbPostgres "github.com/kailas-cloud/listbot/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/listbot/internal/db/redis"
	"github.com/kailas-cloud/listbot/internal/domain"
	logpkg "github.com/kailas-cloud/listbot/internal/logger"
	"github.com/kailas-cloud/listbot/internal/metrics"
	budgetrepo "github.com/kailas-cloud/listbot/internal/repository/budget"
	"github.com/kailas-cloud/listbot/internal/repository/corpus"
	"github.com/kailas-cloud/listbot/internal/repository/embcache"
	"github.com/kailas-cloud/listbot/internal/transport/gemini"
	openaiT "github.com/kailas-cloud/listbot/internal/transport/openai"
	"github.com/kailas-cloud/listbot/internal/usecase/budget"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
	embeddinguc "github.com/kailas-cloud/listbot/internal/usecase/embedding"
	generationuc "github.com/kailas-cloud/listbot/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/listbot/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/listbot/internal/usecase/ingest"
)

type corpusCounter interface {
	Count(ctx context.Context) (int, error)
}

// app is the composition root shared by every subcommand.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger

	kv        *dbRedis.Store // nil for the postgres driver
	searcher  chatuc.Searcher
	sink      ingestuc.Sink
	counter   corpusCounter
	prepare   func(ctx context.Context) error
	reset     func(ctx context.Context) error // wipes the corpus before a full reload
	pinger    healthuc.Pinger
	queryEmb  domain.Embedder
	docEmb    domain.Embedder
	completer *generationuc.InstrumentedCompleter

	closers []func()
}

// newApp loads configuration and builds the store and provider chains.
// Generation is optional: withGeneration=false skips the completer (index).
func newApp(ctx context.Context, env string, withGeneration bool) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterGenerationMetrics()
	metrics.RegisterPipelineMetrics()
	metrics.RegisterHTTPMetrics()

	a := &app{env: env, cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildEmbedders(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if withGeneration {
		if err := a.buildCompleter(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) vectorConfig() config.VectorizerConfig {
	vc, _ := a.cfg.ActiveVectorizer()
	if vc.Dimensions == 0 {
		vc.Dimensions = domain.DefaultVectorConfig().Dimensions
	}
	return vc
}

func (a *app) openStore(ctx context.Context) error {
	dbCfg := a.cfg.Database
	vc := a.vectorConfig()

	switch dbCfg.Driver {
	case "valkey", "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    dbCfg.Addrs,
			Password: dbCfg.Password,
			Flavor:   dbRedis.Flavor(dbCfg.Driver),
		})
		if err != nil {
			return fmt.Errorf("create %s store: %w", dbCfg.Driver, err)
		}
		a.closers = append(a.closers, store.Close)

		if err := store.WaitForReady(ctx, time.Duration(dbCfg.ReadinessTimeout)*time.Second); err != nil {
			return fmt.Errorf("database not ready: %w", err)
		}

		distance, err := db.ParseDistance(a.cfg.Index.Distance)
		if err != nil {
			return fmt.Errorf("index.distance: %w", err)
		}
		algo := db.VectorHNSW
		if a.cfg.Index.Algorithm == "flat" {
			algo = db.VectorFlat
		}

		repo := corpus.New(store, corpus.IndexConfig{
			Dimensions:  vc.Dimensions,
			Distance:    distance,
			Algorithm:   algo,
			M:           a.cfg.Index.HNSWM,
			EFConstruct: a.cfg.Index.HNSWEFConstruct,
		}, a.logger)

		a.kv = store
		a.searcher = repo
		a.sink = repo
		a.counter = repo
		a.prepare = repo.EnsureIndex
		a.reset = func(ctx context.Context) error { return repo.Drop(ctx, true) }
		a.pinger = store

	case "postgres":
		store, err := dbPostgres.Open(ctx, dbPostgres.Config{
			DSN:             dbCfg.DSN,
			Table:           dbCfg.Table,
			Dimensions:      vc.Dimensions,
			MaxOpenConns:    dbCfg.MaxOpenConns,
			MaxIdleConns:    dbCfg.MaxIdleConns,
			ConnMaxLifetime: time.Duration(dbCfg.ConnMaxLifetime) * time.Second,
		}, a.logger)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)

		a.searcher = store
		a.sink = store
		a.counter = store
		a.prepare = store.EnsureSchema
		a.reset = store.Truncate
		a.pinger = store

	default:
		return fmt.Errorf("unknown database driver %q", dbCfg.Driver)
	}

	a.logger.Info("Connected to database",
		zap.String("driver", dbCfg.Driver),
		zap.Strings("addrs", dbCfg.Addrs),
	)
	return nil
}

// tracker builds a budget tracker, or returns nil when no limit is set.
// Counters persist in the KV store when there is one.
func (a *app) tracker(ctx context.Context, scope string, bc config.BudgetConfig, exceeded error) *budget.Tracker {
	if bc.DailyTokenLimit <= 0 && bc.MonthlyTokenLimit <= 0 {
		return nil
	}
	t := budget.NewTracker(scope, budget.Limits{
		Daily:   bc.DailyTokenLimit,
		Monthly: bc.MonthlyTokenLimit,
		Action:  budget.ParseAction(bc.Action),
	}, exceeded, a.logger)
	if a.kv != nil {
		t.WithStore(ctx, budgetrepo.New(a.kv))
	}
	return t
}

func (a *app) buildEmbedders(ctx context.Context) error {
	vc, pc := a.cfg.ActiveVectorizer()
	if vc.Provider == "" {
		return errors.New("no embedding vectorizer configured")
	}
	vc = a.vectorConfig()

	guard := budget.NewGuard(a.tracker(ctx, "embedding:"+vc.Provider, pc.Budget, domain.ErrEmbeddingQuotaExceeded))

	var models *genai.Models
	if pc.Type == "gemini" {
		m, err := gemini.NewModels(ctx, pc.APIKey, pc.BaseURL)
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		models = m
	}

	build := func(task, instruction string) domain.Embedder {
		var base domain.Embedder
		switch pc.Type {
		case "gemini":
			base = gemini.NewEmbedder(models, gemini.EmbedderConfig{
				Model:      vc.Model,
				TaskType:   task,
				Dimensions: vc.Dimensions,
				Provider:   vc.Provider,
				Logger:     a.logger,
			})
		default:
			base = openaiT.NewEmbedder(&openaiT.Config{
				APIKey:     pc.APIKey,
				BaseURL:    pc.BaseURL,
				Model:      vc.Model,
				Dimensions: vc.Dimensions,
				Provider:   vc.Provider,
				Logger:     a.logger,
			})
		}

		// Cache key is per model; the gemini task type changes the vector, so it joins the model name.
		embedder := base
		if a.kv != nil && !a.cfg.Embedding.CacheOff {
			cacheModel := vc.Model
			if pc.Type == "gemini" {
				cacheModel += ":" + task
			}
			embedder = embcache.New(base, a.kv, cacheModel,
				time.Duration(a.cfg.Embedding.CacheTTLSec)*time.Second, metrics.EmbeddingCacheTotal, a.logger)
		}

		embedder = embeddinguc.NewInstrumentedEmbedder(embedder, vc.Provider, vc.Model, guard, a.logger)

		// Instruction prefix is outermost so the cache key includes it.
		if instruction != "" {
			return domain.NewInstructionEmbedder(embedder, instruction)
		}
		return embedder
	}

	a.queryEmb = build(gemini.TaskRetrievalQuery, vc.QueryInstruction)
	a.docEmb = build(gemini.TaskRetrievalDocument, vc.DocumentInstruction)

	a.logger.Info("Embedders created",
		zap.String("provider", vc.Provider),
		zap.String("type", pc.Type),
		zap.String("model", vc.Model),
		zap.Int("dimensions", vc.Dimensions),
	)
	return nil
}

func (a *app) buildCompleter(ctx context.Context) error {
	gc := a.cfg.Generation
	if gc.Provider == "" {
		return errors.New("generation.provider is required")
	}
	pc := a.cfg.Embedding.Providers[gc.Provider]

	var base domain.Completer
	switch pc.Type {
	case "gemini":
		models, err := gemini.NewModels(ctx, pc.APIKey, pc.BaseURL)
		if err != nil {
			return fmt.Errorf("create gemini client: %w", err)
		}
		base = gemini.NewCompleter(models, gemini.CompleterConfig{
			Model:       gc.Model,
			Temperature: gc.Temperature,
			MaxTokens:   gc.MaxTokens,
			Provider:    gc.Provider,
			Logger:      a.logger,
		})
	default:
		base = openaiT.NewCompleter(&openaiT.Config{
			APIKey:      pc.APIKey,
			BaseURL:     pc.BaseURL,
			Model:       gc.Model,
			Provider:    gc.Provider,
			Temperature: gc.Temperature,
			MaxTokens:   gc.MaxTokens,
			Logger:      a.logger,
		})
	}

	guard := budget.NewGuard(a.tracker(ctx, "generation:"+gc.Provider, gc.Budget, domain.ErrGenerationQuotaExceeded))

	a.completer = generationuc.NewInstrumentedCompleter(base, gc.Provider, gc.Model, guard, a.logger).
		WithTimeout(time.Duration(gc.TimeoutSec) * time.Second)

	a.logger.Info("Completer created",
		zap.String("provider", gc.Provider),
		zap.String("type", pc.Type),
		zap.String("model", gc.Model),
	)
	return nil
}

func (a *app) pipelineOptions() chatuc.Options {
	return chatuc.Options{
		TopK:             a.cfg.Retrieval.TopK,
		CallThreshold:    a.cfg.Retrieval.CallThreshold,
		KeepThreshold:    a.cfg.Retrieval.KeepThreshold,
		ComposeTopN:      a.cfg.Retrieval.ComposeTopN,
		FollowUpMaxWords: a.cfg.Conversation.FollowUpMaxWords,
		MaxTurns:         a.cfg.Conversation.MaxTurns,
		PromptTurns:      a.cfg.Conversation.PromptTurns,
	}
}

func (a *app) pipeline() *chatuc.Pipeline {
	return chatuc.New(a.queryEmb, a.searcher, a.completer, a.pipelineOptions(), a.logger)
}

func (a *app) health() *healthuc.Service {
	var emb, gen healthuc.Checker
	if hc, ok := a.queryEmb.(domain.HealthChecker); ok {
		emb = hc
	}
	if a.completer != nil {
		gen = a.completer
	}
	return healthuc.New(a.pinger, emb, gen, a.logger)
}
