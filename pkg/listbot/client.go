package listbot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/db"
	dbPostgres "github.com/kailas-cloud/listbot/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/listbot/internal/db/redis"
	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/repository/corpus"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/listbot/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/listbot/internal/usecase/ingest"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces, substituted in tests.
type pipelineUseCase interface {
	Answer(ctx context.Context, q conversation.Query) (chatuc.Result, conversation.State)
	Inspect(ctx context.Context, q conversation.Query) chatuc.Inspection
}

type loaderUseCase interface {
	Load(ctx context.Context, r io.Reader) (ingestuc.Report, error)
}

type corpusStore interface {
	chatuc.Searcher
	ingestuc.Sink
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}

// Client is the listbot SDK entry point. It is safe for concurrent use.
type Client struct {
	store     corpusStore
	closeFn   func()
	pipeline  pipelineUseCase
	loader    loaderUseCase
	healthSvc healthUseCase
	maxTurns  int
	canAnswer bool
	obs       *observer
}

// New creates a Client and connects to the document store.
// The provided context is used for the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: domain.DefaultVectorConfig().Dimensions,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("listbot: embedder required (use WithEmbedder)")
	}
	if cfg.zapLogger == nil {
		cfg.zapLogger = zap.NewNop()
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, prepare, closeFn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	c := wireClient(store, prepare, cfg, obs)
	c.closeFn = closeFn
	return c, nil
}

func openStore(ctx context.Context, cfg *clientConfig) (corpusStore, func(context.Context) error, func(), error) {
	switch cfg.driver {
	case "valkey", "redis":
		if len(cfg.addrs) == 0 {
			return nil, nil, nil, errors.New("listbot: database address required")
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
			Flavor:   dbRedis.Flavor(cfg.driver),
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("listbot: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("listbot: database not ready: %w", err)
		}
		repo := corpus.New(s, corpus.IndexConfig{
			Dimensions:  cfg.vectorDimensions,
			Distance:    db.DistanceCosine,
			Algorithm:   db.VectorHNSW,
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		}, cfg.zapLogger)
		return &redisCorpus{Repo: repo, store: s}, repo.EnsureIndex, s.Close, nil

	case "postgres":
		s, err := dbPostgres.Open(ctx, dbPostgres.Config{
			DSN:        cfg.dsn,
			Table:      cfg.table,
			Dimensions: cfg.vectorDimensions,
		}, cfg.zapLogger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("listbot: open postgres: %w", err)
		}
		return s, s.EnsureSchema, s.Close, nil

	case "":
		return nil, nil, nil, errors.New("listbot: database required (use WithValkey, WithRedis or WithPostgres)")
	default:
		return nil, nil, nil, fmt.Errorf("listbot: unknown driver %q", cfg.driver)
	}
}

// redisCorpus adds the connection probe to the corpus repository.
type redisCorpus struct {
	*corpus.Repo
	store *dbRedis.Store
}

func (r *redisCorpus) Ping(ctx context.Context) error {
	return r.store.Ping(ctx) //nolint:wrapcheck // already wrapped by the store
}

func wireClient(store corpusStore, prepare func(context.Context) error, cfg *clientConfig, obs *observer) *Client {
	embedder := adaptEmbedder(cfg.embedder)

	var completer domain.Completer = noopCompleter{}
	if cfg.completer != nil {
		completer = &completerAdapter{inner: cfg.completer}
	}

	opts := chatuc.Options{
		TopK:             cfg.topK,
		CallThreshold:    cfg.callThreshold,
		KeepThreshold:    cfg.keepThreshold,
		ComposeTopN:      cfg.composeTopN,
		FollowUpMaxWords: cfg.followUpMaxWords,
		MaxTurns:         cfg.maxTurns,
		PromptTurns:      cfg.promptTurns,
	}
	pipeline := chatuc.New(embedder, store, completer, opts, cfg.zapLogger)

	return &Client{
		store:     store,
		pipeline:  pipeline,
		loader:    ingestuc.New(store, embedder, prepare, 0, cfg.zapLogger),
		healthSvc: healthuc.New(store, nil, nil, cfg.zapLogger),
		maxTurns:  pipeline.Options().MaxTurns,
		canAnswer: cfg.completer != nil,
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Ping checks document store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	done := c.obs.begin("ping")
	defer func() { done(err) }()

	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Ask answers question in the context of conv and returns the updated
// conversation. Provider or store failures never surface as errors: they
// degrade the answer, down to the apology message.
func (c *Client) Ask(ctx context.Context, question string, conv Conversation) (ans Answer, next Conversation, err error) {
	done := c.obs.begin("ask")
	defer func() { done(err) }()

	if strings.TrimSpace(question) == "" {
		return Answer{}, conv, ErrEmptyQuestion
	}
	if !c.canAnswer {
		return Answer{}, conv, ErrCompleterNotConfigured
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	res, state := c.pipeline.Answer(ctx, conversation.NewQuery(question, conv.toState(c.maxTurns)))

	ans = answerFromResult(res)
	ans.EmbeddingTokens, _ = usage.Embedding()
	ans.CompletionTokens, _ = usage.Completion()
	c.obs.answered(ans)
	return ans, conversationFromState(state), nil
}

// Retrieve returns the documents Ask would ground its answer on, without
// calling the language model.
func (c *Client) Retrieve(ctx context.Context, question string, conv Conversation) (docs []Document, err error) {
	done := c.obs.begin("retrieve")
	defer func() { done(err) }()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	in := c.pipeline.Inspect(ctx, conversation.NewQuery(question, conv.toState(c.maxTurns)))
	return documentsFrom(in.Documents), nil
}

// Load indexes a JSONL corpus export (one row per line with entity_type,
// entity_id, content and an optional embedding).
func (c *Client) Load(ctx context.Context, r io.Reader) (rep LoadReport, err error) {
	done := c.obs.begin("load")
	defer func() { done(err) }()

	res, err := c.loader.Load(ctx, r)
	if err != nil {
		return LoadReport{}, fmt.Errorf("load: %w", err)
	}
	return LoadReport(res), nil
}

// Count returns the number of indexed corpus rows.
func (c *Client) Count(ctx context.Context) (n int, err error) {
	done := c.obs.begin("count")
	defer func() { done(err) }()

	n, err = c.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// noopCompleter stands in when no completer is configured. Ask checks
// canAnswer first, so it is never called from the public API.
type noopCompleter struct{}

func (noopCompleter) Complete(context.Context, string, string) (domain.CompletionResult, error) {
	return domain.CompletionResult{}, ErrCompleterNotConfigured
}
