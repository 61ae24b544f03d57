package listbot

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "postgres"
	addrs    []string
	password string
	dsn      string
	table    string

	embedder  Embedder
	completer Completer

	vectorDimensions int
	hnswM            int
	hnswEFConstruct  int

	topK             int
	callThreshold    float64
	keepThreshold    float64
	composeTopN      int
	followUpMaxWords int
	maxTurns         int
	promptTurns      int

	logger     *slog.Logger
	zapLogger  *zap.Logger
	metricsReg prometheus.Registerer
}

// WithValkey connects to a Valkey instance with the valkey-search module.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis connects to a Redis 8+ instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithPostgres stores the corpus in a pgvector table. An empty table uses
// the default name.
func WithPostgres(dsn, table string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "postgres"
		c.dsn = dsn
		c.table = table
	})
}

// WithEmbedder sets the text embedding provider. Required.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithCompleter sets the language model. Without one, Ask fails and only
// Retrieve and Load work.
func WithCompleter(cm Completer) Option {
	return optionFunc(func(c *clientConfig) {
		c.completer = cm
	})
}

// WithVectorDimensions sets the corpus vector size. Defaults to 768.
func WithVectorDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.vectorDimensions = dim
	})
}

// WithHNSW configures HNSW index parameters (M and EF construction).
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithRetrieval overrides the candidate count and the two similarity
// thresholds. Zero values keep the defaults (8, 0.35, 0.4).
func WithRetrieval(topK int, callThreshold, keepThreshold float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = topK
		c.callThreshold = callThreshold
		c.keepThreshold = keepThreshold
	})
}

// WithComposeTopN sets how many documents are rendered into the prompt.
func WithComposeTopN(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.composeTopN = n
	})
}

// WithFollowUpMaxWords sets the word count below which a question is treated
// as a follow-up and embedded together with the previous user message.
// Defaults to 5.
func WithFollowUpMaxWords(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.followUpMaxWords = n
	})
}

// WithHistory sets how many turns a Conversation keeps and how many of
// them reach the prompt. Defaults: 3 and 2.
func WithHistory(maxTurns, promptTurns int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxTurns = maxTurns
		c.promptTurns = promptTurns
	})
}

// WithLogger enables structured logging of SDK operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithZapLogger receives the pipeline's own logs (degraded stages,
// provider retries). Discarded by default.
func WithZapLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.zapLogger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
