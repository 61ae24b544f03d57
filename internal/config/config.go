package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the listbot configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Index        IndexConfig        `yaml:"index"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Generation   GenerationConfig   `yaml:"generation"`
	Retrieval    RetrievalConfig    `yaml:"retrieval"`
	Conversation ConversationConfig `yaml:"conversation"`
	Auth         AuthConfig         `yaml:"auth"`
	CORS         CORSConfig         `yaml:"cors"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// CORSConfig holds cross-origin settings for the chat frontend.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxAgeSec      int      `yaml:"max_age_sec"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	QueryTimeoutSec int `yaml:"query_timeout_sec"`
}

// DatabaseConfig holds document store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis, postgres (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`

	DSN             string `yaml:"dsn"`   // postgres only
	Table           string `yaml:"table"` // postgres only
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_sec"`
}

// IndexConfig holds vector index settings for the redis/valkey corpus.
type IndexConfig struct {
	Algorithm       string `yaml:"algorithm"` // hnsw, flat
	Distance        string `yaml:"distance"`  // cosine, l2, ip
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	IngestBatchSize int    `yaml:"ingest_batch_size"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers   map[string]ProviderConfig   `yaml:"providers"`
	Vectorizers map[string]VectorizerConfig `yaml:"vectorizers"`
	Vectorizer  string                      `yaml:"vectorizer"` // default: first by name
	CacheTTLSec int                         `yaml:"cache_ttl_sec"`
	CacheOff    bool                        `yaml:"cache_disabled"`
}

// GenerationConfig holds language model settings.
type GenerationConfig struct {
	Provider    string       `yaml:"provider"` // key in embedding.providers
	Model       string       `yaml:"model"`
	Temperature float32      `yaml:"temperature"`
	MaxTokens   int          `yaml:"max_tokens"`
	TimeoutSec  int          `yaml:"timeout_sec"`
	Budget      BudgetConfig `yaml:"budget"`
}

// RetrievalConfig holds the similarity search tunables.
type RetrievalConfig struct {
	TopK          int     `yaml:"top_k"`
	CallThreshold float64 `yaml:"call_threshold"`
	KeepThreshold float64 `yaml:"keep_threshold"`
	ComposeTopN   int     `yaml:"compose_top_n"`
}

// ConversationConfig holds the follow-up and history tunables.
type ConversationConfig struct {
	FollowUpMaxWords int `yaml:"followup_max_words"`
	MaxTurns         int `yaml:"max_turns"`
	PromptTurns      int `yaml:"prompt_turns"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// ProviderConfig holds model provider settings.
type ProviderConfig struct {
	Type    string       `yaml:"type"` // openai (default), gemini
	APIKey  string       `yaml:"api_key"`
	BaseURL string       `yaml:"base_url"`
	Budget  BudgetConfig `yaml:"budget"`
}

// VectorizerConfig holds vectorizer settings.
type VectorizerConfig struct {
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
// A .env file in the working directory, if present, is loaded first.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.QueryTimeoutSec <= 0 {
		c.HTTP.QueryTimeoutSec = 45
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.Table == "" {
		c.Database.Table = "list_embeddings"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "hnsw"
	}
	if c.Index.Distance == "" {
		c.Index.Distance = "cosine"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.IngestBatchSize <= 0 {
		c.Index.IngestBatchSize = 100
	}
	if c.Embedding.Vectorizer == "" && len(c.Embedding.Vectorizers) > 0 {
		names := make([]string, 0, len(c.Embedding.Vectorizers))
		for name := range c.Embedding.Vectorizers {
			names = append(names, name)
		}
		sort.Strings(names)
		c.Embedding.Vectorizer = names[0]
	}
	for name, p := range c.Embedding.Providers {
		if p.Type == "" {
			p.Type = "openai"
			c.Embedding.Providers[name] = p
		}
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 8
	}
	if c.Retrieval.CallThreshold <= 0 {
		c.Retrieval.CallThreshold = 0.35
	}
	if c.Retrieval.KeepThreshold <= 0 {
		c.Retrieval.KeepThreshold = 0.4
	}
	if c.Retrieval.ComposeTopN <= 0 {
		c.Retrieval.ComposeTopN = 3
	}
	if c.Conversation.FollowUpMaxWords <= 0 {
		c.Conversation.FollowUpMaxWords = 5
	}
	if c.Conversation.MaxTurns <= 0 {
		c.Conversation.MaxTurns = 3
	}
	if c.Conversation.PromptTurns <= 0 {
		c.Conversation.PromptTurns = 2
	}
	if c.CORS.MaxAgeSec <= 0 {
		c.CORS.MaxAgeSec = 300
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case "valkey", "redis":
		if len(c.Database.Addrs) == 0 {
			return errors.New("database.addrs is required")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be valkey, redis or postgres, got %q", c.Database.Driver)
	}

	switch c.Index.Algorithm {
	case "hnsw", "flat":
	default:
		return fmt.Errorf("index.algorithm must be hnsw or flat, got %q", c.Index.Algorithm)
	}

	switch strings.ToLower(c.Index.Distance) {
	case "cosine":
	case "l2", "ip":
		if c.Database.Driver == "postgres" {
			return fmt.Errorf("index.distance %q is not supported by the postgres driver", c.Index.Distance)
		}
	default:
		return fmt.Errorf("index.distance must be cosine, l2 or ip, got %q", c.Index.Distance)
	}

	for name, p := range c.Embedding.Providers {
		switch p.Type {
		case "openai", "gemini":
		default:
			return fmt.Errorf("embedding.providers.%s.type must be openai or gemini, got %q", name, p.Type)
		}
		if err := validateAction("embedding.providers."+name, p.Budget.Action); err != nil {
			return err
		}
	}

	if len(c.Embedding.Vectorizers) > 0 {
		vc, ok := c.Embedding.Vectorizers[c.Embedding.Vectorizer]
		if !ok {
			return fmt.Errorf("embedding.vectorizer %q is not defined", c.Embedding.Vectorizer)
		}
		if _, ok := c.Embedding.Providers[vc.Provider]; !ok {
			return fmt.Errorf("embedding.vectorizers.%s.provider %q is not defined", c.Embedding.Vectorizer, vc.Provider)
		}
		if c.Database.Driver == "postgres" && vc.Dimensions <= 0 {
			return fmt.Errorf("embedding.vectorizers.%s.dimensions is required for the postgres driver", c.Embedding.Vectorizer)
		}
	}

	if c.Generation.Provider != "" {
		if _, ok := c.Embedding.Providers[c.Generation.Provider]; !ok {
			return fmt.Errorf("generation.provider %q is not defined in embedding.providers", c.Generation.Provider)
		}
		if c.Generation.Model == "" {
			return errors.New("generation.model is required")
		}
	}
	if err := validateAction("generation", c.Generation.Budget.Action); err != nil {
		return err
	}

	if c.Retrieval.KeepThreshold < c.Retrieval.CallThreshold {
		return fmt.Errorf("retrieval.keep_threshold (%v) must not be below call_threshold (%v)",
			c.Retrieval.KeepThreshold, c.Retrieval.CallThreshold)
	}
	if c.Retrieval.KeepThreshold >= 1 {
		return fmt.Errorf("retrieval.keep_threshold must be below 1, got %v", c.Retrieval.KeepThreshold)
	}
	if c.Conversation.PromptTurns > c.Conversation.MaxTurns {
		return fmt.Errorf("conversation.prompt_turns (%d) must not exceed max_turns (%d)",
			c.Conversation.PromptTurns, c.Conversation.MaxTurns)
	}
	return nil
}

// ActiveVectorizer returns the selected vectorizer and its provider.
func (c *Config) ActiveVectorizer() (VectorizerConfig, ProviderConfig) {
	vc := c.Embedding.Vectorizers[c.Embedding.Vectorizer]
	return vc, c.Embedding.Providers[vc.Provider]
}

func validateAction(path, action string) error {
	switch action {
	case "", "warn", "reject":
		return nil
	default:
		return fmt.Errorf("%s.budget.action must be \"warn\" or \"reject\", got %q", path, action)
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
