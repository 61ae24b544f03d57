package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 8080},
		Database: DatabaseConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{
			Providers: map[string]ProviderConfig{
				"openai": {APIKey: "test-key"},
			},
			Vectorizers: map[string]VectorizerConfig{
				"small": {Provider: "openai", Model: "text-embedding-3-small", Dimensions: 1536},
			},
		},
		Generation: GenerationConfig{Provider: "openai", Model: "gpt-4o-mini"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Providers["openai"] = ProviderConfig{
		Type:   "openai",
		APIKey: "test-key",
		Budget: BudgetConfig{DailyTokenLimit: 1000000, Action: "invalid_action"},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid budget action")
	}

	expected := `embedding.providers.openai.budget.action must be "warn" or "reject", got "invalid_action"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_InvalidGenerationBudgetAction(t *testing.T) {
	cfg := validConfig()
	cfg.Generation.Budget.Action = "block"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid generation budget action")
	}
}

func TestValidate_ValidBudgetActions(t *testing.T) {
	for _, action := range []string{"", "warn", "reject"} {
		t.Run("action="+action, func(t *testing.T) {
			cfg := validConfig()
			cfg.Generation.Budget.Action = action
			if err := cfg.Validate(); err != nil {
				t.Fatalf("unexpected error for valid action %q: %v", action, err)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"addrs", func(c *Config) { c.Database.Addrs = nil }, "database.addrs"},
		{"driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"postgres dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"algorithm", func(c *Config) { c.Index.Algorithm = "ivf" }, "index.algorithm"},
		{"distance", func(c *Config) { c.Index.Distance = "manhattan" }, "index.distance"},
		{"provider type", func(c *Config) {
			c.Embedding.Providers["openai"] = ProviderConfig{Type: "cohere"}
		}, "type must be openai or gemini"},
		{"unknown vectorizer", func(c *Config) { c.Embedding.Vectorizer = "large" }, "embedding.vectorizer"},
		{"vectorizer provider", func(c *Config) {
			c.Embedding.Vectorizers["small"] = VectorizerConfig{Provider: "nebius"}
		}, "provider \"nebius\" is not defined"},
		{"generation provider", func(c *Config) { c.Generation.Provider = "anthropic" }, "generation.provider"},
		{"generation model", func(c *Config) { c.Generation.Model = "" }, "generation.model"},
		{"thresholds order", func(c *Config) { c.Retrieval.KeepThreshold = 0.3 }, "keep_threshold"},
		{"keep threshold range", func(c *Config) { c.Retrieval.KeepThreshold = 1 }, "below 1"},
		{"prompt turns", func(c *Config) { c.Conversation.PromptTurns = 4 }, "prompt_turns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestValidate_PostgresNeedsDimensions(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/listbot"}
	cfg.Embedding.Vectorizers["small"] = VectorizerConfig{Provider: "openai", Model: "m"}

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "dimensions") {
		t.Fatalf("expected dimensions error, got %v", err)
	}
}

func TestValidate_PostgresIsCosineOnly(t *testing.T) {
	cfg := validConfig()
	cfg.Database = DatabaseConfig{Driver: "postgres", DSN: "postgres://localhost/listbot"}
	cfg.Index.Distance = "l2"

	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected postgres distance error, got %v", err)
	}

	cfg.Database = DatabaseConfig{Driver: "valkey", Addrs: []string{"localhost:6379"}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("l2 must be accepted on valkey, got %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected driver valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Index.HNSWM != 16 || cfg.Index.HNSWEFConstruct != 200 {
		t.Errorf("unexpected HNSW defaults %d/%d", cfg.Index.HNSWM, cfg.Index.HNSWEFConstruct)
	}
	if cfg.Retrieval.TopK != 8 || cfg.Retrieval.CallThreshold != 0.35 ||
		cfg.Retrieval.KeepThreshold != 0.4 || cfg.Retrieval.ComposeTopN != 3 {
		t.Errorf("unexpected retrieval defaults %+v", cfg.Retrieval)
	}
	if cfg.Conversation.FollowUpMaxWords != 5 || cfg.Conversation.MaxTurns != 3 || cfg.Conversation.PromptTurns != 2 {
		t.Errorf("unexpected conversation defaults %+v", cfg.Conversation)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 90, ShutdownSec: 5},
		Retrieval: RetrievalConfig{TopK: 20, CallThreshold: 0.2, KeepThreshold: 0.5, ComposeTopN: 5},
		Embedding: EmbeddingConfig{
			Vectorizers: map[string]VectorizerConfig{"b": {}, "a": {}},
			Providers:   map[string]ProviderConfig{"g": {Type: "gemini"}},
		},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 || cfg.HTTP.WriteTimeoutSec != 90 || cfg.HTTP.ShutdownSec != 5 {
		t.Errorf("http timeouts overridden: %+v", cfg.HTTP)
	}
	if cfg.Retrieval.TopK != 20 || cfg.Retrieval.KeepThreshold != 0.5 {
		t.Errorf("retrieval overridden: %+v", cfg.Retrieval)
	}
	if cfg.Embedding.Vectorizer != "a" {
		t.Errorf("expected first vectorizer by name, got %q", cfg.Embedding.Vectorizer)
	}
	if cfg.Embedding.Providers["g"].Type != "gemini" {
		t.Error("provider type overridden")
	}
}

func TestParse_ExpandsEnvVars(t *testing.T) {
	t.Setenv("LISTBOT_TEST_KEY", "sk-123")

	cfg, err := Parse([]byte(`
http:
  port: ${LISTBOT_TEST_PORT:-9090}
database:
  addrs: ["localhost:6379"]
embedding:
  providers:
    openai:
      api_key: ${LISTBOT_TEST_KEY}
  vectorizers:
    small:
      provider: openai
      model: text-embedding-3-small
generation:
  provider: openai
  model: gpt-4o-mini
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("expected default port 9090, got %d", cfg.HTTP.Port)
	}
	vc, pc := cfg.ActiveVectorizer()
	if vc.Model != "text-embedding-3-small" || pc.APIKey != "sk-123" {
		t.Errorf("unexpected active vectorizer %+v / %+v", vc, pc)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("http: [")); err == nil {
		t.Fatal("expected parse error")
	}
}
