package listbot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/listbot/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/listbot/internal/usecase/ingest"
)

func TestNew_NoEmbedder(t *testing.T) {
	_, err := New(context.Background(), WithValkey("localhost:6379", ""))
	if err == nil {
		t.Fatal("expected error when no embedder provided")
	}
}

func TestNew_NoDatabase(t *testing.T) {
	emb := &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
		return EmbeddingResult{}, nil
	}}
	_, err := New(context.Background(), WithEmbedder(emb))
	if err == nil {
		t.Fatal("expected error when no database configured")
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown", addrs: []string{"localhost:1234"}}
	_, _, _, err := openStore(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestEmbedderAdapter(t *testing.T) {
	called := false
	mock := &mockEmbedder{
		fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
			called = true
			return EmbeddingResult{Embedding: []float32{1, 2, 3}, PromptTokens: 5, TotalTokens: 10}, nil
		},
	}

	result, err := adaptEmbedder(mock).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("inner embedder was not called")
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding len = %d, want 3", len(result.Embedding))
	}
	if result.TotalTokens != 10 {
		t.Errorf("total tokens = %d, want 10", result.TotalTokens)
	}
}

func TestEmbedderAdapter_Batch(t *testing.T) {
	mock := &mockBatchEmbedder{
		batchFn: func(_ context.Context, texts []string) (BatchEmbeddingResult, error) {
			out := BatchEmbeddingResult{TotalTokens: len(texts)}
			for range texts {
				out.Embeddings = append(out.Embeddings, unitVec())
			}
			return out, nil
		},
	}

	adapted := adaptEmbedder(mock)
	be, ok := adapted.(*batchEmbedderAdapter)
	if !ok {
		t.Fatalf("adapter type = %T, want *batchEmbedderAdapter", adapted)
	}
	res, err := be.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embeddings) != 2 || res.TotalTokens != 2 {
		t.Errorf("got %d embeddings, %d tokens", len(res.Embeddings), res.TotalTokens)
	}
}

func TestCompleterAdapter_Error(t *testing.T) {
	mock := &mockCompleter{fn: func(context.Context, string, string) (Completion, error) {
		return Completion{}, errors.New("model down")
	}}

	_, err := (&completerAdapter{inner: mock}).Complete(context.Background(), "sys", "user")
	if err == nil {
		t.Fatal("expected error from adapter")
	}
}

func TestAsk_ThreadsConversation(t *testing.T) {
	var gotHistory []conversation.Turn
	p := &mockPipeline{
		answerFn: func(_ context.Context, q conversation.Query) (chatuc.Result, conversation.State) {
			gotHistory = q.State().History()
			next := q.State().Append(conversation.Turn{User: q.Question(), Assistant: "Anna is 91."}, "1. [person #7]", 3)
			return chatuc.Result{Answer: "Anna is 91.", RetrievedCount: 1, Evidence: chatuc.EvidenceRetrieved, Generated: true}, next
		},
	}
	c := testClient(p, nil, nil)

	conv := Conversation{History: []Turn{{User: "hi", Assistant: "hello"}}}
	ans, next, err := c.Ask(context.Background(), "who is the oldest?", conv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gotHistory) != 1 || gotHistory[0].User != "hi" {
		t.Errorf("pipeline history = %+v", gotHistory)
	}
	if ans.Text != "Anna is 91." || ans.Evidence != "retrieved" || !ans.Generated {
		t.Errorf("answer = %+v", ans)
	}
	if len(next.History) != 2 || next.History[1].Assistant != "Anna is 91." {
		t.Errorf("next history = %+v", next.History)
	}
	if next.LastRetrievedContent != "1. [person #7]" {
		t.Errorf("last retrieved = %q", next.LastRetrievedContent)
	}
	if len(conv.History) != 1 {
		t.Error("caller conversation was modified")
	}
}

func TestAsk_EmptyQuestion(t *testing.T) {
	c := testClient(&mockPipeline{}, nil, nil)
	_, _, err := c.Ask(context.Background(), "   ", Conversation{})
	if !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestAsk_NoCompleter(t *testing.T) {
	c := testClient(&mockPipeline{}, nil, nil)
	c.canAnswer = false
	_, _, err := c.Ask(context.Background(), "who?", Conversation{})
	if !errors.Is(err, ErrCompleterNotConfigured) {
		t.Fatalf("err = %v, want ErrCompleterNotConfigured", err)
	}
}

func TestRetrieve(t *testing.T) {
	p := &mockPipeline{
		inspectFn: func(context.Context, conversation.Query) chatuc.Inspection {
			return chatuc.Inspection{Documents: []retrieval.Document{
				retrieval.NewDocument("person", "7", "Anna, 91", 0.8),
			}}
		},
	}
	docs, err := testClient(p, nil, nil).Retrieve(context.Background(), "oldest", Conversation{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].EntityID != "7" || docs[0].Similarity != 0.8 {
		t.Errorf("docs = %+v", docs)
	}
}

func TestLoad(t *testing.T) {
	l := &mockLoader{fn: func(_ context.Context, r io.Reader) (ingestuc.Report, error) {
		b, _ := io.ReadAll(r)
		return ingestuc.Report{Loaded: strings.Count(string(b), "\n"), Skipped: 1}, nil
	}}
	rep, err := testClient(nil, l, nil).Load(context.Background(), strings.NewReader("a\nb\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Loaded != 2 || rep.Skipped != 1 {
		t.Errorf("report = %+v", rep)
	}
}

func TestLoad_Error(t *testing.T) {
	l := &mockLoader{fn: func(context.Context, io.Reader) (ingestuc.Report, error) {
		return ingestuc.Report{}, errors.New("store down")
	}}
	if _, err := testClient(nil, l, nil).Load(context.Background(), strings.NewReader("")); err == nil {
		t.Fatal("expected error")
	}
}

func TestHealth(t *testing.T) {
	h := &mockHealth{report: healthuc.Report{
		Status: healthuc.Healthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckOK},
	}}
	c := testClient(nil, nil, h)
	c.store = &mockStore{count: 42}

	got := c.Health(context.Background())
	if got.Status != "ok" || got.Checks["database"] != "ok" || got.Documents != 42 {
		t.Errorf("health = %+v", got)
	}

	h.report = healthuc.Report{
		Status: healthuc.Unhealthy,
		Checks: map[string]healthuc.CheckResult{healthuc.ComponentDatabase: healthuc.CheckError},
	}
	if got := c.Health(context.Background()); got.Documents != -1 {
		t.Errorf("documents = %d for an unhealthy store, want -1", got.Documents)
	}
}

func TestWireClient_EndToEnd(t *testing.T) {
	store := &mockStore{
		searchFn: func(context.Context, []float32, float64, int) ([]retrieval.Document, error) {
			return []retrieval.Document{retrieval.NewDocument("person", "7", "Anna, 91", 0.9)}, nil
		},
	}
	cfg := &clientConfig{
		embedder: &mockEmbedder{fn: func(context.Context, string) (EmbeddingResult, error) {
			return EmbeddingResult{Embedding: unitVec(), TotalTokens: 4}, nil
		}},
		completer: &mockCompleter{fn: func(_ context.Context, _, user string) (Completion, error) {
			if !strings.Contains(user, "Anna, 91") {
				t.Errorf("prompt is missing evidence: %q", user)
			}
			return Completion{Text: "Anna is the oldest.", PromptTokens: 30, CompletionTokens: 5}, nil
		}},
	}
	obs, err := newObserver(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.zapLogger = zap.NewNop()
	c := wireClient(store, nil, cfg, obs)

	ans, conv, err := c.Ask(context.Background(), "who is the oldest?", Conversation{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Text != "Anna is the oldest." || ans.RetrievedCount != 1 {
		t.Errorf("answer = %+v", ans)
	}
	if ans.EmbeddingTokens != 4 || ans.CompletionTokens != 35 {
		t.Errorf("tokens = %d/%d, want 4/35", ans.EmbeddingTokens, ans.CompletionTokens)
	}
	if len(conv.History) != 1 || conv.LastRetrievedContent == "" {
		t.Errorf("conversation = %+v", conv)
	}
}

func TestWireClient_FollowUpThreshold(t *testing.T) {
	var embedded []string
	cfg := &clientConfig{
		embedder: &mockEmbedder{fn: func(_ context.Context, text string) (EmbeddingResult, error) {
			embedded = append(embedded, text)
			return EmbeddingResult{Embedding: unitVec()}, nil
		}},
		zapLogger: zap.NewNop(),
	}
	WithFollowUpMaxWords(2).apply(cfg)
	obs, err := newObserver(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	c := wireClient(&mockStore{}, nil, cfg, obs)

	conv := Conversation{History: []Turn{{User: "Who is Dr. Rohan?", Assistant: "A prescriber."}}}
	if _, err := c.Retrieve(context.Background(), "his phone", conv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Retrieve(context.Background(), "why", conv); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(embedded) != 2 || embedded[0] != "his phone" || embedded[1] != "Who is Dr. Rohan? why" {
		t.Errorf("embedded = %q", embedded)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithValkey("localhost:6379", "secret").apply(cfg)
	if cfg.driver != "valkey" || cfg.addrs[0] != "localhost:6379" || cfg.password != "secret" {
		t.Errorf("valkey cfg = %+v", cfg)
	}

	cfg2 := &clientConfig{}
	WithPostgres("postgres://localhost/listbot", "corpus").apply(cfg2)
	if cfg2.driver != "postgres" || cfg2.table != "corpus" {
		t.Errorf("postgres cfg = %+v", cfg2)
	}

	WithRetrieval(10, 0.3, 0.5).apply(cfg2)
	if cfg2.topK != 10 || cfg2.callThreshold != 0.3 || cfg2.keepThreshold != 0.5 {
		t.Errorf("retrieval = (%d, %v, %v)", cfg2.topK, cfg2.callThreshold, cfg2.keepThreshold)
	}

	WithFollowUpMaxWords(3).apply(cfg2)
	if cfg2.followUpMaxWords != 3 {
		t.Errorf("follow-up max words = %d, want 3", cfg2.followUpMaxWords)
	}

	WithHistory(5, 3).apply(cfg2)
	if cfg2.maxTurns != 5 || cfg2.promptTurns != 3 {
		t.Errorf("history = (%d, %d), want (5, 3)", cfg2.maxTurns, cfg2.promptTurns)
	}

	logger := slog.Default()
	WithLogger(logger).apply(cfg2)
	if cfg2.logger != logger {
		t.Error("expected logger to be set")
	}
}

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c := testClient(nil, nil, nil)
	c.obs = obs

	_ = c.Ping(context.Background())

	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	// Only the call counter and histogram have children after a Ping.
	if len(families) != 2 {
		t.Errorf("metric families = %d, want 2", len(families))
	}

	// A second observer on the same registry reuses the collectors.
	if _, err := newObserver(nil, reg); err != nil {
		t.Errorf("re-register: %v", err)
	}
}

func TestObserver_Nil(t *testing.T) {
	var o *observer
	o.begin("noop")(nil)
	o.answered(Answer{Evidence: "none"})
}
