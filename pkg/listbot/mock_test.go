package listbot

import (
	"context"
	"io"

	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/listbot/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/listbot/internal/usecase/ingest"
)

// --- public provider mocks ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type mockCompleter struct {
	fn func(ctx context.Context, system, user string) (Completion, error)
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string) (Completion, error) {
	return m.fn(ctx, system, user)
}

// --- corpus store mock ---

type mockStore struct {
	searchFn func(ctx context.Context, vector []float32, threshold float64, limit int) ([]retrieval.Document, error)
	upserted []retrieval.CorpusDocument
	deleted  []string
	pingErr  error
	count    int
}

func (m *mockStore) Search(
	ctx context.Context, vector []float32, threshold float64, limit int,
) ([]retrieval.Document, error) {
	return m.searchFn(ctx, vector, threshold, limit)
}

func (m *mockStore) Upsert(_ context.Context, docs []retrieval.CorpusDocument) error {
	m.upserted = append(m.upserted, docs...)
	return nil
}

func (m *mockStore) Delete(_ context.Context, entityType, entityID string) error {
	m.deleted = append(m.deleted, entityType+":"+entityID)
	return nil
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) Count(context.Context) (int, error) { return m.count, nil }

// --- use case mocks ---

type mockPipeline struct {
	answerFn  func(ctx context.Context, q conversation.Query) (chatuc.Result, conversation.State)
	inspectFn func(ctx context.Context, q conversation.Query) chatuc.Inspection
}

func (m *mockPipeline) Answer(ctx context.Context, q conversation.Query) (chatuc.Result, conversation.State) {
	return m.answerFn(ctx, q)
}

func (m *mockPipeline) Inspect(ctx context.Context, q conversation.Query) chatuc.Inspection {
	return m.inspectFn(ctx, q)
}

type mockLoader struct {
	fn func(ctx context.Context, r io.Reader) (ingestuc.Report, error)
}

func (m *mockLoader) Load(ctx context.Context, r io.Reader) (ingestuc.Report, error) {
	return m.fn(ctx, r)
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

// --- helpers ---

func testClient(p pipelineUseCase, l loaderUseCase, h healthUseCase) *Client {
	return &Client{
		store:     &mockStore{},
		pipeline:  p,
		loader:    l,
		healthSvc: h,
		maxTurns:  3,
		canAnswer: true,
	}
}

func unitVec() []float32 { return []float32{1, 0, 0} }
