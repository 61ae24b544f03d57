package chat

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
	"github.com/kailas-cloud/listbot/internal/metrics"
)

// Stage names, used as metric labels and log fields.
const (
	stageRewriteEmbed = "rewrite_embed"
	stageRetrieve     = "retrieve"
	stageCompose      = "compose"
	stageGenerate     = "generate"
)

// Context is the value threaded through the stages. Each stage returns a
// copy extended with its own output; nothing is modified in place.
type Context struct {
	question string
	state    conversation.State

	rewritten   string
	vector      []float32
	docs        []retrieval.Document
	composition Composition
	answer      string
	generated   bool
}

func newContext(q conversation.Query, maxTurns int) Context {
	in := q.State()
	return Context{
		question: q.Question(),
		state:    conversation.NewState(in.History(), in.LastRetrievedContent(), maxTurns),
	}
}

// Question returns the verbatim question.
func (c Context) Question() string { return c.question }

// RewrittenQuery returns the text that was embedded.
func (c Context) RewrittenQuery() string { return c.rewritten }

// Vector returns the query embedding, empty when embedding failed.
func (c Context) Vector() []float32 { return c.vector }

// Documents returns the kept documents, most similar first.
func (c Context) Documents() []retrieval.Document { return c.docs }

// Composition returns the composed prompt context.
func (c Context) Composition() Composition { return c.composition }

// Answer returns the final answer text.
func (c Context) Answer() string { return c.answer }

func (c Context) withEmbedding(rewritten string, vector []float32) Context {
	c.rewritten = rewritten
	c.vector = vector
	return c
}

func (c Context) withDocuments(docs []retrieval.Document) Context {
	c.docs = docs
	return c
}

func (c Context) withComposition(comp Composition) Context {
	c.composition = comp
	return c
}

func (c Context) withAnswer(answer string, generated bool) Context {
	c.answer = answer
	c.generated = generated
	return c
}

// Result is what the request-handling layer returns to the caller.
type Result struct {
	Answer         string
	RetrievedCount int
	RewrittenQuery string
	Evidence       EvidenceSource
	Generated      bool // false when Answer is the apology
}

// Inspection is the output of the first two stages, without generation.
type Inspection struct {
	RewrittenQuery string
	Documents      []retrieval.Document
}

// Pipeline runs REWRITE_EMBED, RETRIEVE, COMPOSE and GENERATE in order.
// It holds no per-conversation state and is safe for concurrent use.
type Pipeline struct {
	embedder  Embedder
	retriever *Retriever
	composer  *Composer
	generator *Generator
	opts      Options
	logger    *zap.Logger
}

// New creates a pipeline from its collaborators.
func New(e Embedder, s Searcher, c Completer, opts Options, logger *zap.Logger) *Pipeline {
	opts = opts.withDefaults()
	return &Pipeline{
		embedder:  e,
		retriever: NewRetriever(s, opts, logger),
		composer:  NewComposer(opts, logger),
		generator: NewGenerator(c, logger),
		opts:      opts,
		logger:    logger,
	}
}

// Options returns the effective tunables.
func (p *Pipeline) Options() Options { return p.opts }

// Answer runs the whole pipeline. It always returns an answer and the
// updated conversation state; stage failures only degrade their output.
func (p *Pipeline) Answer(ctx context.Context, q conversation.Query) (Result, conversation.State) {
	start := time.Now()

	pc := newContext(q, p.opts.MaxTurns)
	pc = p.timed(stageRewriteEmbed, func() Context { return p.rewriteEmbed(ctx, pc) })
	pc = p.timed(stageRetrieve, func() Context { return p.retrieve(ctx, pc) })
	pc = p.timed(stageCompose, func() Context { return p.compose(pc) })
	pc = p.timed(stageGenerate, func() Context { return p.generate(ctx, pc) })

	next := pc.state.Append(
		conversation.Turn{User: pc.question, Assistant: pc.answer},
		pc.composition.Cache,
		p.opts.MaxTurns,
	)

	res := Result{
		Answer:         pc.answer,
		RetrievedCount: len(pc.docs),
		RewrittenQuery: pc.rewritten,
		Evidence:       pc.composition.Source,
		Generated:      pc.generated,
	}

	metrics.PipelineAnswersTotal.WithLabelValues(string(res.Evidence)).Inc()
	metrics.PipelineRetrievedDocuments.Observe(float64(res.RetrievedCount))

	p.logger.Debug("Pipeline completed",
		zap.String("rewritten_query", res.RewrittenQuery),
		zap.Int("retrieved_count", res.RetrievedCount),
		zap.String("evidence", string(res.Evidence)),
		zap.Bool("generated", res.Generated),
		zap.Int("answer_len", len(res.Answer)),
		zap.Int("history_len", next.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	return res, next
}

// Inspect runs only the rewrite and retrieval stages.
func (p *Pipeline) Inspect(ctx context.Context, q conversation.Query) Inspection {
	pc := newContext(q, p.opts.MaxTurns)
	pc = p.timed(stageRewriteEmbed, func() Context { return p.rewriteEmbed(ctx, pc) })
	pc = p.timed(stageRetrieve, func() Context { return p.retrieve(ctx, pc) })
	return Inspection{RewrittenQuery: pc.rewritten, Documents: pc.docs}
}

func (p *Pipeline) timed(stage string, run func() Context) Context {
	start := time.Now()
	out := run()
	metrics.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	return out
}

func (p *Pipeline) rewriteEmbed(ctx context.Context, pc Context) Context {
	rewritten := RewriteQuery(pc.question, pc.state, p.opts.FollowUpMaxWords)

	res, err := p.embedder.Embed(ctx, rewritten)
	if err != nil {
		metrics.PipelineDegradedTotal.WithLabelValues(stageRewriteEmbed).Inc()
		p.logger.Warn("Query embedding failed, skipping retrieval",
			zap.String("stage", stageRewriteEmbed),
			zap.Error(err),
		)
		return pc.withEmbedding(rewritten, nil)
	}

	domain.UsageFromContext(ctx).AddEmbeddingTokens(res.TotalTokens)
	return pc.withEmbedding(rewritten, res.Embedding)
}

func (p *Pipeline) retrieve(ctx context.Context, pc Context) Context {
	return pc.withDocuments(p.retriever.Retrieve(ctx, pc.vector))
}

func (p *Pipeline) compose(pc Context) Context {
	return pc.withComposition(p.composer.Compose(pc.state, pc.docs, pc.question))
}

func (p *Pipeline) generate(ctx context.Context, pc Context) Context {
	return pc.withAnswer(p.generator.Generate(ctx, pc.composition.Text))
}
