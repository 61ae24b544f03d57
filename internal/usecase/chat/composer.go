package chat

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
	"github.com/kailas-cloud/listbot/internal/metrics"
)

// EvidenceSource tells where the evidence block of a composition came from.
type EvidenceSource string

const (
	// EvidenceRetrieved means documents from the current retrieval.
	EvidenceRetrieved EvidenceSource = "retrieved"
	// EvidenceCached means the rendering cached from a previous query.
	EvidenceCached EvidenceSource = "cached"
	// EvidenceNone means nothing was available and the notice was used.
	EvidenceNone EvidenceSource = "none"
)

// Composition is the output of the compose stage.
type Composition struct {
	Text   string
	Cache  string // last retrieved content to carry into the next state
	Source EvidenceSource
}

// Composer renders the prompt context. It is pure apart from logging.
type Composer struct {
	opts   Options
	logger *zap.Logger
}

// NewComposer creates a composer.
func NewComposer(opts Options, logger *zap.Logger) *Composer {
	return &Composer{opts: opts.withDefaults(), logger: logger}
}

// Compose assembles recent history, evidence and question in that order.
// The evidence cache is taken from state. If rendering panics, the
// composition collapses to the bare question and the cache is carried unchanged.
func (c *Composer) Compose(
	state conversation.State, docs []retrieval.Document, question string,
) (out Composition) {
	cache := state.LastRetrievedContent()
	defer func() {
		if r := recover(); r != nil {
			metrics.PipelineDegradedTotal.WithLabelValues(stageCompose).Inc()
			c.logger.Warn("Context composition failed, using bare question",
				zap.String("stage", stageCompose),
				zap.Any("panic", r),
			)
			out = Composition{Text: question, Cache: cache, Source: EvidenceNone}
		}
	}()

	return c.compose(state.Recent(c.opts.PromptTurns), docs, cache, question)
}

func (c *Composer) compose(
	recent []conversation.Turn, docs []retrieval.Document, cache, question string,
) Composition {
	var sections []string

	if len(recent) > 0 {
		sections = append(sections, renderHistory(recent))
	}

	out := Composition{Cache: cache, Source: EvidenceNone}
	switch {
	case len(docs) > 0:
		top := docs
		if len(top) > c.opts.ComposeTopN {
			top = top[:c.opts.ComposeTopN]
		}
		out.Cache = RenderEvidence(top)
		out.Source = EvidenceRetrieved
		sections = append(sections, headerEvidence+"\n"+out.Cache)
	case cache != "":
		out.Source = EvidenceCached
		sections = append(sections, headerCachedEvidence+"\n"+cache)
	default:
		sections = append(sections, NoInformationNotice)
	}

	sections = append(sections, headerQuestion+question)
	out.Text = strings.Join(sections, "\n\n")
	return out
}

// RenderEvidence formats documents as numbered entries with their similarity.
func RenderEvidence(docs []retrieval.Document) string {
	var b strings.Builder
	for i, d := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. [%s #%s] (similarity %s)\n%s",
			i+1, d.EntityType(), d.EntityID(),
			strconv.FormatFloat(d.Similarity(), 'f', 2, 64),
			strings.TrimSpace(d.Content()),
		)
	}
	return b.String()
}

func renderHistory(turns []conversation.Turn) string {
	var b strings.Builder
	b.WriteString(headerHistory)
	for _, t := range turns {
		b.WriteString("\nUser: ")
		b.WriteString(t.User)
		b.WriteString("\nAssistant: ")
		b.WriteString(t.Assistant)
	}
	return b.String()
}
