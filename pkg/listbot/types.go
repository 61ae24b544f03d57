package listbot

import (
	"github.com/kailas-cloud/listbot/internal/domain/conversation"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
	chatuc "github.com/kailas-cloud/listbot/internal/usecase/chat"
)

// Turn is one completed question/answer exchange.
type Turn struct {
	User      string
	Assistant string
}

// Conversation is the memory the caller threads through Ask. The zero
// value starts a new conversation.
type Conversation struct {
	History              []Turn
	LastRetrievedContent string
}

// Answer is the outcome of one Ask.
type Answer struct {
	Text             string
	RetrievedCount   int
	RewrittenQuery   string
	Evidence         string // retrieved, cached or none
	Generated        bool   // false when Text is the apology
	EmbeddingTokens  int
	CompletionTokens int
}

// Document is a retrieved corpus hit.
type Document struct {
	EntityType string
	EntityID   string
	Content    string
	Similarity float64
}

// LoadReport summarizes a corpus load. Deleted counts tombstone rows.
type LoadReport struct {
	Loaded   int
	Deleted  int
	Skipped  int
	Embedded int
	Tokens   int
}

func (c Conversation) toState(maxTurns int) conversation.State {
	turns := make([]conversation.Turn, len(c.History))
	for i, t := range c.History {
		turns[i] = conversation.Turn{User: t.User, Assistant: t.Assistant}
	}
	return conversation.NewState(turns, c.LastRetrievedContent, maxTurns)
}

func conversationFromState(s conversation.State) Conversation {
	history := s.History()
	out := Conversation{
		History:              make([]Turn, len(history)),
		LastRetrievedContent: s.LastRetrievedContent(),
	}
	for i, t := range history {
		out.History[i] = Turn{User: t.User, Assistant: t.Assistant}
	}
	return out
}

func answerFromResult(r chatuc.Result) Answer {
	return Answer{
		Text:           r.Answer,
		RetrievedCount: r.RetrievedCount,
		RewrittenQuery: r.RewrittenQuery,
		Evidence:       string(r.Evidence),
		Generated:      r.Generated,
	}
}

func documentsFrom(in []retrieval.Document) []Document {
	out := make([]Document, len(in))
	for i, d := range in {
		out[i] = Document{
			EntityType: d.EntityType(),
			EntityID:   d.EntityID(),
			Content:    d.Content(),
			Similarity: d.Similarity(),
		}
	}
	return out
}
