package retrieval

import (
	"fmt"
	"sort"
)

// Document is a single retrieved corpus hit, scoped to one request.
type Document struct {
	entityType string
	entityID   string
	content    string
	similarity float64
}

// NewDocument creates a retrieved document. Similarity is clamped to [0,1].
func NewDocument(entityType, entityID, content string, similarity float64) Document {
	return Document{
		entityType: entityType,
		entityID:   entityID,
		content:    content,
		similarity: clamp(similarity),
	}
}

// EntityType returns the kind of record the document describes (list, version, entry, ...).
func (d Document) EntityType() string { return d.entityType }

// EntityID returns the record identifier within its entity type.
func (d Document) EntityID() string { return d.entityID }

// Content returns the document text.
func (d Document) Content() string { return d.content }

// Similarity returns the closeness score in [0,1].
func (d Document) Similarity() float64 { return d.similarity }

// SortBySimilarity orders docs most similar first. Ties keep store order.
func SortBySimilarity(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].similarity > docs[j].similarity
	})
}

// KeepAbove returns docs whose similarity is strictly greater than threshold.
func KeepAbove(docs []Document, threshold float64) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if d.similarity > threshold {
			out = append(out, d)
		}
	}
	return out
}

// CorpusDocument is one indexed row of the document store.
type CorpusDocument struct {
	EntityType string
	EntityID   string
	Content    string
	Embedding  []float32
}

// Key identifies the row within the corpus.
func (c CorpusDocument) Key() string {
	return c.EntityType + ":" + c.EntityID
}

// Validate checks the row is indexable.
func (c CorpusDocument) Validate() error {
	if c.EntityType == "" {
		return fmt.Errorf("entity_type is required")
	}
	if c.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	if c.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
