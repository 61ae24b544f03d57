package ingest

import (
	"context"

	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// Sink is the corpus store the loader writes to (ISP).
// Delete of a row that does not exist is not an error.
type Sink interface {
	Upsert(ctx context.Context, docs []retrieval.CorpusDocument) error
	Delete(ctx context.Context, entityType, entityID string) error
}
