// Package corpus stores embedded list records as hashes covered by an FT vector index.
package corpus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/db"
	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// store is the consumer interface for the corpus (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	Del(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string, deleteDocs bool) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	IndexSize(ctx context.Context, index string) (int, error)
}

// IndexConfig controls the vector index schema.
type IndexConfig struct {
	Dimensions  int
	Distance    db.DistanceMetric
	Algorithm   db.VectorAlgorithm
	M           int
	EFConstruct int
}

// Repo implements the document store over a Redis-family search engine.
type Repo struct {
	store  store
	cfg    IndexConfig
	logger *zap.Logger
}

// New creates a corpus repository.
func New(s store, cfg IndexConfig, logger *zap.Logger) *Repo {
	if cfg.Distance == "" {
		cfg.Distance = db.DistanceCosine
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = db.VectorHNSW
	}
	return &Repo{store: s, cfg: cfg, logger: logger}
}

func (r *Repo) indexDefinition() (*db.IndexDefinition, error) {
	b := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldEntityType).
		Tag(fieldEntityID)

	if r.cfg.Algorithm == db.VectorFlat {
		b = b.VectorFlat(fieldVector, vectorAlias, r.cfg.Dimensions, r.cfg.Distance)
	} else {
		b = b.VectorHNSW(fieldVector, vectorAlias, r.cfg.Dimensions, r.cfg.Distance, r.cfg.M, r.cfg.EFConstruct)
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build corpus index: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the vector index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	if exists {
		return nil
	}

	def, err := r.indexDefinition()
	if err != nil {
		return err
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", indexName, err)
	}

	r.logger.Info("Corpus index created",
		zap.String("index", indexName),
		zap.Stringer("schema", def),
		zap.Int("dimensions", r.cfg.Dimensions),
		zap.String("algorithm", string(r.cfg.Algorithm)),
	)
	return nil
}

// Upsert writes rows in one pipeline. Every row must carry an embedding of the index dimension.
func (r *Repo) Upsert(ctx context.Context, docs []retrieval.CorpusDocument) error {
	if len(docs) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, 0, len(docs))
	for _, doc := range docs {
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("document %s: %w: %w", doc.Key(), domain.ErrInvalidInput, err)
		}
		if len(doc.Embedding) != r.cfg.Dimensions {
			return fmt.Errorf("document %s: %w: embedding has %d dimensions, index expects %d",
				doc.Key(), domain.ErrInvalidInput, len(doc.Embedding), r.cfg.Dimensions)
		}
		items = append(items, db.HashSetItem{
			Key:    docKey(doc.EntityType, doc.EntityID),
			Fields: toHash(doc),
		})
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert %d documents: %w", len(items), err)
	}
	return nil
}

// Delete removes one row. Deleting a missing row is not an error.
func (r *Repo) Delete(ctx context.Context, entityType, entityID string) error {
	key := docKey(entityType, entityID)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Search returns up to limit rows with similarity >= threshold, most similar first.
func (r *Repo) Search(
	ctx context.Context, vector []float32, threshold float64, limit int,
) ([]retrieval.Document, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, nil
	}

	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName,
		VectorField:  vectorAlias,
		Distance:     r.cfg.Distance,
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{fieldEntityType, fieldEntityID, fieldContent},
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("%w: index %s missing", domain.ErrCorpusUnavailable, indexName)
		}
		return nil, fmt.Errorf("knn search: %w", err)
	}

	docs := make([]retrieval.Document, 0, len(res.Entries))
	for _, e := range res.Entries {
		if e.Score < threshold {
			continue
		}
		docs = append(docs, retrieval.NewDocument(
			e.Fields[fieldEntityType],
			e.Fields[fieldEntityID],
			e.Fields[fieldContent],
			e.Score,
		))
	}
	retrieval.SortBySimilarity(docs)
	return docs, nil
}

// Count returns the number of indexed rows.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.IndexSize(ctx, indexName)
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("index size: %w", err)
	}
	return n, nil
}

// Drop removes the index and, when deleteDocs is set, every row under the
// corpus prefix. Rows are deleted by key as well because valkey-search drops
// the index without its documents.
func (r *Repo) Drop(ctx context.Context, deleteDocs bool) error {
	if err := r.store.DropIndex(ctx, indexName, deleteDocs); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index %s: %w", indexName, err)
	}
	if !deleteDocs {
		return nil
	}

	n, err := r.store.DeleteByPrefix(ctx, keyPrefix)
	if err != nil {
		return fmt.Errorf("delete corpus rows: %w", err)
	}
	r.logger.Info("Corpus dropped", zap.String("index", indexName), zap.Int("deleted_rows", n))
	return nil
}
