package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/domain"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// DefaultBatchSize is the number of rows embedded and upserted together.
const DefaultBatchSize = 100

const maxLineSize = 4 << 20

// Row is one JSON line of the corpus file. Ids may be strings or numbers.
// A row with deleted set removes the document and needs no content.
type Row struct {
	EntityType string    `json:"entity_type"`
	EntityID   ID        `json:"entity_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Deleted    bool      `json:"deleted,omitempty"`
}

// ID accepts both JSON strings and JSON numbers.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("entity_id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Report summarizes a load.
type Report struct {
	Loaded   int
	Deleted  int
	Skipped  int
	Embedded int
	Tokens   int
}

// Service loads a JSONL corpus into the document store.
type Service struct {
	sink      Sink
	embedder  domain.Embedder
	prepare   func(ctx context.Context) error
	batchSize int
	logger    *zap.Logger
}

// New creates a loader. prepare (index or schema creation) may be nil.
// batchSize <= 0 uses DefaultBatchSize.
func New(
	sink Sink,
	embedder domain.Embedder,
	prepare func(ctx context.Context) error,
	batchSize int,
	logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		sink:      sink,
		embedder:  embedder,
		prepare:   prepare,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Load reads r line by line. Malformed or incomplete rows are skipped and
// counted; store and provider failures abort the load.
func (s *Service) Load(ctx context.Context, r io.Reader) (Report, error) {
	if s.prepare != nil {
		if err := s.prepare(ctx); err != nil {
			return Report{}, fmt.Errorf("prepare corpus store: %w", err)
		}
	}

	var rep Report
	batch := make([]retrieval.CorpusDocument, 0, s.batchSize)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		doc, deleted, err := parseRow(raw)
		if err != nil {
			rep.Skipped++
			s.logger.Warn("Skipping corpus row", zap.Int("line", line), zap.Error(err))
			continue
		}

		if deleted {
			// Pending upserts go first so a later tombstone wins over an earlier row.
			if len(batch) > 0 {
				if err := s.flush(ctx, batch, &rep); err != nil {
					return rep, err
				}
				batch = batch[:0]
			}
			if err := s.sink.Delete(ctx, doc.EntityType, doc.EntityID); err != nil {
				return rep, fmt.Errorf("delete corpus row %s: %w", doc.Key(), err)
			}
			rep.Deleted++
			continue
		}

		batch = append(batch, doc)
		if len(batch) == s.batchSize {
			if err := s.flush(ctx, batch, &rep); err != nil {
				return rep, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return rep, fmt.Errorf("read corpus line %d: %w", line+1, err)
	}

	if len(batch) > 0 {
		if err := s.flush(ctx, batch, &rep); err != nil {
			return rep, err
		}
	}

	s.logger.Info("Corpus loaded",
		zap.Int("loaded", rep.Loaded),
		zap.Int("deleted", rep.Deleted),
		zap.Int("skipped", rep.Skipped),
		zap.Int("embedded", rep.Embedded),
		zap.Int("tokens", rep.Tokens),
	)
	return rep, nil
}

func parseRow(raw []byte) (doc retrieval.CorpusDocument, deleted bool, err error) {
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return doc, false, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	doc = retrieval.CorpusDocument{
		EntityType: strings.TrimSpace(row.EntityType),
		EntityID:   strings.TrimSpace(string(row.EntityID)),
		Content:    strings.TrimSpace(row.Content),
		Embedding:  row.Embedding,
	}
	if row.Deleted {
		if doc.EntityType == "" || doc.EntityID == "" {
			return doc, true, fmt.Errorf("%w: tombstone needs entity_type and entity_id", domain.ErrInvalidInput)
		}
		return doc, true, nil
	}
	if err := doc.Validate(); err != nil {
		return doc, false, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	return doc, false, nil
}

// flush embeds the rows lacking a vector, then upserts the batch.
func (s *Service) flush(ctx context.Context, batch []retrieval.CorpusDocument, rep *Report) error {
	var idx []int
	var texts []string
	for i := range batch {
		if len(batch[i].Embedding) == 0 {
			idx = append(idx, i)
			texts = append(texts, batch[i].Content)
		}
	}

	if len(texts) > 0 {
		if s.embedder == nil {
			return errors.New("rows without embedding require an embedder")
		}
		res, err := s.embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed %d corpus rows: %w", len(texts), err)
		}
		for j, i := range idx {
			batch[i].Embedding = res.Embeddings[j]
		}
		rep.Embedded += len(texts)
		rep.Tokens += res.TotalTokens
	}

	if err := s.sink.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("upsert %d corpus rows: %w", len(batch), err)
	}
	rep.Loaded += len(batch)

	s.logger.Debug("Corpus batch stored", zap.Int("rows", len(batch)), zap.Int("embedded", len(texts)))
	return nil
}

func (s *Service) embed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	res, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, err //nolint:wrapcheck // wrapped by caller
	}
	if len(res.Embeddings) != len(texts) {
		return domain.BatchEmbeddingResult{}, fmt.Errorf(
			"%w: got %d embeddings for %d texts", domain.ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}
	return res, nil
}
