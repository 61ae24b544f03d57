package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/kailas-cloud/listbot/internal/db"
	"github.com/kailas-cloud/listbot/internal/domain/retrieval"
)

// Config holds connection pool parameters.
type Config struct {
	DSN             string
	Table           string
	Dimensions      int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CorpusStore keeps corpus rows in a pgvector table and answers cosine KNN queries.
type CorpusStore struct {
	db         *sql.DB
	table      string
	dimensions int
	logger     *zap.Logger
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*CorpusStore, error) {
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return New(conn, cfg.Table, cfg.Dimensions, logger)
}

// New wraps an existing connection pool.
func New(conn *sql.DB, table string, dimensions int, logger *zap.Logger) (*CorpusStore, error) {
	if table == "" {
		table = "list_embeddings"
	}
	if !isValidTable(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &CorpusStore{db: conn, table: table, dimensions: dimensions, logger: logger}, nil
}

// EnsureSchema creates the pgvector extension, the corpus table and its HNSW index.
func (s *CorpusStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (entity_type, entity_id)
		)`, s.table, s.dimensions),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`,
			s.table, s.table),
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return db.Wrap(db.OpSQLSchema, s.table, err)
		}
	}

	s.logger.Info("Corpus schema ready", zap.String("table", s.table), zap.Int("dimensions", s.dimensions))
	return nil
}

// Upsert writes rows in one transaction, replacing content and embedding of existing keys.
func (s *CorpusStore) Upsert(ctx context.Context, docs []retrieval.CorpusDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return db.Wrap(db.OpSQLUpsert, s.table, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (entity_type, entity_id, content, embedding)
		VALUES ($1, $2, $3, $4::vector)
		ON CONFLICT (entity_type, entity_id)
		DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, updated_at = now()`, s.table))
	if err != nil {
		return db.Wrap(db.OpSQLUpsert, s.table, err)
	}
	defer stmt.Close()

	for _, d := range docs {
		if len(d.Embedding) != s.dimensions {
			return fmt.Errorf("row %s: embedding has %d dimensions, want %d", d.Key(), len(d.Embedding), s.dimensions)
		}
		if _, err := stmt.ExecContext(ctx, d.EntityType, d.EntityID, d.Content, vectorLiteral(d.Embedding)); err != nil {
			return db.Wrap(db.OpSQLUpsert, s.table+"/"+d.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return db.Wrap(db.OpSQLUpsert, s.table, err)
	}
	return nil
}

// Search returns up to limit rows with cosine similarity >= threshold, most similar first.
func (s *CorpusStore) Search(
	ctx context.Context, vector []float32, threshold float64, limit int,
) ([]retrieval.Document, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	query := fmt.Sprintf(`SELECT entity_type, entity_id, content, 1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.table)

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(vector), threshold, limit)
	if err != nil {
		return nil, db.Wrap(db.OpSQLSearch, s.table, err)
	}
	defer rows.Close()

	docs := make([]retrieval.Document, 0, limit)
	for rows.Next() {
		var entityType, entityID, content string
		var similarity float64
		if err := rows.Scan(&entityType, &entityID, &content, &similarity); err != nil {
			return nil, db.Wrap(db.OpSQLSearch, s.table, err)
		}
		docs = append(docs, retrieval.NewDocument(entityType, entityID, content, similarity))
	}
	if err := rows.Err(); err != nil {
		return nil, db.Wrap(db.OpSQLSearch, s.table, err)
	}

	return docs, nil
}

// Count returns the number of corpus rows.
func (s *CorpusStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, db.Wrap(db.OpSQLCount, s.table, err)
	}
	return n, nil
}

// Delete removes one row. A missing row is not an error.
func (s *CorpusStore) Delete(ctx context.Context, entityType, entityID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE entity_type = $1 AND entity_id = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, entityType, entityID); err != nil {
		return db.Wrap(db.OpSQLDelete, s.table+"/"+entityType+":"+entityID, err)
	}
	return nil
}

// Truncate deletes every corpus row. The schema is kept.
func (s *CorpusStore) Truncate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE TABLE %s`, s.table)); err != nil {
		return db.Wrap(db.OpSQLSchema, s.table, err)
	}
	s.logger.Info("Corpus truncated", zap.String("table", s.table))
	return nil
}

// Ping checks connectivity.
func (s *CorpusStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *CorpusStore) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("Closing database failed", zap.Error(err))
	}
}

// vectorLiteral renders the pgvector text form "[0.1,0.2,...]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func isValidTable(name string) bool {
	for i, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !(isDigit && i > 0) {
			return false
		}
	}
	return name != ""
}
