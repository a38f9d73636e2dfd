package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/civicgrid/veridoc/pkg/models"
)

// PGStore is the primary evidence index, backed by Postgres with pgvector.
// Search blends full-text rank with vector cosine similarity.
type PGStore struct {
	pool *pgxpool.Pool
	dim  int

	// Writes for the same document are serialized so a delete racing an
	// index run cannot leave duplicate or orphaned chunks.
	docLocks sync.Map // document_id -> *sync.Mutex
}

// NewPGStore connects to the database. The dimensionality is fixed for the
// lifetime of the index; changing it requires a full reindex.
func NewPGStore(ctx context.Context, url string, dim int) (*PGStore, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &PGStore{pool: p, dim: dim}, nil
}

func (s *PGStore) Close() { s.pool.Close() }

// Pool exposes the underlying connection pool for components that share the
// same database.
func (s *PGStore) Pool() *pgxpool.Pool { return s.pool }

// Ping checks database connectivity.
func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Create provisions the schema. Safe to call repeatedly.
func (s *PGStore) Create(ctx context.Context) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS evidence_chunks (
  id           TEXT PRIMARY KEY,
  document_id  TEXT NOT NULL,
  title        TEXT NOT NULL DEFAULT '',
  content      TEXT NOT NULL,
  page         INT NOT NULL DEFAULT 0,
  chunk_index  INT NOT NULL DEFAULT 0,
  start_offset INT NOT NULL DEFAULT 0,
  end_offset   INT NOT NULL DEFAULT 0,
  category     TEXT NOT NULL DEFAULT '',
  source_org   TEXT NOT NULL DEFAULT '',
  embedding    vector(%d),
  created_at   TIMESTAMP WITH TIME ZONE DEFAULT now(),
  ts_content   tsvector GENERATED ALWAYS AS (
    setweight(to_tsvector('english', coalesce(title,'')), 'A') ||
    setweight(to_tsvector('english', coalesce(content,'')), 'B')
  ) STORED
);

CREATE INDEX IF NOT EXISTS evidence_chunks_document_idx
  ON evidence_chunks (document_id);

CREATE INDEX IF NOT EXISTS evidence_chunks_ts_gin
  ON evidence_chunks USING GIN (ts_content);

CREATE INDEX IF NOT EXISTS evidence_chunks_embedding_idx
  ON evidence_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(q, s.dim)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *PGStore) lockDocument(documentID string) func() {
	v, _ := s.docLocks.LoadOrStore(documentID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Upsert inserts or replaces chunks. IDs are deterministic per document and
// ordinal, so re-indexing overwrites the previous rows.
func (s *PGStore) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	unlock := s.lockDocument(chunks[0].DocumentID)
	defer unlock()

	return s.upsertLocked(ctx, chunks, vectors)
}

// ReplaceDocument deletes the document's rows and inserts the given set while
// holding the per-document lock across both statements, closing the window
// where a concurrent delete would leave chunks with no document record.
func (s *PGStore) ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}

	unlock := s.lockDocument(documentID)
	defer unlock()

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM evidence_chunks WHERE document_id = $1`, documentID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.upsertLocked(ctx, chunks, vectors)
}

// upsertLocked assumes the caller holds the document's lock.
func (s *PGStore) upsertLocked(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	const q = `
		INSERT INTO evidence_chunks (
			id, document_id, title, content, page, chunk_index,
			start_offset, end_offset, category, source_org, embedding, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11, now())
		ON CONFLICT (id) DO UPDATE SET
			title        = EXCLUDED.title,
			content      = EXCLUDED.content,
			page         = EXCLUDED.page,
			chunk_index  = EXCLUDED.chunk_index,
			start_offset = EXCLUDED.start_offset,
			end_offset   = EXCLUDED.end_offset,
			category     = EXCLUDED.category,
			source_org   = EXCLUDED.source_org,
			embedding    = EXCLUDED.embedding,
			created_at   = evidence_chunks.created_at;`

	count := 0
	for i, c := range chunks {
		var ev any
		if vectors[i] != nil {
			ev = pgvector.NewVector(vectors[i])
		} else {
			ev = (*pgvector.Vector)(nil)
		}
		if _, err := s.pool.Exec(ctx, q,
			c.ID, c.DocumentID, c.Title, c.Text, c.Page, c.Index,
			c.StartOffset, c.EndOffset, c.Category, c.SourceOrg, ev,
		); err != nil {
			return count, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		count++
	}
	return count, nil
}

// Search blends vector similarity with full-text rank. Without a usable query
// vector it ranks on the text signal alone.
func (s *PGStore) Search(ctx context.Context, q Query) ([]models.RetrievedEvidence, error) {
	if q.TopK <= 0 {
		q.TopK = 5
	}

	useVector := q.Vector != nil && !isZero(q.Vector)

	args := []any{q.Text}
	ai := 2

	vecExpr := "0"
	if useVector {
		vecExpr = fmt.Sprintf(
			"LEAST(GREATEST(1.0 - cosine_distance(embedding, $%d::vector), 0), 1)", ai)
		args = append(args, pgvector.NewVector(q.Vector))
		ai++
	}

	where := "TRUE"
	if q.DocumentID != "" {
		where = fmt.Sprintf("document_id = $%d", ai)
		args = append(args, q.DocumentID)
	}

	query := fmt.Sprintf(`
SELECT id, document_id, title, content, page, chunk_index,
       (
         0.80 * %s +
         0.20 * LEAST(ts_rank_cd(ts_content, plainto_tsquery('english', $1)), 1)
       ) AS score
FROM evidence_chunks
WHERE %s
ORDER BY score DESC, document_id, chunk_index
LIMIT %d;`, vecExpr, where, q.TopK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var out []models.RetrievedEvidence
	for rows.Next() {
		var ev models.RetrievedEvidence
		if err := rows.Scan(&ev.ChunkID, &ev.DocumentID, &ev.DocumentTitle,
			&ev.Text, &ev.Page, &ev.ChunkIndex, &ev.Score); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// DeleteDocument removes every chunk of the document, returning the count.
func (s *PGStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	unlock := s.lockDocument(documentID)
	defer unlock()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM evidence_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return int(tag.RowsAffected()), nil
}
