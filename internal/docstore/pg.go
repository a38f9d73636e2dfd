package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicgrid/veridoc/pkg/models"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// PG is the Postgres-backed document store.
type PG struct {
	pool *pgxpool.Pool
}

// NewPG wraps an existing connection pool; the pool is shared with the
// evidence index.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool}
}

// Migrate provisions the documents table. Safe to call repeatedly.
func (s *PG) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS documents (
  id         TEXT PRIMARY KEY,
  title      TEXT NOT NULL,
  category   TEXT NOT NULL DEFAULT '',
  summary    TEXT NOT NULL DEFAULT '',
  key_points TEXT[] NOT NULL DEFAULT '{}',
  full_text  TEXT NOT NULL DEFAULT '',
  page_count INT NOT NULL DEFAULT 0,
  source_org TEXT NOT NULL DEFAULT '',
  source_url TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP WITH TIME ZONE DEFAULT now(),
  updated_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);`
	_, err := s.pool.Exec(ctx, q)
	return err
}

func (s *PG) Create(ctx context.Context, doc models.Document) (string, error) {
	if doc.ID == "" {
		doc.ID = NewID()
	}
	const q = `
		INSERT INTO documents (id, title, category, summary, key_points,
			full_text, page_count, source_org, source_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now(), now())`
	_, err := s.pool.Exec(ctx, q, doc.ID, doc.Title, doc.Category, doc.Summary,
		doc.KeyPoints, doc.FullText, doc.PageCount, doc.SourceOrg, doc.SourceURL)
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return doc.ID, nil
}

func (s *PG) Get(ctx context.Context, id string) (models.Document, bool, error) {
	const q = `
		SELECT id, title, category, summary, key_points, full_text,
		       page_count, source_org, source_url, created_at, updated_at
		FROM documents WHERE id = $1`
	var d models.Document
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&d.ID, &d.Title, &d.Category, &d.Summary, &d.KeyPoints, &d.FullText,
		&d.PageCount, &d.SourceOrg, &d.SourceURL, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Document{}, false, nil
		}
		return models.Document{}, false, err
	}
	return d, true, nil
}

func (s *PG) List(ctx context.Context, category string) ([]models.Document, error) {
	q := `
		SELECT id, title, category, summary, key_points, full_text,
		       page_count, source_org, source_url, created_at, updated_at
		FROM documents`
	var args []any
	if category != "" {
		q += ` WHERE category = $1`
		args = append(args, category)
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Category, &d.Summary, &d.KeyPoints,
			&d.FullText, &d.PageCount, &d.SourceOrg, &d.SourceURL,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PG) Update(ctx context.Context, doc models.Document) error {
	const q = `
		UPDATE documents SET
			title = $2, category = $3, summary = $4, key_points = $5,
			full_text = $6, page_count = $7, source_org = $8, source_url = $9,
			updated_at = now()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, doc.ID, doc.Title, doc.Category, doc.Summary,
		doc.KeyPoints, doc.FullText, doc.PageCount, doc.SourceOrg, doc.SourceURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PG) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
