// Package docstore holds metadata for source documents. The pipeline reads
// summaries and key points from here; text extraction happens upstream.
package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/civicgrid/veridoc/pkg/models"
)

// Store is the document source boundary.
type Store interface {
	Create(ctx context.Context, doc models.Document) (string, error)
	Get(ctx context.Context, id string) (models.Document, bool, error)
	List(ctx context.Context, category string) ([]models.Document, error)
	Update(ctx context.Context, doc models.Document) error
	Delete(ctx context.Context, id string) (bool, error)
}

// NewID returns a short document identifier.
func NewID() string {
	return uuid.NewString()[:8]
}

// Memory is an in-process document store used when no database is configured
// and in tests.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]models.Document
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[string]models.Document)}
}

func (m *Memory) Create(ctx context.Context, doc models.Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = NewID()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	m.docs[doc.ID] = doc
	return doc.ID, nil
}

func (m *Memory) Get(ctx context.Context, id string) (models.Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok, nil
}

func (m *Memory) List(ctx context.Context, category string) ([]models.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Document, 0, len(m.docs))
	for _, d := range m.docs {
		if category != "" && !strings.EqualFold(d.Category, category) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Update(ctx context.Context, doc models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	doc.CreatedAt = existing.CreatedAt
	doc.UpdatedAt = time.Now().UTC()
	m.docs[doc.ID] = doc
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return false, nil
	}
	delete(m.docs, id)
	return true, nil
}
