package index

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/civicgrid/veridoc/pkg/models"
)

// MemoryStore is an in-process evidence index: a brute-force linear scan over
// every candidate chunk, scored by cosine similarity with a lexical overlap
// signal. It is the fallback when no remote index is configured and the
// backing store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	entries []memEntry
}

type memEntry struct {
	chunk  models.Chunk
	vector []float32
}

// NewMemoryStore creates an in-process store with a fixed vector
// dimensionality. Changing the dimensionality requires a new store and a full
// reindex.
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim}
}

// Create is a no-op: the store exists once constructed.
func (s *MemoryStore) Create(ctx context.Context) error { return nil }

// Upsert stores chunks, replacing any existing entries with the same ID.
// The single write lock serializes concurrent writes, including writes for
// the same document.
func (s *MemoryStore) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if err := s.validate(chunks, vectors); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertLocked(chunks, vectors)
	return len(chunks), nil
}

// ReplaceDocument swaps the document's chunks for the given set under a single
// write lock, so no reader or concurrent delete observes the document
// half-indexed.
func (s *MemoryStore) ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk, vectors [][]float32) (int, error) {
	if err := s.validate(chunks, vectors); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.chunk.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	s.upsertLocked(chunks, vectors)
	return len(chunks), nil
}

func (s *MemoryStore) validate(chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if v != nil && len(v) != s.dim {
			return fmt.Errorf("vector %d has dimension %d, index expects %d", i, len(v), s.dim)
		}
	}
	return nil
}

// upsertLocked assumes s.mu is held for writing.
func (s *MemoryStore) upsertLocked(chunks []models.Chunk, vectors [][]float32) {
	for i, ch := range chunks {
		v := vectors[i]
		if v == nil {
			v = make([]float32, s.dim)
		}
		replaced := false
		for j := range s.entries {
			if s.entries[j].chunk.ID == ch.ID {
				s.entries[j] = memEntry{chunk: ch, vector: v}
				replaced = true
				break
			}
		}
		if !replaced {
			s.entries = append(s.entries, memEntry{chunk: ch, vector: v})
		}
	}
}

// Search scores every candidate chunk and returns the top K. With a usable
// query vector the score is cosine similarity blended with lexical term
// overlap; with a degenerate vector it degrades to the lexical signal alone,
// and arbitrary order when that is absent too.
func (s *MemoryStore) Search(ctx context.Context, q Query) ([]models.RetrievedEvidence, error) {
	if q.TopK <= 0 {
		q.TopK = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := queryTerms(q.Text)
	useVector := q.Vector != nil && !isZero(q.Vector)

	var out []models.RetrievedEvidence
	for _, e := range s.entries {
		if q.DocumentID != "" && e.chunk.DocumentID != q.DocumentID {
			continue
		}
		lex := termOverlap(terms, e.chunk.Text)
		var score float64
		if useVector {
			score = 0.85*Cosine(q.Vector, e.vector) + 0.15*lex
		} else {
			score = lex
		}
		out = append(out, models.RetrievedEvidence{
			ChunkID:       e.chunk.ID,
			DocumentID:    e.chunk.DocumentID,
			DocumentTitle: e.chunk.Title,
			Page:          e.chunk.Page,
			ChunkIndex:    e.chunk.Index,
			Text:          e.chunk.Text,
			Score:         score,
		})
	}

	// Descending score; the stable sort keeps original chunk order on ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out, nil
}

// DeleteDocument removes every chunk of the document.
func (s *MemoryStore) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.chunk.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

// Len reports the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func queryTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(text)) {
		t = strings.Trim(t, `.,;:!?"'()`)
		if len(t) > 2 {
			terms[t] = struct{}{}
		}
	}
	return terms
}

// termOverlap is the fraction of query terms present in the chunk text.
func termOverlap(terms map[string]struct{}, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for t := range terms {
		if strings.Contains(lower, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}
