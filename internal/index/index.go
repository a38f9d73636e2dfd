// Package index stores document chunks and serves similarity queries, either
// against Postgres with pgvector or an in-process store.
package index

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/civicgrid/veridoc/pkg/models"
)

// ErrUnavailable signals that the backing service is unreachable. Callers use
// it to decide whether to enter the retrieval fallback chain; it is never a
// silent empty result.
var ErrUnavailable = errors.New("evidence index unavailable")

// Query is one similarity search request.
type Query struct {
	Text       string
	Vector     []float32 // may be nil when no embedding backend is available
	DocumentID string    // optional: restrict results to one document
	TopK       int
}

// Index is the evidence index service boundary.
type Index interface {
	// Create provisions the index. Requesting creation of an existing index
	// is a no-op success.
	Create(ctx context.Context) error
	// Upsert stores chunks with their vectors, returning the number indexed.
	// Chunk IDs are deterministic, so re-indexing a document overwrites its
	// previous chunks.
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error)
	// Search returns the best-matching chunks in descending score order, ties
	// broken by original chunk order.
	Search(ctx context.Context, q Query) ([]models.RetrievedEvidence, error)
	// ReplaceDocument atomically swaps a document's chunks for the given set,
	// returning the number indexed. The delete and the insert happen under one
	// per-document critical section, so a concurrent delete cannot land between
	// them.
	ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk, vectors [][]float32) (int, error)
	// DeleteDocument removes every chunk of a document, returning the count.
	DeleteDocument(ctx context.Context, documentID string) (int, error)
}

// ChunkID derives a deterministic chunk identifier from the parent document
// and the chunk ordinal.
func ChunkID(documentID string, ordinal int) string {
	h := sha1.Sum([]byte(fmt.Sprintf("%s#%d", documentID, ordinal)))
	return hex.EncodeToString(h[:])
}

const cosineEpsilon = 1e-8

// Cosine returns the cosine similarity of two vectors. Degenerate (zero)
// vectors score zero rather than dividing by zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + cosineEpsilon)
}

// isZero reports whether v carries no signal.
func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
