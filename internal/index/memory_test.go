package index

import (
	"context"
	"math"
	"testing"

	"github.com/civicgrid/veridoc/pkg/models"
)

func TestCosineSelfSimilarity(t *testing.T) {
	v := []float32{0.3, -0.5, 0.8, 0.1}
	if got := Cosine(v, v); math.Abs(got-1.0) > 1e-6 {
		t.Errorf("Cosine(v, v) = %f, want 1.0", got)
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float32{0.1, 0.9, -0.2}
	b := []float32{0.7, 0.3, 0.5}
	if Cosine(a, b) != Cosine(b, a) {
		t.Error("Cosine is not symmetric")
	}
}

func TestCosineZeroVector(t *testing.T) {
	z := []float32{0, 0, 0}
	v := []float32{1, 2, 3}
	if got := Cosine(z, v); got != 0 {
		t.Errorf("Cosine(zero, v) = %f, want 0", got)
	}
	if got := Cosine(z, z); got != 0 {
		t.Errorf("Cosine(zero, zero) = %f, want 0", got)
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("doc-1", 0)
	b := ChunkID("doc-1", 0)
	c := ChunkID("doc-1", 1)
	if a != b {
		t.Error("same document and ordinal must produce the same ID")
	}
	if a == c {
		t.Error("different ordinals must produce different IDs")
	}
	if len(a) != 40 {
		t.Errorf("expected sha1 hex ID, got %q", a)
	}
}

func chunkFixture(docID string, idx int, text string) models.Chunk {
	return models.Chunk{
		ID:         ChunkID(docID, idx),
		DocumentID: docID,
		Title:      "Document " + docID,
		Text:       text,
		Index:      idx,
	}
}

func TestMemoryStoreUpsertAndSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	chunks := []models.Chunk{
		chunkFixture("doc-1", 0, "The act reduces registration fees for small businesses."),
		chunkFixture("doc-1", 1, "Penalties for late filing remain unchanged."),
		chunkFixture("doc-2", 0, "The committee published its annual irrigation report."),
	}
	vectors := [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}

	n, err := s.Upsert(ctx, chunks, vectors)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if n != 3 {
		t.Errorf("indexed %d chunks, want 3", n)
	}

	res, err := s.Search(ctx, Query{Text: "registration fees", Vector: []float32{1, 0, 0}, TopK: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d results, want 2", len(res))
	}
	if res[0].ChunkID != chunks[0].ID {
		t.Errorf("best match = %s, want the fee chunk", res[0].ChunkID)
	}
	if res[0].Score < res[1].Score {
		t.Error("results not in descending score order")
	}
}

func TestMemoryStoreDocumentFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	_, err := s.Upsert(ctx, []models.Chunk{
		chunkFixture("doc-1", 0, "alpha"),
		chunkFixture("doc-2", 0, "beta"),
	}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	res, err := s.Search(ctx, Query{Text: "anything", DocumentID: "doc-2", TopK: 10})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res) != 1 || res[0].DocumentID != "doc-2" {
		t.Errorf("document filter leaked results: %+v", res)
	}
}

func TestMemoryStoreZeroVectorDegradesToLexical(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	_, err := s.Upsert(ctx, []models.Chunk{
		chunkFixture("doc-1", 0, "irrigation subsidies for farmers"),
		chunkFixture("doc-1", 1, "urban transit funding"),
	}, [][]float32{nil, nil})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	res, err := s.Search(ctx, Query{Text: "irrigation subsidies", Vector: make([]float32, 3), TopK: 2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if res[0].ChunkIndex != 0 {
		t.Errorf("lexical fallback did not rank the matching chunk first: %+v", res)
	}
}

func TestMemoryStoreReindexOverwrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	first := []models.Chunk{chunkFixture("doc-1", 0, "old text")}
	if _, err := s.Upsert(ctx, first, [][]float32{{1, 0, 0}}); err != nil {
		t.Fatal(err)
	}
	second := []models.Chunk{chunkFixture("doc-1", 0, "new text")}
	if _, err := s.Upsert(ctx, second, [][]float32{{0, 1, 0}}); err != nil {
		t.Fatal(err)
	}

	if s.Len() != 1 {
		t.Fatalf("re-indexing left %d chunks, want 1 (no duplicate residue)", s.Len())
	}

	removed, err := s.DeleteDocument(ctx, "doc-1")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed %d chunks, want 1", removed)
	}
	res, err := s.Search(ctx, Query{Text: "text", DocumentID: "doc-1", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 0 {
		t.Errorf("search after delete returned %d results, want 0", len(res))
	}
}

func TestMemoryStoreReplaceDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	old := []models.Chunk{
		chunkFixture("doc-1", 0, "old first"),
		chunkFixture("doc-1", 1, "old second"),
		chunkFixture("doc-1", 2, "old third"),
	}
	if _, err := s.Upsert(ctx, old, [][]float32{nil, nil, nil}); err != nil {
		t.Fatal(err)
	}
	other := []models.Chunk{chunkFixture("doc-2", 0, "unrelated")}
	if _, err := s.Upsert(ctx, other, [][]float32{nil}); err != nil {
		t.Fatal(err)
	}

	// A shorter replacement must drop the stale tail chunks in the same call.
	next := []models.Chunk{chunkFixture("doc-1", 0, "new first")}
	n, err := s.ReplaceDocument(ctx, "doc-1", next, [][]float32{nil})
	if err != nil {
		t.Fatalf("ReplaceDocument failed: %v", err)
	}
	if n != 1 {
		t.Errorf("indexed %d chunks, want 1", n)
	}
	if s.Len() != 2 {
		t.Fatalf("store holds %d chunks, want 2 (replacement plus other document)", s.Len())
	}

	res, err := s.Search(ctx, Query{Text: "old second", DocumentID: "doc-1", TopK: 5})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res {
		if r.ChunkIndex > 0 {
			t.Errorf("stale chunk %d survived replacement", r.ChunkIndex)
		}
	}
}

func TestMemoryStoreReplaceDocumentDimensionMismatch(t *testing.T) {
	s := NewMemoryStore(3)
	_, err := s.ReplaceDocument(context.Background(), "doc-1",
		[]models.Chunk{chunkFixture("doc-1", 0, "text")},
		[][]float32{{1, 0}})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	s := NewMemoryStore(3)
	_, err := s.Upsert(context.Background(),
		[]models.Chunk{chunkFixture("doc-1", 0, "text")},
		[][]float32{{1, 0, 0, 0}})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryStoreTieBreakByChunkOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	_, err := s.Upsert(ctx, []models.Chunk{
		chunkFixture("doc-1", 0, "same text"),
		chunkFixture("doc-1", 1, "same text"),
		chunkFixture("doc-1", 2, "same text"),
	}, [][]float32{nil, nil, nil})
	if err != nil {
		t.Fatal(err)
	}

	res, err := s.Search(ctx, Query{Text: "same text", TopK: 3})
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range res {
		if r.ChunkIndex != i {
			t.Errorf("tie at position %d broken out of chunk order: got index %d", i, r.ChunkIndex)
		}
	}
}
