package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/index"
	"github.com/civicgrid/veridoc/pkg/models"
)

// MockIndex implements index.Index for testing.
type MockIndex struct {
	SearchFunc func(ctx context.Context, q index.Query) ([]models.RetrievedEvidence, error)
}

func (m *MockIndex) Create(ctx context.Context) error { return nil }

func (m *MockIndex) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (int, error) {
	return len(chunks), nil
}

func (m *MockIndex) Search(ctx context.Context, q index.Query) ([]models.RetrievedEvidence, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, q)
	}
	return nil, nil
}

func (m *MockIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []models.Chunk, vectors [][]float32) (int, error) {
	return len(chunks), nil
}

func (m *MockIndex) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	return 0, nil
}

// MockEmbedder implements the Embedder interface for testing.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	return []float32{1, 0, 0}, nil
}

func knownDocStore(t *testing.T) docstore.Store {
	t.Helper()
	docs := docstore.NewMemory()
	_, err := docs.Create(context.Background(), models.Document{
		ID:        "doc-1",
		Title:     "Irrigation Policy 2024",
		Summary:   "Expands canal subsidies to smallholders.",
		KeyPoints: []string{"Subsidy cap raised", "Applications move online"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return docs
}

func TestRetrievePrimaryIndexHit(t *testing.T) {
	idx := &MockIndex{SearchFunc: func(ctx context.Context, q index.Query) ([]models.RetrievedEvidence, error) {
		return []models.RetrievedEvidence{{ChunkID: "c1", DocumentID: "doc-1", Text: "hit", Score: 0.9}}, nil
	}}
	o := New(idx, knownDocStore(t), &MockEmbedder{})

	res := o.Retrieve(context.Background(), Request{Query: "canal subsidies", DocumentID: "doc-1"})
	if len(res) != 1 || res[0].ChunkID != "c1" {
		t.Fatalf("expected the index hit, got %+v", res)
	}
}

func TestRetrieveEmptyIndexFallsBackToSummary(t *testing.T) {
	idx := &MockIndex{} // zero entries
	o := New(idx, knownDocStore(t), &MockEmbedder{})

	res := o.Retrieve(context.Background(), Request{Query: "who gets subsidies", DocumentID: "doc-1"})
	if len(res) != 1 {
		t.Fatalf("expected exactly one summary pseudo-chunk, got %d", len(res))
	}
	if res[0].DocumentID != "doc-1" {
		t.Errorf("pseudo-chunk document = %q, want doc-1", res[0].DocumentID)
	}
	if res[0].Text == "" {
		t.Error("pseudo-chunk has no text")
	}
}

func TestRetrieveIndexUnavailableFallsBack(t *testing.T) {
	idx := &MockIndex{SearchFunc: func(ctx context.Context, q index.Query) ([]models.RetrievedEvidence, error) {
		return nil, index.ErrUnavailable
	}}
	o := New(idx, knownDocStore(t), &MockEmbedder{})

	res := o.Retrieve(context.Background(), Request{Query: "subsidies", DocumentID: "doc-1"})
	if len(res) != 1 || res[0].DocumentID != "doc-1" {
		t.Fatalf("unavailable index must not abort the chain, got %+v", res)
	}
}

func TestRetrieveWellKnownFallback(t *testing.T) {
	o := New(&MockIndex{}, docstore.NewMemory(), &MockEmbedder{})

	res := o.Retrieve(context.Background(), Request{
		Query:      "how many sections does the act have",
		DocumentID: "income-tax-act-2025",
	})
	if len(res) != 1 {
		t.Fatalf("expected well-known fallback evidence, got %d", len(res))
	}
	if res[0].DocumentID != "income-tax-act-2025" {
		t.Errorf("unexpected document %q", res[0].DocumentID)
	}
}

func TestRetrieveGlobalAggregatesAllSummaries(t *testing.T) {
	docs := docstore.NewMemory()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := docs.Create(context.Background(), models.Document{
			ID: id, Title: "Doc " + id, Summary: "Summary of " + id,
		}); err != nil {
			t.Fatal(err)
		}
	}
	o := New(&MockIndex{}, docs, &MockEmbedder{})

	res := o.Retrieve(context.Background(), Request{Query: "anything", TopK: 10})
	if len(res) != 3 {
		t.Fatalf("expected one pseudo-chunk per document, got %d", len(res))
	}
}

func TestRetrieveEverythingExhausted(t *testing.T) {
	o := New(&MockIndex{}, docstore.NewMemory(), &MockEmbedder{})

	res := o.Retrieve(context.Background(), Request{Query: "anything at all"})
	if len(res) != 0 {
		t.Fatalf("expected no evidence, got %d", len(res))
	}
}

func TestRetrieveEmbeddingFailureTolerated(t *testing.T) {
	var gotVec []float32
	sawSearch := false
	idx := &MockIndex{SearchFunc: func(ctx context.Context, q index.Query) ([]models.RetrievedEvidence, error) {
		sawSearch = true
		gotVec = q.Vector
		return []models.RetrievedEvidence{{ChunkID: "c1", Text: "hit", Score: 0.4}}, nil
	}}
	embedder := &MockEmbedder{EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("no model")
	}}
	o := New(idx, docstore.NewMemory(), embedder)

	res := o.Retrieve(context.Background(), Request{Query: "q"})
	if !sawSearch {
		t.Fatal("index search skipped after embedding failure")
	}
	if gotVec != nil {
		t.Error("expected nil vector after embedding failure")
	}
	if len(res) != 1 {
		t.Fatalf("expected the index hit, got %d results", len(res))
	}
}

func TestRetrieveStrategyPanicSafety(t *testing.T) {
	// A failing step is skipped, not fatal; later steps still run.
	failing := Strategy{Name: "boom", Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
		return nil, errors.New("boom")
	}}
	ok := Strategy{Name: "ok", Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
		return []models.RetrievedEvidence{{ChunkID: "c1"}}, nil
	}}
	o := NewWithStrategies(failing, ok)

	res := o.Retrieve(context.Background(), Request{Query: "q"})
	if len(res) != 1 || res[0].ChunkID != "c1" {
		t.Fatalf("fallback chain aborted on step failure: %+v", res)
	}
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	many := Strategy{Name: "many", Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
		out := make([]models.RetrievedEvidence, 12)
		return out, nil
	}}
	o := NewWithStrategies(many)
	res := o.Retrieve(context.Background(), Request{Query: "q", TopK: 4})
	if len(res) != 4 {
		t.Fatalf("expected topK truncation to 4, got %d", len(res))
	}
}
