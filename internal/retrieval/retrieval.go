// Package retrieval runs the layered fallback chain that turns a claim or
// question into grounding evidence. As long as any usable evidence source
// exists, Retrieve returns something.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/index"
	"github.com/civicgrid/veridoc/pkg/models"
)

// Embedder converts query text to a vector. A failed embedding is tolerated;
// the index then falls back to its lexical signal.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request is one retrieval call.
type Request struct {
	Query      string
	DocumentID string // optional: restrict to one document
	TopK       int
}

// Strategy is one step of the fallback chain: a pure evidence lookup that
// either yields candidates or passes.
type Strategy struct {
	Name string
	Run  func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error)
}

// Orchestrator executes the strategies in order, stopping at the first that
// yields any evidence.
type Orchestrator struct {
	strategies []Strategy
}

// summaryScore ranks synthesized summary pseudo-chunks below any direct index
// hit would typically score.
const summaryScore = 0.5

// New wires the default chain: index search, then per-document summary, then
// the built-in well-known table, then (for global queries) summaries across
// every known document.
func New(idx index.Index, docs docstore.Store, embedder Embedder) *Orchestrator {
	return &Orchestrator{strategies: []Strategy{
		indexSearch(idx, embedder),
		documentSummary(docs),
		wellKnownDocument(),
		allDocumentSummaries(docs),
	}}
}

// NewWithStrategies builds an orchestrator over a custom chain.
func NewWithStrategies(strategies ...Strategy) *Orchestrator {
	return &Orchestrator{strategies: strategies}
}

// Retrieve walks the fallback chain. A failure inside one step is logged and
// the chain proceeds; only when every step yields nothing is an empty result
// returned, signaling "no evidence" to the caller.
func (o *Orchestrator) Retrieve(ctx context.Context, req Request) []models.RetrievedEvidence {
	if req.TopK <= 0 {
		req.TopK = 5
	}
	for _, s := range o.strategies {
		res, err := s.Run(ctx, req)
		if err != nil {
			log.Warn().Err(err).Str("strategy", s.Name).Msg("retrieval step failed, falling back")
			continue
		}
		if len(res) > 0 {
			if len(res) > req.TopK {
				res = res[:req.TopK]
			}
			log.Debug().Str("strategy", s.Name).Int("results", len(res)).Msg("evidence retrieved")
			return res
		}
	}
	return nil
}

// indexSearch is the primary step: similarity search against the evidence
// index. An embedding failure degrades to a nil vector rather than aborting.
func indexSearch(idx index.Index, embedder Embedder) Strategy {
	return Strategy{
		Name: "index_search",
		Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
			var vec []float32
			if embedder != nil {
				v, err := embedder.Embed(ctx, req.Query)
				if err != nil {
					log.Warn().Err(err).Msg("query embedding failed, searching without vector")
				} else {
					vec = v
				}
			}
			return idx.Search(ctx, index.Query{
				Text:       req.Query,
				Vector:     vec,
				DocumentID: req.DocumentID,
				TopK:       req.TopK,
			})
		},
	}
}

// documentSummary synthesizes a single pseudo-chunk from the document's
// stored summary and key points when the index had nothing for it.
func documentSummary(docs docstore.Store) Strategy {
	return Strategy{
		Name: "document_summary",
		Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
			if req.DocumentID == "" {
				return nil, nil
			}
			doc, ok, err := docs.Get(ctx, req.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("document lookup: %w", err)
			}
			if !ok || (doc.Summary == "" && len(doc.KeyPoints) == 0) {
				return nil, nil
			}
			return []models.RetrievedEvidence{summaryEvidence(doc)}, nil
		},
	}
}

// wellKnownDocument consults the static built-in reference table.
func wellKnownDocument() Strategy {
	return Strategy{
		Name: "well_known",
		Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
			if req.DocumentID == "" {
				return nil, nil
			}
			doc, ok := docstore.WellKnown(req.DocumentID)
			if !ok {
				return nil, nil
			}
			return []models.RetrievedEvidence{summaryEvidence(doc)}, nil
		},
	}
}

// allDocumentSummaries aggregates summaries across every known document, one
// pseudo-chunk per document. Only used for global queries.
func allDocumentSummaries(docs docstore.Store) Strategy {
	return Strategy{
		Name: "all_summaries",
		Run: func(ctx context.Context, req Request) ([]models.RetrievedEvidence, error) {
			if req.DocumentID != "" {
				return nil, nil
			}
			all, err := docs.List(ctx, "")
			if err != nil {
				return nil, fmt.Errorf("document list: %w", err)
			}
			var out []models.RetrievedEvidence
			for _, doc := range all {
				if doc.Summary == "" && len(doc.KeyPoints) == 0 {
					continue
				}
				out = append(out, summaryEvidence(doc))
			}
			return out, nil
		},
	}
}

// summaryEvidence turns a document record into a pseudo-chunk.
func summaryEvidence(doc models.Document) models.RetrievedEvidence {
	var b strings.Builder
	b.WriteString(doc.Summary)
	if len(doc.KeyPoints) > 0 {
		b.WriteString("\nKey points:")
		for _, p := range doc.KeyPoints {
			b.WriteString("\n- ")
			b.WriteString(p)
		}
	}
	return models.RetrievedEvidence{
		ChunkID:       "summary:" + doc.ID,
		DocumentID:    doc.ID,
		DocumentTitle: doc.Title,
		Text:          strings.TrimSpace(b.String()),
		Score:         summaryScore,
	}
}
