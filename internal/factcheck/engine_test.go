package factcheck

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/civicgrid/veridoc/internal/ai"
	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/retrieval"
	"github.com/civicgrid/veridoc/internal/translate"
	"github.com/civicgrid/veridoc/pkg/models"
)

func newTestEngine(r Retriever, llm ai.Client) (*Engine, docstore.Store) {
	docs := docstore.NewMemory()
	return NewEngine(r, docs, llm, noTranslate()), docs
}

func TestAskTooShort(t *testing.T) {
	e, _ := newTestEngine(&mockRetriever{}, &mockLLM{NameVal: "gemini"})

	a := e.Ask(context.Background(), "??", "", "en")
	if a.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", a.Confidence)
	}
	if len(a.Citations) != 0 {
		t.Errorf("citations = %d, want 0", len(a.Citations))
	}
}

func TestAskEmptyCorpus(t *testing.T) {
	e, _ := newTestEngine(&mockRetriever{}, &mockLLM{NameVal: "gemini"})

	a := e.Ask(context.Background(), "What does the new tax act change?", "", "en")
	if a.Confidence != 0 {
		t.Errorf("confidence = %f, want 0.0 for empty corpus", a.Confidence)
	}
	if !strings.Contains(a.Answer, "couldn't find relevant information") {
		t.Errorf("answer = %q, want a no-information response", a.Answer)
	}
	if len(a.Citations) != 0 {
		t.Errorf("citations = %d, want 0", len(a.Citations))
	}
}

func TestAskWithEvidence(t *testing.T) {
	r := &mockRetriever{RetrieveFunc: func(ctx context.Context, req retrieval.Request) []models.RetrievedEvidence {
		return taxEvidence()
	}}
	var seenEvidence []string
	llm := &mockLLM{
		NameVal: "openai",
		AnswerFunc: func(ctx context.Context, question string, evidence []string, title string) (ai.QAResult, error) {
			seenEvidence = evidence
			return ai.QAResult{Answer: "The act consolidates 819 sections into 536.", Confidence: 0.9}, nil
		},
	}
	e, _ := newTestEngine(r, llm)

	a := e.Ask(context.Background(), "How many sections does the act have?", "", "en")
	if a.Answer != "The act consolidates 819 sections into 536." {
		t.Errorf("answer = %q", a.Answer)
	}
	if a.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", a.Confidence)
	}
	if a.ProviderUsed != "openai" {
		t.Errorf("provider = %q, want openai", a.ProviderUsed)
	}
	if len(seenEvidence) != 1 || !strings.Contains(seenEvidence[0], "819 sections") {
		t.Errorf("evidence texts not passed through: %v", seenEvidence)
	}
	if len(a.Citations) != 1 {
		t.Fatalf("citations = %d, want 1", len(a.Citations))
	}
	if a.Citations[0].DocumentID != "income-tax-act-2025" || a.Citations[0].Page != 3 {
		t.Errorf("citation = %+v", a.Citations[0])
	}
}

func TestAskCitationClipped(t *testing.T) {
	long := strings.Repeat("x", maxCitationText+50)
	r := &mockRetriever{RetrieveFunc: func(ctx context.Context, req retrieval.Request) []models.RetrievedEvidence {
		return []models.RetrievedEvidence{{ChunkID: "c1", DocumentID: "d1", Text: long, Score: 0.7}}
	}}
	llm := &mockLLM{
		NameVal: "gemini",
		AnswerFunc: func(ctx context.Context, question string, evidence []string, title string) (ai.QAResult, error) {
			return ai.QAResult{Answer: "ok", Confidence: 0.5}, nil
		},
	}
	e, _ := newTestEngine(r, llm)

	a := e.Ask(context.Background(), "What is x?", "", "en")
	want := strings.Repeat("x", maxCitationText) + "..."
	if a.Citations[0].Text != want {
		t.Errorf("citation text length = %d, want clipped to %d plus ellipsis", len(a.Citations[0].Text), maxCitationText)
	}
}

func TestAskScopedToDocument(t *testing.T) {
	r := &mockRetriever{RetrieveFunc: func(ctx context.Context, req retrieval.Request) []models.RetrievedEvidence {
		return taxEvidence()
	}}
	var seenTitle string
	llm := &mockLLM{
		NameVal: "gemini",
		AnswerFunc: func(ctx context.Context, question string, evidence []string, title string) (ai.QAResult, error) {
			seenTitle = title
			return ai.QAResult{Answer: "ok", Confidence: 0.5}, nil
		},
	}
	e, docs := newTestEngine(r, llm)
	docs.Create(context.Background(), models.Document{ID: "income-tax-act-2025", Title: "Income Tax Act 2025"})

	e.Ask(context.Background(), "What changed?", "income-tax-act-2025", "en")
	if r.lastReq.DocumentID != "income-tax-act-2025" {
		t.Errorf("document scope not forwarded, got %q", r.lastReq.DocumentID)
	}
	if seenTitle != "Income Tax Act 2025" {
		t.Errorf("title = %q, want document title", seenTitle)
	}
}

func TestAskProviderFailure(t *testing.T) {
	r := &mockRetriever{RetrieveFunc: func(ctx context.Context, req retrieval.Request) []models.RetrievedEvidence {
		return taxEvidence()
	}}
	llm := &mockLLM{
		NameVal: "none",
		AnswerFunc: func(ctx context.Context, question string, evidence []string, title string) (ai.QAResult, error) {
			return ai.QAResult{}, errors.New("all providers exhausted")
		},
	}
	e, _ := newTestEngine(r, llm)

	a := e.Ask(context.Background(), "What changed in the act?", "", "en")
	if a.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", a.Confidence)
	}
	if !strings.Contains(a.Answer, "all providers exhausted") {
		t.Errorf("answer should carry the failure reason, got %q", a.Answer)
	}
}

func TestSummarizeDocumentFallback(t *testing.T) {
	llm := &mockLLM{
		NameVal: "none",
		SummarizeFunc: func(ctx context.Context, text string) (string, error) {
			return "", errors.New("no provider")
		},
	}
	e, _ := newTestEngine(&mockRetriever{}, llm)

	long := strings.Repeat("a", summaryFallback+100)
	s := e.SummarizeDocument(context.Background(), models.Document{ID: "d1", FullText: long, KeyPoints: []string{"p1"}}, "en")
	if s.Summary != strings.Repeat("a", summaryFallback)+"..." {
		t.Errorf("fallback summary wrong, length %d", len(s.Summary))
	}
	if len(s.KeyPoints) != 1 {
		t.Errorf("key points not carried, got %v", s.KeyPoints)
	}
}

func TestSummarizeDocument(t *testing.T) {
	llm := &mockLLM{
		NameVal: "gemini",
		SummarizeFunc: func(ctx context.Context, text string) (string, error) {
			return "A concise summary.", nil
		},
	}
	e, _ := newTestEngine(&mockRetriever{}, llm)

	s := e.SummarizeDocument(context.Background(), models.Document{ID: "d1", FullText: "body"}, "en")
	if s.Summary != "A concise summary." {
		t.Errorf("summary = %q", s.Summary)
	}
}

func TestSummarizeDocumentTranslatesKeyPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"translations":[{"text":"anuvaad"}]}]`))
	}))
	defer srv.Close()

	llm := &mockLLM{
		NameVal: "gemini",
		SummarizeFunc: func(ctx context.Context, text string) (string, error) {
			return "A concise summary.", nil
		},
	}
	e := NewEngine(&mockRetriever{}, docstore.NewMemory(), llm, translate.New(srv.URL, "key", "region"))

	doc := models.Document{ID: "d1", FullText: "body", KeyPoints: []string{"first point", "second point"}}
	s := e.SummarizeDocument(context.Background(), doc, "hi")
	if s.Summary != "anuvaad" {
		t.Errorf("summary = %q, want translated text", s.Summary)
	}
	for i, kp := range s.KeyPoints {
		if kp != "anuvaad" {
			t.Errorf("key point %d = %q, want translated text", i, kp)
		}
	}
}

func TestTimelineFallback(t *testing.T) {
	e, _ := newTestEngine(&mockRetriever{}, &mockLLM{NameVal: "none"})

	tl := e.Timeline(context.Background(), models.Document{ID: "d1", FullText: "The act replaces the old law."}, "", "en")
	if tl.Before.Summary != "Information not available" {
		t.Errorf("before = %q", tl.Before.Summary)
	}
	if !strings.Contains(tl.Change.Summary, "replaces the old law") {
		t.Errorf("change should fall back to an excerpt, got %q", tl.Change.Summary)
	}
	if tl.Result.Summary != "To be determined" {
		t.Errorf("result = %q", tl.Result.Summary)
	}
}

func TestTimelinePassThrough(t *testing.T) {
	want := models.Timeline{
		Before: models.TimelineSection{Title: "Previous situation", Summary: "819 sections", KeyPoints: []string{"complex"}},
		Change: models.TimelineSection{Title: "What changes", Summary: "Consolidated to 536 sections", KeyPoints: []string{"simpler"}},
		Result: models.TimelineSection{Title: "Expected outcome", Summary: "Easier compliance", KeyPoints: nil},
	}
	llm := &mockLLM{
		NameVal: "gemini",
		TimelineFunc: func(ctx context.Context, text, priorText string) (models.Timeline, error) {
			return want, nil
		},
	}
	e, _ := newTestEngine(&mockRetriever{}, llm)

	tl := e.Timeline(context.Background(), models.Document{ID: "d1", FullText: "body"}, "prior body", "en")
	if tl.Change.Summary != want.Change.Summary {
		t.Errorf("change = %q, want %q", tl.Change.Summary, want.Change.Summary)
	}
}
