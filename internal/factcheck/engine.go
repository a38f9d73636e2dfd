package factcheck

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/civicgrid/veridoc/internal/ai"
	"github.com/civicgrid/veridoc/internal/docstore"
	"github.com/civicgrid/veridoc/internal/retrieval"
	"github.com/civicgrid/veridoc/internal/translate"
	"github.com/civicgrid/veridoc/pkg/models"
)

const (
	minQuestionLength = 3
	askTopK           = 5
	maxCitationText   = 200
	summaryFallback   = 300
)

// Engine answers questions and produces document summaries and timelines on
// top of the shared retrieval and provider layers. Like Checker, every
// method is total.
type Engine struct {
	retriever  Retriever
	docs       docstore.Store
	llm        ai.Client
	translator *translate.Translator
}

// NewEngine builds the question-answering engine.
func NewEngine(retriever Retriever, docs docstore.Store, llm ai.Client, translator *translate.Translator) *Engine {
	return &Engine{retriever: retriever, docs: docs, llm: llm, translator: translator}
}

// Ask answers a question from indexed evidence. When documentID is set the
// search is scoped to that document; otherwise it runs corpus-wide.
func (e *Engine) Ask(ctx context.Context, question, documentID, lang string) models.Answer {
	if len(strings.TrimSpace(question)) < minQuestionLength {
		return e.finishAnswer(ctx, lang, models.Answer{
			Answer:     "Please ask a more specific question.",
			Citations:  []models.Citation{},
			Confidence: 0,
		})
	}
	question = Sanitize(question)

	evidence := e.retriever.Retrieve(ctx, retrieval.Request{
		Query:      question,
		DocumentID: documentID,
		TopK:       askTopK,
	})
	if len(evidence) == 0 {
		return e.finishAnswer(ctx, lang, models.Answer{
			Answer:     "I couldn't find relevant information in the indexed documents to answer this question.",
			Citations:  []models.Citation{},
			Confidence: 0,
		})
	}

	title := ""
	if documentID != "" {
		if doc, ok, err := e.docs.Get(ctx, documentID); err == nil && ok {
			title = doc.Title
		}
	}

	texts := make([]string, len(evidence))
	for i, ev := range evidence {
		texts[i] = ev.Text
	}

	qa, err := e.llm.AnswerQuestion(ctx, question, texts, title)
	if err != nil {
		log.Warn().Err(err).Msg("every provider failed for question answering")
		return e.finishAnswer(ctx, lang, models.Answer{
			Answer:     "The answering service is currently unavailable (" + err.Error() + "). Please try again later.",
			Citations:  []models.Citation{},
			Confidence: 0,
		})
	}

	citations := make([]models.Citation, 0, len(evidence))
	for _, ev := range evidence {
		citations = append(citations, models.Citation{
			DocumentID: ev.DocumentID,
			Page:       ev.Page,
			Score:      ev.Score,
			Text:       clip(ev.Text, maxCitationText),
		})
	}

	return e.finishAnswer(ctx, lang, models.Answer{
		Answer:     qa.Answer,
		Citations:  citations,
		Confidence: qa.Confidence,
	})
}

// SummarizeDocument summarizes a document's full text. Provider failure
// degrades to a leading excerpt of the text itself.
func (e *Engine) SummarizeDocument(ctx context.Context, doc models.Document, lang string) models.DocumentSummary {
	summary, err := e.llm.Summarize(ctx, doc.FullText)
	if err != nil {
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("summary generation failed, using excerpt")
		summary = clip(doc.FullText, summaryFallback)
	}
	keyPoints := doc.KeyPoints
	if lang != "" && lang != "en" {
		summary = e.translator.Translate(ctx, summary, lang, "en")
		keyPoints = e.translator.TranslateBatch(ctx, keyPoints, lang, "en")
	}
	return models.DocumentSummary{Summary: summary, KeyPoints: keyPoints}
}

// Timeline produces a before/change/result view of a document, optionally
// contrasting against a prior document's text.
func (e *Engine) Timeline(ctx context.Context, doc models.Document, priorText, lang string) models.Timeline {
	tl, err := e.llm.GenerateTimeline(ctx, doc.FullText, priorText)
	if err != nil {
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("timeline generation failed")
		tl = models.Timeline{
			Before: models.TimelineSection{Title: "Previous situation", Summary: "Information not available", KeyPoints: []string{}},
			Change: models.TimelineSection{Title: "What changes", Summary: clip(doc.FullText, summaryFallback), KeyPoints: []string{}},
			Result: models.TimelineSection{Title: "Expected outcome", Summary: "To be determined", KeyPoints: []string{}},
		}
	}
	if lang != "" && lang != "en" {
		tl.Before.Summary = e.translator.Translate(ctx, tl.Before.Summary, lang, "en")
		tl.Change.Summary = e.translator.Translate(ctx, tl.Change.Summary, lang, "en")
		tl.Result.Summary = e.translator.Translate(ctx, tl.Result.Summary, lang, "en")
		tl.Before.KeyPoints = e.translator.TranslateBatch(ctx, tl.Before.KeyPoints, lang, "en")
		tl.Change.KeyPoints = e.translator.TranslateBatch(ctx, tl.Change.KeyPoints, lang, "en")
		tl.Result.KeyPoints = e.translator.TranslateBatch(ctx, tl.Result.KeyPoints, lang, "en")
	}
	return tl
}

func (e *Engine) finishAnswer(ctx context.Context, lang string, a models.Answer) models.Answer {
	a.ProviderUsed = e.llm.Name()
	if lang != "" && lang != "en" {
		a.Answer = e.translator.Translate(ctx, a.Answer, lang, "en")
	}
	return a
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
