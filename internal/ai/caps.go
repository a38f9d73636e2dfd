package ai

import (
	"context"
	"strings"

	"github.com/civicgrid/veridoc/pkg/models"
)

// generateFunc issues one raw completion against a provider.
type generateFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

// caps derives the full capability set from a provider's generate call.
// Providers differ only in transport and embedding; the prompting and output
// parsing are identical across them.
type caps struct {
	gen generateFunc
}

const (
	summaryMaxTokens   = 512
	keyPointsMaxTokens = 512
	answerMaxTokens    = 1024
	factCheckMaxTokens = 1536
	timelineMaxTokens  = 1536

	maxSummaryLength = 800
)

func (c caps) Summarize(ctx context.Context, text string) (string, error) {
	out, err := c.gen(ctx, summaryPrompt(text), summaryMaxTokens)
	if err != nil {
		return "", err
	}
	return truncate(strings.TrimSpace(out), maxSummaryLength), nil
}

func (c caps) ExtractKeyPoints(ctx context.Context, text string, n int) ([]string, error) {
	if n <= 0 {
		n = defaultKeyPoints
	}
	out, err := c.gen(ctx, keyPointsPrompt(text, n), keyPointsMaxTokens)
	if err != nil {
		return nil, err
	}
	return parseKeyPoints(out, n), nil
}

func (c caps) AnswerQuestion(ctx context.Context, question string, evidence []string, title string) (QAResult, error) {
	out, err := c.gen(ctx, answerPrompt(question, evidence, title), answerMaxTokens)
	if err != nil {
		return QAResult{}, err
	}
	return parseQAResult(out), nil
}

func (c caps) FactCheck(ctx context.Context, claim string, evidence []models.RetrievedEvidence) (string, error) {
	return c.gen(ctx, factCheckPrompt(claim, evidence), factCheckMaxTokens)
}

func (c caps) GenerateTimeline(ctx context.Context, text, priorText string) (models.Timeline, error) {
	out, err := c.gen(ctx, timelinePrompt(text, priorText), timelineMaxTokens)
	if err != nil {
		return models.Timeline{}, err
	}
	return parseTimeline(out), nil
}
