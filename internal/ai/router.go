package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/civicgrid/veridoc/pkg/models"
)

// ErrNoProvider is returned when no language-model provider is configured or
// every configured provider has failed.
var ErrNoProvider = errors.New("no language model provider available")

// Router fans capability calls out to an ordered list of providers. The first
// provider in the list is active; a call that fails against it is retried once
// against the next provider before the failure surfaces. Failover is
// sequential, never a race.
type Router struct {
	clients []Client
	timeout time.Duration
}

// NewRouter builds a router over the given providers in preference order.
// An empty list is valid: every capability call then fails with ErrNoProvider
// and callers produce their degraded defaults.
func NewRouter(clients ...Client) *Router {
	kept := make([]Client, 0, len(clients))
	for _, c := range clients {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return &Router{clients: kept, timeout: 45 * time.Second}
}

// Name reports the active provider.
func (r *Router) Name() string {
	if len(r.clients) == 0 {
		return "none"
	}
	return r.clients[0].Name()
}

// Dim returns the active provider's embedding dimensionality.
func (r *Router) Dim() int {
	if len(r.clients) == 0 {
		return 0
	}
	return r.clients[0].Dim()
}

// attempt runs fn against the active provider and, on failure, once against
// the next provider in preference order. One retry hop, no more.
func (r *Router) attempt(ctx context.Context, capability string, fn func(context.Context, Client) error) error {
	if len(r.clients) == 0 {
		return ErrNoProvider
	}

	limit := 2
	if len(r.clients) < limit {
		limit = len(r.clients)
	}

	var lastErr error
	for i := 0; i < limit; i++ {
		c := r.clients[i]
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := fn(callCtx, c)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn().Err(err).
			Str("provider", c.Name()).
			Str("capability", capability).
			Msg("provider call failed")
	}
	return lastErr
}

// Embed never fails over across providers with different dimensionalities:
// the index column is sized to the active provider, so a vector from an
// incompatible fallback would be rejected wholesale.
func (r *Router) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(r.clients) == 0 {
		return nil, ErrNoProvider
	}

	dim := r.clients[0].Dim()
	var lastErr error
	tried := 0
	for _, c := range r.clients {
		if tried == 2 {
			break
		}
		if c.Dim() != dim {
			continue
		}
		tried++
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		v, err := c.Embed(callCtx, text)
		cancel()
		if err == nil {
			return v, nil
		}
		lastErr = err
		log.Warn().Err(err).
			Str("provider", c.Name()).
			Str("capability", "embed").
			Msg("provider call failed")
	}
	return nil, lastErr
}

func (r *Router) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	var out string
	err := r.attempt(ctx, "generate", func(ctx context.Context, c Client) error {
		s, err := c.Generate(ctx, prompt, maxTokens)
		out = s
		return err
	})
	return out, err
}

func (r *Router) Summarize(ctx context.Context, text string) (string, error) {
	var out string
	err := r.attempt(ctx, "summarize", func(ctx context.Context, c Client) error {
		s, err := c.Summarize(ctx, text)
		out = s
		return err
	})
	return out, err
}

func (r *Router) ExtractKeyPoints(ctx context.Context, text string, n int) ([]string, error) {
	var out []string
	err := r.attempt(ctx, "key_points", func(ctx context.Context, c Client) error {
		p, err := c.ExtractKeyPoints(ctx, text, n)
		out = p
		return err
	})
	return out, err
}

func (r *Router) AnswerQuestion(ctx context.Context, question string, evidence []string, title string) (QAResult, error) {
	var out QAResult
	err := r.attempt(ctx, "answer", func(ctx context.Context, c Client) error {
		res, err := c.AnswerQuestion(ctx, question, evidence, title)
		out = res
		return err
	})
	return out, err
}

func (r *Router) FactCheck(ctx context.Context, claim string, evidence []models.RetrievedEvidence) (string, error) {
	var out string
	err := r.attempt(ctx, "fact_check", func(ctx context.Context, c Client) error {
		s, err := c.FactCheck(ctx, claim, evidence)
		out = s
		return err
	})
	return out, err
}

func (r *Router) GenerateTimeline(ctx context.Context, text, priorText string) (models.Timeline, error) {
	var out models.Timeline
	err := r.attempt(ctx, "timeline", func(ctx context.Context, c Client) error {
		t, err := c.GenerateTimeline(ctx, text, priorText)
		out = t
		return err
	})
	return out, err
}
