// Package factcheck runs the claim-verification and question-answering
// pipelines. Both are total: every path terminates in a well-formed result
// object, never an error to the caller.
package factcheck

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/civicgrid/veridoc/internal/ai"
	"github.com/civicgrid/veridoc/internal/retrieval"
	"github.com/civicgrid/veridoc/internal/translate"
	"github.com/civicgrid/veridoc/internal/verdict"
	"github.com/civicgrid/veridoc/pkg/models"
)

const (
	minClaimLength = 10
	factCheckTopK  = 8
	maxClaims      = 10
)

// Retriever is the evidence source for the pipeline.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) []models.RetrievedEvidence
}

// stage names for request tracing. A request moves validating → retrieving →
// synthesizing → done, or lands on the degraded terminal from any stage.
const (
	stageValidating   = "validating"
	stageRetrieving   = "retrieving"
	stageSynthesizing = "synthesizing"
	stageDone         = "done"
	stageDegraded     = "unverifiable_degraded"
)

// Checker verifies claims against the indexed document corpus.
type Checker struct {
	retriever  Retriever
	llm        ai.Client
	translator *translate.Translator
}

// NewChecker builds the claim-verification pipeline.
func NewChecker(retriever Retriever, llm ai.Client, translator *translate.Translator) *Checker {
	return &Checker{retriever: retriever, llm: llm, translator: translator}
}

// CheckClaim verifies a claim, always returning a well-formed result. The
// lang parameter only affects the outward explanation text.
func (c *Checker) CheckClaim(ctx context.Context, claim, lang string) models.FactCheckResult {
	trace := log.With().Str("pipeline", "fact_check").Logger()

	trace.Debug().Str("stage", stageValidating).Msg("checking claim")
	claim = Sanitize(claim)
	if len(strings.TrimSpace(claim)) < minClaimLength {
		return c.finish(ctx, lang, models.FactCheckResult{
			Claim:       claim,
			Verdict:     models.VerdictUnverifiable,
			Confidence:  0,
			Explanation: "Please provide a more detailed claim to verify.",
			Evidence:    []models.Evidence{},
		}, stageDegraded)
	}

	trace.Debug().Str("stage", stageRetrieving).Msg("retrieving evidence")
	evidence := c.retriever.Retrieve(ctx, retrieval.Request{Query: claim, TopK: factCheckTopK})
	if len(evidence) == 0 {
		return c.finish(ctx, lang, models.FactCheckResult{
			Claim:      claim,
			Verdict:    models.VerdictUnverifiable,
			Confidence: 0,
			Explanation: "No relevant official documents were found to verify this claim. " +
				"This does not mean the claim is false; the relevant documents are simply not indexed.",
			Evidence: []models.Evidence{},
		}, stageDegraded)
	}

	trace.Debug().Str("stage", stageSynthesizing).Int("evidence", len(evidence)).Msg("asking model for verdict")
	raw, err := c.llm.FactCheck(ctx, claim, evidence)
	if err != nil {
		trace.Warn().Err(err).Msg("every provider failed for fact-check")
		return c.finish(ctx, lang, models.FactCheckResult{
			Claim:       claim,
			Verdict:     models.VerdictUnverifiable,
			Confidence:  0,
			Explanation: "The verification service is currently unavailable (" + err.Error() + "). Please try again later.",
			Evidence:    []models.Evidence{},
		}, stageDegraded)
	}

	result := verdict.ParseFactCheck(raw, evidence)
	result.Claim = claim
	return c.finish(ctx, lang, result, stageDone)
}

// finish stamps the provider, translates outward text, and logs the terminal
// stage.
func (c *Checker) finish(ctx context.Context, lang string, r models.FactCheckResult, stage string) models.FactCheckResult {
	r.ProviderUsed = c.llm.Name()
	if lang != "" && lang != "en" {
		r.Explanation = c.translator.Translate(ctx, r.Explanation, lang, "en")
	}
	log.Debug().Str("pipeline", "fact_check").Str("stage", stage).Str("verdict", string(r.Verdict)).Msg("fact-check finished")
	return r
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractClaims pulls verifiable factual claims out of free text, capped at
// ten. Failures yield an empty list.
func (c *Checker) ExtractClaims(ctx context.Context, text string) []string {
	text = Sanitize(text)
	if text == "" {
		return nil
	}

	prompt := `Extract all verifiable factual claims from this text.
Only include claims that can be checked against official documents.
Ignore opinions, predictions, and subjective statements.

Text:
` + text + `

Return ONLY a JSON array of claim strings:`

	raw, err := c.llm.Generate(ctx, prompt, 1024)
	if err != nil {
		log.Warn().Err(err).Msg("claim extraction failed")
		return nil
	}
	m := jsonArrayRe.FindString(raw)
	if m == "" {
		return nil
	}
	var claims []string
	if err := json.Unmarshal([]byte(m), &claims); err != nil {
		return nil
	}
	if len(claims) > maxClaims {
		claims = claims[:maxClaims]
	}
	return claims
}
