// Package verdict turns raw language-model output into a strictly-typed
// fact-check result. Model output is an untrusted wire format: every field
// has an explicit default and parsing never fails upward.
package verdict

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/civicgrid/veridoc/pkg/models"
)

const (
	// maxEvidence bounds the evidence list in a result.
	maxEvidence = 5
	// maxQuote bounds quoted evidence text.
	maxQuote = 300
	// fallbackConfidence is reported when the model output cannot be parsed.
	fallbackConfidence = 0.3
	// fallbackPrefix bounds the raw-output prefix used as the explanation
	// when parsing fails.
	fallbackPrefix = 240
)

// modelOutput is the JSON shape the model is prompted to produce.
type modelOutput struct {
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Evidence    []struct {
		Source        string `json:"source"`
		Quote         string `json:"quote"`
		SupportsClaim *bool  `json:"supports_claim"`
	} `json:"evidence"`
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParseFactCheck parses raw model output against the evidence that was
// actually retrieved. The final evidence list zips the model's per-item
// judgments with the retrieved chunks positionally; entries the model omitted
// default supports_claim to (verdict == true). No evidence is ever fabricated
// beyond what was retrieved.
func ParseFactCheck(raw string, retrieved []models.RetrievedEvidence) models.FactCheckResult {
	out, ok := decode(raw)
	if !ok {
		return models.FactCheckResult{
			Verdict:     models.VerdictUnverifiable,
			Confidence:  fallbackConfidence,
			Explanation: fallbackExplanation(raw),
			Evidence:    []models.Evidence{},
		}
	}

	v := models.ParseVerdict(out.Verdict)
	conf := out.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}

	explanation := strings.TrimSpace(out.Explanation)
	if explanation == "" {
		explanation = v.Explanation()
	}

	evidence := make([]models.Evidence, 0, maxEvidence)
	for i, chunk := range retrieved {
		if i >= maxEvidence {
			break
		}
		supports := v == models.VerdictTrue
		if i < len(out.Evidence) && out.Evidence[i].SupportsClaim != nil {
			supports = *out.Evidence[i].SupportsClaim
		}
		evidence = append(evidence, models.Evidence{
			DocumentID:    chunk.DocumentID,
			DocumentTitle: chunk.DocumentTitle,
			Page:          chunk.Page,
			Section:       fmt.Sprintf("Retrieved chunk %d", i+1),
			Quote:         TruncateQuote(chunk.Text),
			SupportsClaim: supports,
		})
	}

	return models.FactCheckResult{
		Verdict:     v,
		Confidence:  conf,
		Explanation: explanation,
		Evidence:    evidence,
	}
}

// TruncateQuote bounds a quote, marking truncation with an ellipsis. The cut
// backs off to a rune boundary so a multi-byte character is never split.
func TruncateQuote(s string) string {
	if len(s) <= maxQuote {
		return s
	}
	cut := maxQuote
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func decode(raw string) (modelOutput, bool) {
	m := jsonObjectRe.FindString(raw)
	if m == "" {
		return modelOutput{}, false
	}
	var out modelOutput
	if err := json.Unmarshal([]byte(m), &out); err != nil {
		return modelOutput{}, false
	}
	if out.Verdict == "" && out.Explanation == "" {
		return modelOutput{}, false
	}
	return out, true
}

func fallbackExplanation(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "The model returned no usable output for this claim."
	}
	if len(raw) > fallbackPrefix {
		raw = raw[:fallbackPrefix] + "..."
	}
	return "Could not parse a structured verdict. Model output: " + raw
}
