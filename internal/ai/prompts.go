package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/civicgrid/veridoc/pkg/models"
)

// systemInstruction is sent with every capability call. Low temperature plus
// this instruction keeps output factual and citable.
const systemInstruction = "You are a neutral assistant for official documents. " +
	"Be strictly factual and unbiased, use only the provided source text, cite " +
	"sources where possible, and never add opinions or speculation."

const (
	maxDocumentInput = 15000
	maxEvidenceQuote = 300
	defaultKeyPoints = 5
)

func summaryPrompt(text string) string {
	return fmt.Sprintf(`Write a plain-language summary of this official document in 4-6 sentences.
Explain what the document is about, why it matters to ordinary people, and what changes for them.
Avoid legal jargon and expand acronyms. State only what the document actually says.

Document text:
%s

Summary:`, truncate(text, maxDocumentInput))
}

func keyPointsPrompt(text string, n int) string {
	return fmt.Sprintf(`Extract exactly %d key points from this official document, focused on practical impact for ordinary people.
Each point must be one clear sentence in simple language.
Return ONLY a JSON array of strings.

Document:
%s

Key points (JSON array):`, n, truncate(text, maxDocumentInput))
}

func answerPrompt(question string, evidence []string, title string) string {
	context := strings.Join(evidence, "\n\n---\n\n")
	return fmt.Sprintf(`Answer the question based ONLY on the provided document excerpts.
If the answer is not in the excerpts, say the information is not available in the document.

Document: %s

Relevant excerpts:
%s

Question: %s

Respond as JSON:
{"answer": "your answer", "confidence": 0.0 to 1.0}

JSON response:`, title, context, question)
}

func factCheckPrompt(claim string, evidence []models.RetrievedEvidence) string {
	var b strings.Builder
	for i, ev := range evidence {
		fmt.Fprintf(&b, "\n[Source %d: %s]\n%s\n", i+1, ev.DocumentTitle, ev.Text)
	}
	return fmt.Sprintf(`Verify this claim against the official document excerpts below.

Claim to verify: %q

Official document excerpts:
%s

Respond as JSON:
{
  "verdict": "true" | "false" | "partially_true" | "unverifiable",
  "confidence": 0.0 to 1.0,
  "explanation": "2-3 sentence explanation of the verdict",
  "evidence": [{"source": "document name", "quote": "relevant quote", "supports_claim": true or false}]
}

Use only the provided excerpts as evidence. If no relevant evidence exists, the verdict is "unverifiable".

JSON response:`, claim, b.String())
}

func timelinePrompt(text, priorText string) string {
	var prior string
	if priorText != "" {
		prior = fmt.Sprintf("Previous law or situation:\n%s\n\n", truncate(priorText, 5000))
	}
	return fmt.Sprintf(`Analyze this official document and describe it as a before/change/result timeline.

%sCurrent document:
%s

Respond as JSON with exactly this structure:
{
  "before": {"title": "...", "summary": "2-3 sentences", "key_points": ["..."]},
  "change": {"title": "...", "summary": "2-3 sentences", "key_points": ["..."]},
  "result": {"title": "...", "summary": "2-3 sentences", "key_points": ["..."]}
}

Be strictly factual and use simple language. If no previous-law context is given, infer it from the document's own references.

JSON response:`, prior, truncate(text, 10000))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// extractJSONObject pulls the outermost JSON object out of free-form model
// output, tolerating surrounding prose and markdown fences.
func extractJSONObject(raw string) (string, bool) {
	m := jsonObjectRe.FindString(raw)
	return m, m != ""
}

// parseKeyPoints parses a JSON string array, falling back to non-empty lines
// when the model ignored the format.
func parseKeyPoints(raw string, n int) []string {
	if m := jsonArrayRe.FindString(raw); m != "" {
		var points []string
		if err := json.Unmarshal([]byte(m), &points); err == nil {
			if len(points) > n {
				points = points[:n]
			}
			return points
		}
	}
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		l = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(l), "-*0123456789. "))
		if l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) > n {
		lines = lines[:n]
	}
	return lines
}

// parseQAResult parses the answer/confidence JSON shape; malformed output
// falls back to treating the whole response as the answer.
func parseQAResult(raw string) QAResult {
	if m, ok := extractJSONObject(raw); ok {
		var out QAResult
		if err := json.Unmarshal([]byte(m), &out); err == nil && out.Answer != "" {
			if out.Confidence < 0 {
				out.Confidence = 0
			}
			if out.Confidence > 1 {
				out.Confidence = 1
			}
			return out
		}
	}
	return QAResult{Answer: strings.TrimSpace(raw), Confidence: 0.5}
}

// parseTimeline parses the before/change/result JSON shape. Malformed output
// yields a well-formed placeholder timeline, not an error.
func parseTimeline(raw string) models.Timeline {
	if m, ok := extractJSONObject(raw); ok {
		var out models.Timeline
		if err := json.Unmarshal([]byte(m), &out); err == nil &&
			(out.Before.Summary != "" || out.Change.Summary != "" || out.Result.Summary != "") {
			return out
		}
	}
	return models.Timeline{
		Before: models.TimelineSection{Title: "Previous situation", Summary: "Information not available", KeyPoints: []string{}},
		Change: models.TimelineSection{Title: "What changes", Summary: truncate(strings.TrimSpace(raw), maxEvidenceQuote), KeyPoints: []string{}},
		Result: models.TimelineSection{Title: "Expected outcome", Summary: "To be determined", KeyPoints: []string{}},
	}
}
