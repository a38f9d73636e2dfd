package models

import (
	"strings"
	"time"
)

// Verdict classifies how well a claim matches the retrieved evidence.
type Verdict string

const (
	VerdictTrue          Verdict = "true"
	VerdictFalse         Verdict = "false"
	VerdictPartiallyTrue Verdict = "partially_true"
	VerdictUnverifiable  Verdict = "unverifiable"
)

// ParseVerdict maps a model-produced verdict string onto the canonical enum.
// Unrecognized values map to VerdictUnverifiable.
func ParseVerdict(s string) Verdict {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return VerdictTrue
	case "false":
		return VerdictFalse
	case "partially_true", "partially true", "partial":
		return VerdictPartiallyTrue
	default:
		return VerdictUnverifiable
	}
}

// Explanation returns a user-facing description of the verdict.
func (v Verdict) Explanation() string {
	switch v {
	case VerdictTrue:
		return "This claim is supported by official documents."
	case VerdictFalse:
		return "This claim contradicts what is stated in official documents."
	case VerdictPartiallyTrue:
		return "This claim is partially accurate but missing important context or contains some inaccuracies."
	default:
		return "We cannot verify this claim with the available documents."
	}
}

// Chunk is a bounded segment of a document, carrying position metadata for
// citation. The ID is derived from the document ID and the chunk ordinal so
// that re-indexing a document deterministically overwrites old chunks.
type Chunk struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	Text        string    `json:"text"`
	Page        int       `json:"page"`
	Index       int       `json:"chunk_index"`
	StartOffset int       `json:"start_offset"`
	EndOffset   int       `json:"end_offset"`
	Category    string    `json:"category,omitempty"`
	SourceOrg   string    `json:"source_org,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// RetrievedEvidence is a scored chunk (or synthesized summary pseudo-chunk)
// returned by retrieval. Ordering is descending score, ties broken by the
// original chunk order.
type RetrievedEvidence struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Page          int     `json:"page,omitempty"`
	ChunkIndex    int     `json:"chunk_index"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// Evidence is one citation entry in a fact-check result.
type Evidence struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	Page          int    `json:"page,omitempty"`
	Section       string `json:"section,omitempty"`
	Quote         string `json:"quote"`
	SupportsClaim bool   `json:"supports_claim"`
}

// FactCheckResult is the terminal result of a fact-check request. It is
// always well-formed: the verdict is never empty and evidence never exceeds
// five entries.
type FactCheckResult struct {
	Claim        string     `json:"claim"`
	Verdict      Verdict    `json:"verdict"`
	Confidence   float64    `json:"confidence"`
	Explanation  string     `json:"explanation"`
	Evidence     []Evidence `json:"evidence"`
	ProviderUsed string     `json:"provider_used,omitempty"`
}

// Citation is a source reference attached to an answer.
type Citation struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Page       int     `json:"page,omitempty"`
	Section    string  `json:"section,omitempty"`
	Score      float64 `json:"relevance_score"`
}

// Answer is the result of a grounded question-answering request.
type Answer struct {
	Answer       string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	Confidence   float64    `json:"confidence"`
	ProviderUsed string     `json:"provider_used,omitempty"`
}

// Document categories.
const (
	CategoryBill         = "bill"
	CategoryAct          = "act"
	CategoryNotification = "notification"
	CategoryReport       = "report"
	CategoryJudgment     = "judgment"
	CategoryPolicy       = "policy"
)

// Document is the metadata record for an indexed source document. The core
// pipeline only reads these; text extraction happens upstream.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Summary   string    `json:"summary"`
	KeyPoints []string  `json:"key_points"`
	FullText  string    `json:"full_text,omitempty"`
	PageCount int       `json:"page_count,omitempty"`
	SourceOrg string    `json:"source_org,omitempty"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimelineSection is one panel of the before/change/result view.
type TimelineSection struct {
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Timeline is the "simply put" before/change/result breakdown of a document.
type Timeline struct {
	Before TimelineSection `json:"before"`
	Change TimelineSection `json:"change"`
	Result TimelineSection `json:"result"`
}

// DocumentSummary is the generated summary plus key points for a document.
type DocumentSummary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}
