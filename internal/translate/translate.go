// Package translate is the outward translation boundary. Only final answer,
// explanation, and summary strings pass through it; retrieval inputs never
// do. Failures fall back to the original text and never cross the pipeline
// boundary as errors.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Translator translates outward-facing strings. The zero value is an
// unconfigured translator that passes text through unchanged.
type Translator struct {
	endpoint string
	key      string
	region   string
	client   *http.Client
}

// New creates a translator. Empty key leaves it unconfigured.
func New(endpoint, key, region string) *Translator {
	if endpoint == "" {
		endpoint = "https://api.cognitive.microsofttranslator.com"
	}
	return &Translator{
		endpoint: endpoint,
		key:      key,
		region:   region,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured reports whether translation calls will be attempted.
func (t *Translator) Configured() bool {
	return t != nil && t.key != ""
}

type translateItem struct {
	Text string `json:"text"`
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Translate converts text into targetLang. Any failure returns the original
// text untranslated.
func (t *Translator) Translate(ctx context.Context, text, targetLang, sourceLang string) string {
	if !t.Configured() || text == "" || targetLang == "" || targetLang == sourceLang {
		return text
	}

	q := url.Values{}
	q.Set("api-version", "3.0")
	q.Set("to", targetLang)
	if sourceLang != "" {
		q.Set("from", sourceLang)
	}

	body, err := json.Marshal([]translateItem{{Text: text}})
	if err != nil {
		return text
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.endpoint+"/translate?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return text
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", t.key)
	if t.region != "" {
		req.Header.Set("Ocp-Apim-Subscription-Region", t.region)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("target", targetLang).Msg("translation failed, returning original text")
		return text
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Str("target", targetLang).Msg("translation non-200, returning original text")
		return text
	}

	var out []translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return text
	}
	if len(out) == 0 || len(out[0].Translations) == 0 || out[0].Translations[0].Text == "" {
		return text
	}
	return out[0].Translations[0].Text
}

// TranslateBatch translates each string independently, keeping originals for
// any that fail.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, targetLang, sourceLang string) []string {
	if !t.Configured() {
		return texts
	}
	out := make([]string, len(texts))
	for i, s := range texts {
		out[i] = t.Translate(ctx, s, targetLang, sourceLang)
	}
	return out
}
