package ai

import (
	"strings"

	"github.com/rs/zerolog"
)

// ChainSettings carries the provider credentials and model names needed to
// assemble a provider chain, in preference order.
type ChainSettings struct {
	Providers      []string
	GeminiAPIKey   string
	GeminiModel    string
	OpenAIAPIKey   string
	OpenAIEndpoint string
	OpenAIModel    string
	EmbedModel     string
	Dim            int
}

// BuildChain constructs one client per configured provider and wraps them in
// a Router. Providers missing credentials or failing to initialize are
// skipped with a warning rather than aborting startup.
func BuildChain(s ChainSettings, logger zerolog.Logger) *Router {
	var clients []Client
	for _, name := range s.Providers {
		var cc *ClientConfig
		switch strings.ToLower(name) {
		case "gemini":
			if s.GeminiAPIKey == "" {
				logger.Warn().Msg("gemini configured without API key, skipping")
				continue
			}
			cc = &ClientConfig{
				Provider:   ProviderGemini,
				APIKey:     s.GeminiAPIKey,
				ChatModel:  s.GeminiModel,
				EmbedModel: s.EmbedModel,
				Dim:        s.Dim,
			}
		case "openai", "azure":
			if s.OpenAIAPIKey == "" {
				logger.Warn().Msg("openai configured without API key, skipping")
				continue
			}
			cc = &ClientConfig{
				Provider:   ProviderOpenAI,
				APIKey:     s.OpenAIAPIKey,
				Endpoint:   s.OpenAIEndpoint,
				ChatModel:  s.OpenAIModel,
				EmbedModel: s.EmbedModel,
				Dim:        s.Dim,
			}
		case "stub":
			cc = &ClientConfig{Provider: ProviderStub, Dim: s.Dim}
		default:
			logger.Warn().Str("provider", name).Msg("unknown provider, skipping")
			continue
		}
		c, err := NewClient(cc)
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("provider client failed to initialize")
			continue
		}
		clients = append(clients, c)
	}
	return NewRouter(clients...)
}
