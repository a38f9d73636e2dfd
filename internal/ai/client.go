package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/civicgrid/veridoc/pkg/models"
)

// QAResult is the structured outcome of a grounded question-answering call.
type QAResult struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

// Client is the capability contract every language-model provider implements.
// FactCheck returns the model's raw structured output; parsing and repair into
// a typed result happens in the verdict package.
type Client interface {
	Name() string
	Dim() int
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	Summarize(ctx context.Context, text string) (string, error)
	ExtractKeyPoints(ctx context.Context, text string, n int) ([]string, error)
	AnswerQuestion(ctx context.Context, question string, evidence []string, title string) (QAResult, error)
	FactCheck(ctx context.Context, claim string, evidence []models.RetrievedEvidence) (string, error)
	GenerateTimeline(ctx context.Context, text, priorText string) (models.Timeline, error)
}

// Provider is enumeration of supported AI providers.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for AI clients.
type ClientConfig struct {
	Provider   Provider
	APIKey     string
	Endpoint   string // Azure OpenAI endpoint; empty means api.openai.com
	EmbedModel string
	ChatModel  string
	Dim        int
}

// NewClient creates a single provider client based on configuration.
func NewClient(config *ClientConfig) (Client, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderGemini:
		return NewGeminiClient(context.Background(), config)
	case ProviderStub:
		return NewStubClient(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubClient is a deterministic, offline implementation of the Client
// interface. Its zero-vector embeddings are the accepted degraded mode when
// no embedding model is available.
type StubClient struct {
	dim int
}

// NewStubClient creates a new StubClient.
func NewStubClient(dim int) *StubClient {
	if dim <= 0 {
		dim = 384
	}
	return &StubClient{dim: dim}
}

func (s *StubClient) Name() string { return string(ProviderStub) }
func (s *StubClient) Dim() int     { return s.dim }

// Embed returns a zero vector; similarity search degrades to arbitrary order.
func (s *StubClient) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

func (s *StubClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return "", errors.New("stub provider cannot generate")
}

func (s *StubClient) Summarize(ctx context.Context, text string) (string, error) {
	// First sentence or a bounded prefix, whichever is shorter.
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, ".!?"); i > 0 && i < 300 {
		return text[:i+1], nil
	}
	if len(text) > 300 {
		return text[:300], nil
	}
	return text, nil
}

func (s *StubClient) ExtractKeyPoints(ctx context.Context, text string, n int) ([]string, error) {
	return nil, errors.New("stub provider cannot extract key points")
}

func (s *StubClient) AnswerQuestion(ctx context.Context, question string, evidence []string, title string) (QAResult, error) {
	return QAResult{}, errors.New("stub provider cannot answer questions")
}

func (s *StubClient) FactCheck(ctx context.Context, claim string, evidence []models.RetrievedEvidence) (string, error) {
	return "", errors.New("stub provider cannot fact-check")
}

func (s *StubClient) GenerateTimeline(ctx context.Context, text, priorText string) (models.Timeline, error) {
	return models.Timeline{}, errors.New("stub provider cannot generate timelines")
}
