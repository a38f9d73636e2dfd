package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIClient talks to the OpenAI API, or to an Azure OpenAI deployment when
// an endpoint is configured.
type OpenAIClient struct {
	caps
	config *ClientConfig
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI-backed client.
func NewOpenAIClient(config *ClientConfig) *OpenAIClient {
	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-3-small"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gpt-4o-mini"
	}
	if config.Dim == 0 {
		switch config.EmbedModel {
		case "text-embedding-3-large":
			config.Dim = 3072
		default:
			config.Dim = 1536
		}
	}

	var client *openai.Client
	if config.Endpoint != "" {
		client = openai.NewClientWithConfig(openai.DefaultAzureConfig(config.APIKey, config.Endpoint))
	} else {
		client = openai.NewClient(config.APIKey)
	}

	c := &OpenAIClient{config: config, client: client}
	c.caps = caps{gen: c.Generate}
	return c
}

func (c *OpenAIClient) Name() string { return string(ProviderOpenAI) }
func (c *OpenAIClient) Dim() int     { return c.config.Dim }

// Embed implements the embedding functionality.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.config.APIKey == "" {
		return nil, errors.New("openai API key unset")
	}
	if text == "" {
		return nil, errors.New("cannot embed empty text")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.config.EmbedModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	raw := resp.Data[0].Embedding
	v := make([]float32, len(raw))
	for i := range raw {
		v[i] = float32(raw[i])
	}
	return v, nil
}

// Generate issues one completion with the fixed system instruction and a
// lowered temperature for determinism.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if c.config.APIKey == "" {
		return "", errors.New("openai API key unset")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
		TopP:        0.8,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
