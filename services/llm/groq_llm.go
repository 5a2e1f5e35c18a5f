package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// groqBaseURL is Groq's OpenAI-compatible endpoint. The go-openai client
// speaks to it unmodified once the base URL is overridden.
const groqBaseURL = "https://api.groq.com/openai/v1"

type GroqClient struct {
	client *openai.Client
	model  string
}

// NewGroqClient builds a client for the given key and model, both normally
// taken from the loaded configuration. An empty apiKey falls back to the
// Podman secret mount; an empty model falls back to the instant tier.
func NewGroqClient(apiKey, model string) (*GroqClient, error) {
	if apiKey == "" {
		secretPath := "/run/secrets/groq_api_key"
		apiKeyBytes, err := os.ReadFile(secretPath)
		if err == nil {
			apiKey = strings.TrimSpace(string(apiKeyBytes))
			slog.Info("Read the Groq API Key from Podman Secrets")
		} else {
			slog.Error("GROQ_API_KEY environment variable not set and secret not found", "path", secretPath)
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	}
	if model == "" {
		// Smaller models have higher rate limits; default to the instant tier.
		model = "llama-3.1-8b-instant"
		slog.Warn("GROQ_MODEL not set, defaulting to llama-3.1-8b-instant")
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = groqBaseURL
	slog.Info("Initializing Groq client", "model", model)
	return &GroqClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

// Generate implements the Client interface
func (g *GroqClient) Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via Groq", "model", g.model)
	req := openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Groq API call failed", "error", err)
		return "", fmt.Errorf("Groq API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("Groq returned no choices or empty content")
		return "", fmt.Errorf("Groq returned no choices")
	}
	slog.Debug("Received response from Groq", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
