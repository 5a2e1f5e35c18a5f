package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Client defines the standard interface for any LLM backend.
// Every persona call in the council goes through an implementation of this,
// wrapped by the Gateway for retry handling.
type Client interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, params GenerationParams) (string, error)
}
