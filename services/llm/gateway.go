package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retrySleep is the fixed pause between generation attempts. Kept fixed
// rather than exponential: persona calls are already rate limited upstream
// and a failed attempt is usually a transient provider error.
const retrySleep = 2 * time.Second

// GenerationError is the terminal error returned by Gateway.Invoke once
// the retry budget is exhausted. It carries the total number of attempts
// made and the last underlying error.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Gateway wraps a Client with a bounded retry loop. RetryBudget is the
// number of ADDITIONAL attempts after the first one, so a budget of 1
// yields at most two calls to the underlying client.
type Gateway struct {
	client      Client
	retryBudget int
	params      GenerationParams
}

// NewGateway builds a Gateway around the given backend client.
// A negative retryBudget is treated as zero.
func NewGateway(client Client, retryBudget int, params GenerationParams) *Gateway {
	if client == nil {
		panic("llm.NewGateway: client must not be nil")
	}
	if retryBudget < 0 {
		retryBudget = 0
	}
	return &Gateway{client: client, retryBudget: retryBudget, params: params}
}

// Invoke runs a single generation with retries. The sleep between attempts
// is context-aware: cancellation during the pause aborts the loop
// immediately with the context error wrapped in a GenerationError.
func (g *Gateway) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error
	attempts := g.retryBudget + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := g.client.Generate(ctx, systemPrompt, userPrompt, g.params)
		if err == nil {
			return out, nil
		}
		lastErr = err
		slog.Warn("LLM generation attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err)
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(retrySleep):
		case <-ctx.Done():
			return "", &GenerationError{Attempts: attempt, Err: ctx.Err()}
		}
	}
	return "", &GenerationError{Attempts: attempts, Err: lastErr}
}
