// Package llm is the language model boundary: a provider-neutral Client,
// HTTP clients for hosted providers, a fixture replay client for offline runs,
// and Structured for schema-validated JSON answers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrValidationExhausted is returned by Structured when every attempt produced
// output that failed to parse or validate.
var ErrValidationExhausted = errors.New("structured output validation exhausted")

// Client generates a completion for a request.
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Name returns the provider name ("anthropic", "openai", "replay").
	Name() string
	// Model returns the default model identifier.
	Model() string
}

// Message is a single turn of a conversation.
type Message struct {
	// Role is "user" or "assistant"
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request contains all parameters for generating a response
type Request struct {
	// Tag identifies the calling agent and operation, e.g. "planner.plan".
	// Replay fixtures are keyed by it and it labels metrics.
	Tag string `json:"tag,omitempty"`

	// System sets the system-level instructions
	System string `json:"system,omitempty"`

	// Prompt is the final user turn
	Prompt string `json:"prompt"`

	// History holds earlier turns, oldest first
	History []Message `json:"history,omitempty"`

	// MaxTokens limits the response length. 0 uses the client default
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. 0 uses the client default
	Temperature float64 `json:"temperature,omitempty"`
}

// Messages returns the history followed by the prompt as a user turn.
func (r *Request) Messages() []Message {
	out := make([]Message, 0, len(r.History)+1)
	out = append(out, r.History...)
	return append(out, Message{Role: "user", Content: r.Prompt})
}

// Response contains the model's response
type Response struct {
	Content      string        `json:"content"`
	InputTokens  int           `json:"input_tokens,omitempty"`
	OutputTokens int           `json:"output_tokens,omitempty"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// APIError is a non-2xx answer from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s error (http %d): %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode == 408 || e.StatusCode >= 500
}
