package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL      = "https://api.anthropic.com/v1"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-sonnet-4-5"
)

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	cfg    HTTPConfig
	client *http.Client
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason,omitempty"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicErrorBody struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(cfg HTTPConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = anthropicBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = anthropicDefaultModel
	}
	if cfg.MaxTokens <= 0 {
		// Anthropic requires max_tokens
		cfg.MaxTokens = 4096
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Anthropic{cfg: cfg, client: cfg.httpClient()}, nil
}

func (a *Anthropic) Name() string  { return "anthropic" }
func (a *Anthropic) Model() string { return a.cfg.Model }

// Generate implements Client.
func (a *Anthropic) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	body := a.buildRequest(req)
	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	if err := postJSON(ctx, a.client, a.Name(), a.cfg.BaseURL+"/messages", headers, body, &resp, decodeAnthropicError); err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	return &Response{
		Content:      content.String(),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Model:        resp.Model,
		Provider:     a.Name(),
		FinishReason: resp.StopReason,
		Latency:      time.Since(start),
	}, nil
}

func (a *Anthropic) buildRequest(req *Request) *anthropicRequest {
	maxTokens := a.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := a.cfg.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	msgs := req.Messages()
	messages := make([]anthropicMessage, 0, len(msgs))
	for _, m := range msgs {
		messages = append(messages, anthropicMessage(m))
	}

	return &anthropicRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		System:      req.System, // system prompt is separate in Anthropic
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}
}

func decodeAnthropicError(body []byte) string {
	var e anthropicErrorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error != nil {
		return e.Error.Message
	}
	return ""
}
