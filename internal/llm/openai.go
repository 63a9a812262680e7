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
	openAIBaseURL      = "https://api.openai.com/v1"
	openAIDefaultModel = "gpt-4o"
)

// OpenAI calls the OpenAI chat completions API or any compatible server.
type OpenAI struct {
	cfg    HTTPConfig
	client *http.Client
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type openAIErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(cfg HTTPConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAI{cfg: cfg, client: cfg.httpClient()}, nil
}

func (o *OpenAI) Name() string  { return "openai" }
func (o *OpenAI) Model() string { return o.cfg.Model }

// Generate implements Client.
func (o *OpenAI) Generate(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	body := o.buildRequest(req)
	var resp openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + o.cfg.APIKey}
	if err := postJSON(ctx, o.client, o.Name(), o.cfg.BaseURL+"/chat/completions", headers, body, &resp, decodeOpenAIError); err != nil {
		return nil, err
	}

	out := &Response{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Model:        resp.Model,
		Provider:     o.Name(),
		Latency:      time.Since(start),
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = resp.Choices[0].FinishReason
	}
	return out, nil
}

func (o *OpenAI) buildRequest(req *Request) *openAIRequest {
	maxTokens := o.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	temperature := o.cfg.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	messages := []openAIMessage{}
	if req.System != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages() {
		messages = append(messages, openAIMessage(m))
	}

	return &openAIRequest{
		Model:       o.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
}

func decodeOpenAIError(body []byte) string {
	var e openAIErrorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error != nil {
		return e.Error.Message
	}
	return ""
}
