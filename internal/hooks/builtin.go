package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ScriptHook runs a script with the event exported as GENPOD_* variables.
type ScriptHook struct {
	name    string
	events  []EventType
	script  string
	args    []string
	shell   string
	timeout time.Duration
}

// NewScriptHook reads "script", and optionally "shell" and "args", from the
// hook options.
func NewScriptHook(cfg *Config) (Hook, error) {
	script := cfg.option("script")
	if script == "" {
		return nil, fmt.Errorf("hook %s: script path required", cfg.Name)
	}
	h := &ScriptHook{
		name:    cfg.Name,
		events:  cfg.Events,
		script:  script,
		shell:   "/bin/sh",
		timeout: cfg.timeout(),
	}
	if shell := cfg.option("shell"); shell != "" {
		h.shell = shell
	}
	if args, ok := cfg.Options["args"].([]any); ok {
		for _, arg := range args {
			if s, ok := arg.(string); ok {
				h.args = append(h.args, s)
			}
		}
	}
	return h, nil
}

func (h *ScriptHook) Name() string            { return h.name }
func (h *ScriptHook) EventTypes() []EventType { return h.events }

func (h *ScriptHook) Execute(ctx context.Context, event *Event) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, h.shell, append([]string{h.script}, h.args...)...)
	cmd.Env = append(os.Environ(), eventEnv(event)...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func eventEnv(event *Event) []string {
	env := []string{
		"GENPOD_EVENT=" + string(event.Type),
		"GENPOD_THREAD_ID=" + event.ThreadID,
		"GENPOD_PHASE=" + event.Phase,
		"GENPOD_STEP=" + strconv.Itoa(event.Step),
	}
	for key, value := range event.Data {
		env = append(env, "GENPOD_"+strings.ToUpper(key)+"="+value)
	}
	return env
}

// WebhookHook posts the event as JSON.
type WebhookHook struct {
	name    string
	events  []EventType
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookHook reads "url" and optional "headers" from the hook options.
func NewWebhookHook(cfg *Config) (Hook, error) {
	url := cfg.option("url")
	if url == "" {
		return nil, fmt.Errorf("hook %s: webhook url required", cfg.Name)
	}
	h := &WebhookHook{
		name:    cfg.Name,
		events:  cfg.Events,
		url:     url,
		headers: make(map[string]string),
		client:  &http.Client{Timeout: cfg.timeout()},
	}
	if headers, ok := cfg.Options["headers"].(map[string]any); ok {
		for key, value := range headers {
			if s, ok := value.(string); ok {
				h.headers[key] = s
			}
		}
	}
	return h, nil
}

func (h *WebhookHook) Name() string            { return h.name }
func (h *WebhookHook) EventTypes() []EventType { return h.events }

func (h *WebhookHook) Execute(ctx context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
