package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/felixgeelhaar/genpod/internal/metrics"
)

// Validator is implemented by structured outputs with rules beyond their JSON shape.
type Validator interface {
	Validate() error
}

// DefaultAttempts is how many answers Structured asks for before giving up.
const DefaultAttempts = 3

type structuredOptions struct {
	attempts int
	metrics  *metrics.Metrics
}

// StructuredOption configures Structured.
type StructuredOption func(*structuredOptions)

// WithAttempts overrides DefaultAttempts.
func WithAttempts(n int) StructuredOption {
	return func(o *structuredOptions) {
		if n > 0 {
			o.attempts = n
		}
	}
}

// WithMetrics counts validation failures.
func WithMetrics(m *metrics.Metrics) StructuredOption {
	return func(o *structuredOptions) { o.metrics = m }
}

// Structured asks c for a JSON value of type T. The JSON schema of T is appended
// to the prompt; answers that fail to decode or validate are sent back with the
// error until an answer passes or the attempts run out, in which case the
// returned error wraps ErrValidationExhausted. Transport errors are returned as is.
func Structured[T any](ctx context.Context, c Client, req Request, opts ...StructuredOption) (T, error) {
	o := structuredOptions{attempts: DefaultAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	var zero T
	schema, err := SchemaFor[T]()
	if err != nil {
		return zero, err
	}

	req.Prompt = fmt.Sprintf("%s\n\nRespond with a single JSON value matching this schema and nothing else:\n%s",
		req.Prompt, schema)

	var lastErr error
	for attempt := 1; attempt <= o.attempts; attempt++ {
		resp, err := c.Generate(ctx, &req)
		if err != nil {
			return zero, err
		}

		out, err := decode[T](resp.Content)
		if err == nil {
			return out, nil
		}

		lastErr = err
		o.metrics.ObserveValidationFailure(req.Tag)

		req.History = append(req.History,
			Message{Role: "user", Content: req.Prompt},
			Message{Role: "assistant", Content: resp.Content},
		)
		req.Prompt = fmt.Sprintf("Your previous answer was rejected: %v\nAnswer again with corrected JSON only.", err)
	}

	return zero, fmt.Errorf("%w after %d attempts (%s): %v", ErrValidationExhausted, o.attempts, req.Tag, lastErr)
}

// SchemaFor renders the JSON schema of T with definitions inlined.
func SchemaFor[T any]() (string, error) {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: true,
	}
	data, err := json.MarshalIndent(r.Reflect(new(T)), "", "  ")
	if err != nil {
		return "", fmt.Errorf("render schema: %w", err)
	}
	return string(data), nil
}

func decode[T any](content string) (T, error) {
	var out T
	raw := ExtractJSON(content)
	if raw == "" {
		return out, fmt.Errorf("no JSON value found in the answer")
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("invalid JSON: %w", err)
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// ExtractJSON returns the first JSON object or array in s, looking inside a
// fenced code block when there is one.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	openCh, closeCh := s[start], byte('}')
	if openCh == '[' {
		closeCh = ']'
	}

	depth, inString, escaped := 0, false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == openCh:
			depth++
		case ch == closeCh:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
