package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/telemetry"
)

type instrumentedClient struct {
	Client
	metrics *metrics.Metrics
	logger  *log.Logger
}

// Instrument wraps c with a span, call metrics and a debug log line per call.
// Both m and logger may be nil.
func Instrument(c Client, m *metrics.Metrics, logger *log.Logger) Client {
	if logger == nil {
		logger = log.Nop()
	}
	return &instrumentedClient{Client: c, metrics: m, logger: logger.With("provider", c.Name())}
}

func (i *instrumentedClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := telemetry.StartProviderSpan(ctx, i.Name(), i.Model())
	defer span.End()
	span.SetAttributes(attribute.String("tag", req.Tag))

	start := time.Now()
	resp, err := i.Client.Generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		telemetry.RecordError(span, err)
		i.metrics.ObserveLLM(i.Name(), i.Model(), 0, 0, err, elapsed)
		i.metrics.ObserveError(string(errors.CodeOf(err)))
		i.logger.WithError(err).Warn("llm call failed", "tag", req.Tag, "duration_ms", elapsed.Milliseconds())
		return nil, err
	}

	telemetry.RecordSuccess(span,
		attribute.Int("input_tokens", resp.InputTokens),
		attribute.Int("output_tokens", resp.OutputTokens),
	)
	i.metrics.ObserveLLM(i.Name(), i.Model(), resp.InputTokens, resp.OutputTokens, nil, elapsed)
	i.logger.Debug("llm call",
		"tag", req.Tag,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}
