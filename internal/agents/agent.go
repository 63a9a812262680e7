// Package agents defines the contract every specialist satisfies and the
// helpers they share. Each specialist lives in its own subpackage and runs its
// internal steps opaquely; the supervisor only sees typed inputs and outputs.
package agents

import (
	"context"
	"time"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/telemetry"
)

// Agent names used in logs, metrics, spans and agents_status.
const (
	NameSupervisor    = "supervisor"
	NameRAG           = "rag"
	NameArchitect     = "architect"
	NamePlanner       = "planner"
	NameCoder         = "coder"
	NameTestGenerator = "test_generator"
	NameReviewer      = "reviewer"
	NameHuman         = "human"
)

// Agent is a specialist. In is a value copy of the state fields the agent
// reads; Out carries the fields it produces. Expected outcomes are reported
// through item statuses in Out; a returned error means the step failed.
type Agent[In, Out any] interface {
	Name() string
	Invoke(ctx context.Context, in In) (Out, error)
}

type observed[In, Out any] struct {
	Agent[In, Out]
	metrics *metrics.Metrics
	logger  *log.Logger
}

// Observe wraps a with an agent span, invocation metrics and a log line per
// call. Both m and logger may be nil.
func Observe[In, Out any](a Agent[In, Out], m *metrics.Metrics, logger *log.Logger) Agent[In, Out] {
	if logger == nil {
		logger = log.Nop()
	}
	return &observed[In, Out]{Agent: a, metrics: m, logger: logger.WithAgent(a.Name())}
}

func (o *observed[In, Out]) Invoke(ctx context.Context, in In) (Out, error) {
	ctx, span := telemetry.StartAgentSpan(ctx, o.Name())
	defer span.End()

	start := time.Now()
	out, err := o.Agent.Invoke(ctx, in)
	elapsed := time.Since(start)

	o.metrics.ObserveAgent(o.Name(), err, elapsed)
	if err != nil {
		telemetry.RecordError(span, err)
		o.metrics.ObserveError(string(errors.CodeOf(err)))
		o.logger.WithError(err).Error("agent failed", "duration_ms", elapsed.Milliseconds())
		return out, err
	}

	telemetry.RecordSuccess(span)
	o.logger.Debug("agent finished", "duration_ms", elapsed.Milliseconds())
	return out, nil
}

// Failed wraps an unexpected agent failure with the agent name.
func Failed(agent string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.Wrap(errors.ErrCodeAgentFailed, agent+" failed", err)
}
