package supervisor

import (
	"context"
	gerrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/genpod/internal/checkpoint"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/hooks"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/telemetry"
)

// StatusRecorder is told the project phase after every step.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, threadID, status, name string) error
}

// Runner executes steps until the run is DONE, a step fails, or the step
// budget runs out.
type Runner struct {
	sv       *Supervisor
	team     Team
	store    checkpoint.Store
	hooks    *hooks.Registry
	recorder StatusRecorder
	metrics  *metrics.Metrics
	logger   *log.Logger

	// observe is called with a copy of the state after every checkpoint.
	observe func(*State)
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

func WithHooks(h *hooks.Registry) RunnerOption {
	return func(r *Runner) { r.hooks = h }
}

func WithRecorder(rec StatusRecorder) RunnerOption {
	return func(r *Runner) { r.recorder = rec }
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithLogger(l *log.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithObserver receives a copy of the state after every completed step.
func WithObserver(fn func(*State)) RunnerOption {
	return func(r *Runner) { r.observe = fn }
}

// NewRunner validates the team and builds a runner.
func NewRunner(sv *Supervisor, team Team, store checkpoint.Store, opts ...RunnerOption) (*Runner, error) {
	if err := team.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New(errors.ErrCodeStateInvalid, "runner needs a checkpoint store")
	}
	r := &Runner{sv: sv, team: team, store: store, logger: log.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Start creates the RECEIVED state for req, checkpoints it as step 0, and
// runs it.
func (r *Runner) Start(ctx context.Context, rc RunContext, req ProjectRequest) (*State, error) {
	if req.Input == "" {
		return nil, errors.New(errors.ErrCodeAgentBadInput, "project request has no input").
			WithSuggestion("Describe the project in the request file's input field")
	}
	if rc.ThreadID == "" {
		rc.ThreadID = uuid.NewString()
	}
	if rc.ProjectID == "" {
		rc.ProjectID = uuid.NewString()
	}
	if rc.MicroserviceID == "" {
		rc.MicroserviceID = uuid.NewString()
	}

	s := NewState(rc, req)
	if err := r.checkpoint(ctx, s); err != nil {
		return s, err
	}
	return r.Run(ctx, s)
}

// Resume loads the latest checkpoint of threadID and continues the run.
func (r *Runner) Resume(ctx context.Context, threadID string) (*State, error) {
	s, err := Load(ctx, r.store, threadID)
	if err != nil {
		return nil, err
	}
	r.logger.Info("resuming run", "thread_id", threadID, "step", s.Step, "phase", s.ProjectStatus.String())
	return r.Run(ctx, s)
}

// Load reads the latest checkpoint of threadID into a State.
func Load(ctx context.Context, store checkpoint.Store, threadID string) (*State, error) {
	snap, err := store.Load(ctx, threadID)
	if gerrors.Is(err, checkpoint.ErrNotFound) {
		return nil, errors.NewCheckpointNotFoundError(threadID)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreCorrupt, "load checkpoint "+threadID, err)
	}
	var s State
	if err := snap.Decode(&s); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreCorrupt, "decode checkpoint "+threadID, err)
	}
	s.ensureQueues()
	return &s, nil
}

// Run steps s until it completes. The returned state is the last completed
// step, which is also the latest checkpoint.
func (r *Runner) Run(ctx context.Context, s *State) (*State, error) {
	ctx, span := telemetry.StartRunSpan(ctx, s.ThreadID)
	defer span.End()

	logger := r.logger.WithRun(s.ThreadID)
	if r.team.Cache != nil {
		r.team.Cache.Restore(s.RAGCacheQueries)
	}
	r.trigger(ctx, hooks.EventRunStart, s, nil)

	limit := r.sv.cfg.RecursionLimit
	for steps := 0; ; steps++ {
		route := Delegate(s)
		if route == RouteUpdateState {
			break
		}
		if steps >= limit {
			err := errors.NewRecursionLimitError(s.ThreadID, limit)
			r.fail(ctx, span, s, err, "recursion_limit")
			return s, err
		}
		if err := ctx.Err(); err != nil {
			r.fail(ctx, span, s, err, "canceled")
			return s, err
		}

		next, err := r.step(ctx, s, route)
		if err != nil {
			r.fail(ctx, span, s, err, "failed")
			return s, err
		}
		s = next
	}

	if s.ProjectStatus != domain.PStatusDone {
		err := errors.New(errors.ErrCodeStateInvalid, "run stopped in phase "+s.ProjectStatus.String())
		r.fail(ctx, span, s, err, "failed")
		return s, err
	}

	logger.Info("run complete", "steps", s.Step, "review_cycles", s.ReviewCycles, "completion", s.Progress().CompletionString())
	r.metrics.ObserveRun("done")
	telemetry.RecordSuccess(span)
	r.trigger(ctx, hooks.EventRunComplete, s, map[string]string{"project_name": s.ProjectName})
	return s, nil
}

// step runs one delegation on a copy of s and checkpoints the result. On
// error s is untouched.
func (r *Runner) step(ctx context.Context, s *State, route Route) (*State, error) {
	next := s.Clone()
	next.Step = s.Step + 1

	ctx, span := telemetry.StartStepSpan(ctx, next.Step, s.ProjectStatus.String(), route.String())
	defer span.End()
	start := time.Now()

	if err := r.dispatch(ctx, next, route); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	r.sv.Transition(next)

	if err := r.checkpoint(ctx, next); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span)
	r.metrics.ObserveStep(s.ProjectStatus.String(), route.String(), time.Since(start))

	r.logger.Debug("step",
		"thread_id", next.ThreadID, "step", next.Step, "route", route.String(),
		"phase", next.ProjectStatus.String(), "agents_status", next.AgentsStatus)

	if from, to := s.ProjectStatus, next.ProjectStatus; from != to {
		r.trigger(ctx, hooks.EventPhaseChange, next, map[string]string{"from": from.String(), "to": to.String()})
		if to == domain.PStatusHalted {
			r.trigger(ctx, hooks.EventHalted, next, map[string]string{"question": next.CurrentTask.Question})
		}
	}
	return next, nil
}

func (r *Runner) checkpoint(ctx context.Context, s *State) error {
	snap, err := checkpoint.NewSnapshot(s.ThreadID, s.Step, s.ProjectStatus.String(), s)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "snapshot state", err)
	}
	if err := r.store.Save(ctx, snap); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "save checkpoint", err)
	}

	if r.recorder != nil {
		if err := r.recorder.RecordStatus(ctx, s.ThreadID, s.ProjectStatus.String(), s.MicroserviceName); err != nil {
			r.logger.Warn("status not recorded", "thread_id", s.ThreadID, "error", err)
		}
	}
	if r.observe != nil {
		r.observe(s.Clone())
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, span trace.Span, s *State, err error, result string) {
	telemetry.RecordError(span, err)
	r.metrics.ObserveRun(result)
	r.metrics.ObserveError(string(errors.CodeOf(err)))
	r.logger.WithRun(s.ThreadID).WithError(err).Error("run stopped", "step", s.Step, "phase", s.ProjectStatus.String())
	r.trigger(ctx, hooks.EventStepFailed, s, map[string]string{"error": err.Error(), "result": result})
}

func (r *Runner) trigger(ctx context.Context, t hooks.EventType, s *State, data map[string]string) {
	if r.hooks == nil {
		return
	}
	if data == nil {
		data = map[string]string{}
	}
	data["completion"] = s.Progress().CompletionString()
	data["review_cycles"] = strconv.Itoa(s.ReviewCycles)
	r.hooks.Trigger(context.WithoutCancel(ctx), hooks.NewEvent(t, s.ThreadID, s.ProjectStatus.String(), s.Step, data))
}

// String renders a short run summary.
func (s *State) String() string {
	return fmt.Sprintf("%s [%s] step %d %s", s.ThreadID, s.ProjectStatus, s.Step, s.Progress().CompletionString())
}
