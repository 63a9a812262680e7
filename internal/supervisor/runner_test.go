package supervisor

import (
	"context"
	gerrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/agents/architect"
	"github.com/felixgeelhaar/genpod/internal/agents/coder"
	"github.com/felixgeelhaar/genpod/internal/agents/rag"
	"github.com/felixgeelhaar/genpod/internal/checkpoint"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/hooks"
	"github.com/felixgeelhaar/genpod/internal/llm"
)

var request = ProjectRequest{Input: "todo api with users", LicenseURL: "https://example.com/LICENSE"}

func newRunner(t *testing.T, cfg Config, team Team, opts ...RunnerOption) (*Runner, checkpoint.Store) {
	t.Helper()
	store := checkpoint.NewFileStore(t.TempDir())
	r, err := NewRunner(fixedSupervisor(cfg), team, store, opts...)
	require.NoError(t, err)
	return r, store
}

type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (l *statusLog) RecordStatus(_ context.Context, _, status, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
	return nil
}

type eventLog struct {
	mu     sync.Mutex
	events []hooks.EventType
}

func (e *eventLog) Name() string                  { return "events" }
func (e *eventLog) EventTypes() []hooks.EventType { return hooks.AllEvents }
func (e *eventLog) Execute(_ context.Context, ev *hooks.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev.Type)
	return nil
}

func (e *eventLog) count(t hooks.EventType) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, got := range e.events {
		if got == t {
			n++
		}
	}
	return n
}

func TestNewRunnerRequiresTeam(t *testing.T) {
	team := happyTeam()
	team.Reviewer = nil
	_, err := NewRunner(New(Config{}, nil, nil), team, checkpoint.NewFileStore(t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAgentBadInput, errors.CodeOf(err))

	_, err = NewRunner(New(Config{}, nil, nil), happyTeam(), nil)
	require.Error(t, err)
}

func TestStartRejectsEmptyInput(t *testing.T) {
	r, _ := newRunner(t, Config{}, happyTeam())
	_, err := r.Start(context.Background(), RunContext{}, ProjectRequest{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAgentBadInput, errors.CodeOf(err))
}

func TestRunCompletesProject(t *testing.T) {
	recorder := &statusLog{}
	events := &eventLog{}
	registry := hooks.NewRegistry(nil)
	require.NoError(t, registry.Register(events))

	var observed []int
	r, store := newRunner(t, Config{}, happyTeam(),
		WithRecorder(recorder),
		WithHooks(registry),
		WithObserver(func(s *State) { observed = append(observed, s.Step) }))

	s, err := r.Start(context.Background(), RunContext{ThreadID: "thread-1", UserID: "u1"}, request)
	require.NoError(t, err)

	assert.Equal(t, domain.PStatusDone, s.ProjectStatus)
	assert.Equal(t, "todo", s.ProjectName)
	assert.Equal(t, "todo-api", s.MicroserviceName)
	assert.Equal(t, 2, s.ReviewCycles)
	assert.Len(t, s.CodeGenerationPlans, 5, "four planned tasks and one planned issue")
	assert.Equal(t, 2, s.Tasks.CountDone())
	assert.Equal(t, 4, s.PlannedTasks.CountDone())
	assert.Equal(t, 1, s.Issues.CountDone())
	assert.Equal(t, 100.0, s.Progress().Completion)
	assert.True(t, s.IsHumanReviewed)
	assert.NotEmpty(t, s.ProjectID)
	assert.NotEmpty(t, s.MicroserviceID)

	saved, err := Load(context.Background(), store, "thread-1")
	require.NoError(t, err)
	requireSameState(t, s, saved)

	require.NotEmpty(t, recorder.statuses)
	assert.Equal(t, "RECEIVED", recorder.statuses[0])
	assert.Equal(t, "DONE", recorder.statuses[len(recorder.statuses)-1])
	assert.Len(t, observed, s.Step+1, "step 0 and every step after it")

	assert.Equal(t, 1, events.count(hooks.EventRunStart))
	assert.Equal(t, 1, events.count(hooks.EventRunComplete))
	assert.Equal(t, 1, events.count(hooks.EventHalted))
	assert.Zero(t, events.count(hooks.EventStepFailed))
	assert.Greater(t, events.count(hooks.EventPhaseChange), 5)
}

func TestRunAbandonsStalledItems(t *testing.T) {
	team := happyTeam()
	stuck := fake(agents.NameCoder, func(_ context.Context, in coder.Input) (coder.Output, error) {
		return coder.Output{PlannedTask: in.PlannedTask, PlannedIssue: in.PlannedIssue}, nil
	})
	team.Coder = stuck

	r, _ := newRunner(t, Config{MaxItemAttempts: 3}, team)
	s, err := r.Start(context.Background(), RunContext{ThreadID: "stall"}, request)
	require.NoError(t, err)

	assert.Equal(t, domain.PStatusDone, s.ProjectStatus)
	assert.EqualValues(t, 15, stuck.calls.Load(), "three attempts for each of five items")
	for _, pt := range s.PlannedTasks.Items() {
		assert.Equal(t, domain.StatusAbandoned, pt.Status)
		assert.Contains(t, pt.Remarks, "coder made no progress in 3 attempts")
	}
	for _, pi := range s.PlannedIssues.Items() {
		assert.Equal(t, domain.StatusAbandoned, pi.Status)
	}
	assert.Empty(t, s.CodeGenerationPlans)
	assert.Equal(t, Stall{}, s.Stall)
}

func TestRunStopsAtRecursionLimit(t *testing.T) {
	events := &eventLog{}
	registry := hooks.NewRegistry(nil)
	require.NoError(t, registry.Register(events))

	r, store := newRunner(t, Config{RecursionLimit: 5}, happyTeam(), WithHooks(registry))
	s, err := r.Start(context.Background(), RunContext{ThreadID: "limit"}, request)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStateRecursionLimit, errors.CodeOf(err))
	assert.Equal(t, 5, s.Step)
	assert.Equal(t, 1, events.count(hooks.EventStepFailed))

	saved, err := Load(context.Background(), store, "limit")
	require.NoError(t, err)
	assert.Equal(t, 5, saved.Step)

	// Each Run call gets a fresh budget, so resuming makes progress.
	s, err = r.Resume(context.Background(), "limit")
	require.Error(t, err)
	assert.Equal(t, 10, s.Step)
}

func TestResumeAfterFailedStep(t *testing.T) {
	team := happyTeam()
	healthy := team.Coder
	var failed bool
	team.Coder = fake(agents.NameCoder, func(ctx context.Context, in coder.Input) (coder.Output, error) {
		if !failed {
			failed = true
			return coder.Output{}, errors.New(errors.ErrCodeAgentFailed, "model unavailable")
		}
		return healthy.Invoke(ctx, in)
	})

	r, store := newRunner(t, Config{}, team)
	s, err := r.Start(context.Background(), RunContext{ThreadID: "resume"}, request)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAgentFailed, errors.CodeOf(err))
	assert.Equal(t, domain.PStatusExecuting, s.ProjectStatus)

	saved, err := Load(context.Background(), store, "resume")
	require.NoError(t, err)
	assert.Equal(t, s.Step, saved.Step, "the failed step was not checkpointed")

	s, err = r.Resume(context.Background(), "resume")
	require.NoError(t, err)
	assert.Equal(t, domain.PStatusDone, s.ProjectStatus)
	assert.Len(t, s.CodeGenerationPlans, 5)
}

func TestResumeUnknownThread(t *testing.T) {
	r, _ := newRunner(t, Config{}, happyTeam())
	_, err := r.Resume(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStoreNotFound, errors.CodeOf(err))
}

func TestRunHonorsCancellation(t *testing.T) {
	r, _ := newRunner(t, Config{}, happyTeam())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewState(RunContext{ThreadID: "cancel"}, request)
	_, err := r.Run(ctx, s)
	require.Error(t, err)
	assert.True(t, gerrors.Is(err, context.Canceled))
}

// questionTeam has the architect ask a question in INITIAL that neither the
// knowledge base nor the architect can answer.
func questionTeam(human HumanReviewer) Team {
	team := happyTeam()
	team.RAG = fake(agents.NameRAG, func(_ context.Context, in rag.Input) (rag.Output, error) {
		if in.Question == "which database?" {
			return rag.Output{}, nil
		}
		return rag.Output{Generation: "context", QueryAnswered: true}, nil
	})
	asked := false
	team.Architect = fake(agents.NameArchitect, func(_ context.Context, in architect.Input) (architect.Output, error) {
		task := in.Task
		switch {
		case in.ProjectStatus == domain.PStatusMonitoring:
			return architect.Output{Task: task}, nil
		case !asked:
			asked = true
			task.Status = domain.StatusAwaiting
			task.Question = "which database?"
			return architect.Output{Task: task}, nil
		}
		task.Status = domain.StatusDone
		return architect.Output{
			Task:             task,
			Tasks:            []domain.Task{domain.NewTask("build the api", "", "")},
			ProjectName:      "todo",
			MicroserviceName: "todo-api",
		}, nil
	})
	team.Human = human
	return team
}

func TestUnansweredQuestionHaltsWithoutHuman(t *testing.T) {
	r, store := newRunner(t, Config{}, questionTeam(AutoApprove{}))
	s, err := r.Start(context.Background(), RunContext{ThreadID: "halt"}, request)

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStateHalted, errors.CodeOf(err))
	assert.Equal(t, domain.PStatusHalted, s.ProjectStatus)
	assert.True(t, s.AwaitingHumanAnswer)

	ge, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, strings.Join(ge.Suggestions, " "), "which database?")

	saved, err := Load(context.Background(), store, "halt")
	require.NoError(t, err)
	assert.Equal(t, domain.PStatusHalted, saved.ProjectStatus)
}

func TestHumanAnswerResumesRun(t *testing.T) {
	var kinds []ReviewKind
	human := ReviewerFunc(func(_ context.Context, req ReviewRequest) (ReviewOutcome, error) {
		kinds = append(kinds, req.Kind)
		if req.Kind == ReviewQuery {
			return ReviewOutcome{Answer: "postgres"}, nil
		}
		return ReviewOutcome{}, nil
	})

	r, _ := newRunner(t, Config{}, questionTeam(human))
	s, err := r.Start(context.Background(), RunContext{ThreadID: "answer"}, request)
	require.NoError(t, err)

	assert.Equal(t, domain.PStatusDone, s.ProjectStatus)
	assert.Equal(t, []ReviewKind{ReviewQuery, ReviewRequirements}, kinds)
	var answered bool
	for _, m := range s.Messages {
		if m.Role == domain.RoleHuman && m.Content == "postgres" {
			answered = true
		}
	}
	assert.True(t, answered)
}

func TestHumanFeedbackRevisesRequirements(t *testing.T) {
	reviews := 0
	human := ReviewerFunc(func(_ context.Context, req ReviewRequest) (ReviewOutcome, error) {
		reviews++
		if reviews == 1 {
			return ReviewOutcome{Feedback: "add pagination"}, nil
		}
		return ReviewOutcome{}, nil
	})
	team := happyTeam()
	var infos []string
	base := team.Architect
	team.Architect = fake(agents.NameArchitect, func(ctx context.Context, in architect.Input) (architect.Output, error) {
		infos = append(infos, in.Task.AdditionalInfo)
		return base.Invoke(ctx, in)
	})
	team.Human = human

	r, _ := newRunner(t, Config{}, team)
	s, err := r.Start(context.Background(), RunContext{ThreadID: "feedback"}, request)
	require.NoError(t, err)

	assert.Equal(t, domain.PStatusDone, s.ProjectStatus)
	assert.Equal(t, 2, reviews)
	require.Len(t, infos, 2)
	assert.Contains(t, infos[1], "Human feedback to incorporate:\nadd pagination")
	assert.Equal(t, 2, s.Tasks.Len(), "the revised document replaces the task list")
}

func TestPrimingFillsRetrievalContext(t *testing.T) {
	replay := llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"supervisor.queries": {`{"req_queries": ["which framework?", "  ", "which database?"]}`},
		"supervisor.follow_up": {
			`{"verdict": "INCOMPLETE", "reason": "no version", "follow_up_query": "which version?"}`,
			`{"verdict": "COMPLETE", "reason": "ok"}`,
		},
	}})

	team := happyTeam()
	var asked []string
	team.RAG = fake(agents.NameRAG, func(_ context.Context, in rag.Input) (rag.Output, error) {
		asked = append(asked, in.Question)
		return rag.Output{Generation: "answer to " + in.Question, QueryAnswered: true}, nil
	})
	team.LLM = replay

	r, _ := newRunner(t, Config{}, team)
	s, err := r.Start(context.Background(), RunContext{ThreadID: "prime"}, request)
	require.NoError(t, err)

	assert.Equal(t, []string{"which framework?", "which version?", "which database?", request.Input}, asked[:4])
	assert.True(t, s.IsRAGCacheCreated)
	assert.Contains(t, s.RAGCacheBuilding, "Follow-up Question: which version?")
	assert.Contains(t, s.RAGCacheBuilding, "Question: which database?\nAnswer: answer to which database?")
	assert.True(t, strings.HasPrefix(s.RAGRetrieval, "answer to "+request.Input+"\n"))
	assert.Len(t, replay.Calls(), 3)
}

func TestPrimingFailureIsRecorded(t *testing.T) {
	team := happyTeam()
	team.LLM = llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"supervisor.queries": {`{"req_queries": []}`},
	}})

	r, _ := newRunner(t, Config{}, team)
	s, err := r.Start(context.Background(), RunContext{ThreadID: "prime-fail"}, request)
	require.NoError(t, err)
	assert.Equal(t, primingFailed, s.RAGCacheBuilding)
}
