package supervisor

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
)

const (
	DefaultRecursionLimit   = 250
	DefaultMaxItemAttempts  = 3
	DefaultMaxReviewCycles  = 3
	DefaultMaxHallucination = 3
)

// Config bounds a run.
type Config struct {
	// RecursionLimit caps the steps of one Run call.
	RecursionLimit int
	// MaxItemAttempts is how often a specialist may return the same item
	// unchanged before it is abandoned.
	MaxItemAttempts int
	// MaxReviewCycles is the number of reviews after which open issues no
	// longer start a resolve round. Zero means no cap.
	MaxReviewCycles int
	// MaxHallucination is passed to the retrieval agent.
	MaxHallucination int
}

// DefaultConfig returns the bounds used when none are configured.
func DefaultConfig() Config {
	return Config{
		RecursionLimit:   DefaultRecursionLimit,
		MaxItemAttempts:  DefaultMaxItemAttempts,
		MaxReviewCycles:  DefaultMaxReviewCycles,
		MaxHallucination: DefaultMaxHallucination,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RecursionLimit <= 0 {
		c.RecursionLimit = d.RecursionLimit
	}
	if c.MaxItemAttempts <= 0 {
		c.MaxItemAttempts = d.MaxItemAttempts
	}
	if c.MaxReviewCycles < 0 {
		c.MaxReviewCycles = 0
	}
	if c.MaxHallucination <= 0 {
		c.MaxHallucination = d.MaxHallucination
	}
	return c
}

// Supervisor owns the project phase. Transition is its only decision point;
// it reads the merged specialist output and moves the run forward.
type Supervisor struct {
	cfg     Config
	logger  *log.Logger
	metrics *metrics.Metrics

	newID func() domain.ItemID
	now   func() time.Time
}

// New creates a supervisor. logger and m may be nil.
func New(cfg Config, logger *log.Logger, m *metrics.Metrics) *Supervisor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		logger:  logger.WithAgent("supervisor"),
		metrics: m,
		newID:   domain.NewItemID,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Config returns the effective bounds.
func (sv *Supervisor) Config() Config { return sv.cfg }

const (
	ragTaskDescription       = "Retrieve additional context for the user request from the knowledge base."
	architectTaskDescription = "Draft the requirements document and the project tasks for the user request."
)

// Transition moves the run forward from the merged specialist output. It
// applies phase rows until none applies, so bookkeeping that needs no
// specialist (closing a task whose planned tasks are exhausted, picking the
// next task, starting review) happens in one call and Transition(Transition(s))
// equals Transition(s).
func (sv *Supervisor) Transition(s *State) {
	s.ensureQueues()
	limit := maxHops(s)
	for range limit {
		before := markOf(s)
		sv.hop(s)
		if markOf(s) == before {
			return
		}
	}
	sv.logger.Warn("transition did not settle", "thread_id", s.ThreadID, "phase", s.ProjectStatus.String(), "hops", limit)
}

// maxHops bounds Transition. Every hop that changes the mark closes an item,
// picks one, or changes phase, so this is never reached on a consistent state.
func maxHops(s *State) int {
	return 16 + 2*(s.Tasks.Len()+s.PlannedTasks.Len()+s.Issues.Len()+s.PlannedIssues.Len())
}

// mark is the part of the state the phase rows decide on. A hop that leaves
// it unchanged only rewrote the active items into their queues.
type mark struct {
	phase, previous                     domain.PStatus
	task, plannedTask                   domain.ItemID
	issue, plannedIssue                 domain.ItemID
	taskStatus, plannedTaskStatus       domain.Status
	issueStatus, plannedIssueStatus     domain.Status
	plannedTasksOpen, plannedIssuesOpen bool
	reviewDone, humanReviewed           bool
	messages                            int
}

func markOf(s *State) mark {
	return mark{
		phase:              s.ProjectStatus,
		previous:           s.PreviousProjectStatus,
		task:               s.CurrentTask.ID,
		plannedTask:        s.CurrentPlannedTask.ID,
		issue:              s.CurrentIssue.ID,
		plannedIssue:       s.CurrentPlannedIssue.ID,
		taskStatus:         s.CurrentTask.Status,
		plannedTaskStatus:  s.CurrentPlannedTask.Status,
		issueStatus:        s.CurrentIssue.Status,
		plannedIssueStatus: s.CurrentPlannedIssue.Status,
		plannedTasksOpen:   s.ArePlannedTasksInProgress,
		plannedIssuesOpen:  s.ArePlannedIssuesInProgress,
		reviewDone:         s.IsReviewDone,
		humanReviewed:      s.IsHumanReviewed,
		messages:           len(s.Messages),
	}
}

// hop applies the single phase row matching s.
func (sv *Supervisor) hop(s *State) {
	switch s.ProjectStatus {
	case domain.PStatusReceived:
		sv.received(s)
	case domain.PStatusNew:
		sv.fromNew(s)
	case domain.PStatusInitial:
		sv.initial(s)
	case domain.PStatusMonitoring:
		sv.monitoring(s)
	case domain.PStatusExecuting:
		sv.executing(s)
	case domain.PStatusReviewing:
		sv.reviewing(s)
	case domain.PStatusResolving:
		sv.resolving(s)
	case domain.PStatusHalted:
		sv.halted(s)
	}
}

func (sv *Supervisor) task(description, additionalInfo, question string) domain.Task {
	t := domain.NewTask(description, additionalInfo, question)
	t.ID = sv.newID()
	return t
}

func (sv *Supervisor) say(s *State, content string) {
	s.Messages = append(s.Messages, domain.Message{Role: domain.RoleAI, Content: content, At: sv.now()})
}

func (sv *Supervisor) move(s *State, to domain.PStatus) {
	from := s.ProjectStatus
	if from == to {
		return
	}
	s.ProjectStatus = to
	sv.metrics.ObserveTransition(from.String(), to.String())
	sv.logger.Info("phase changed", "thread_id", s.ThreadID, "from", from.String(), "to", to.String())
}

func (sv *Supervisor) received(s *State) {
	sv.say(s, "Request received. Gathering additional context from the knowledge base.")
	s.CurrentTask = sv.task(ragTaskDescription, "", s.OriginalUserInput)
	s.CallingAgent, s.CalledAgent = "supervisor", "rag"
	sv.move(s, domain.PStatusNew)
}

func (sv *Supervisor) fromNew(s *State) {
	if s.CurrentTask.Status != domain.StatusDone || !s.IsInitialAdditionalInfoReady {
		return
	}
	sv.say(s, "Additional context is ready. Handing the request to the architect.")
	s.CurrentTask = sv.task(architectTaskDescription, s.RAGRetrieval, "")
	s.CallingAgent, s.CalledAgent = "supervisor", "architect"
	sv.move(s, domain.PStatusInitial)
}

func (sv *Supervisor) initial(s *State) {
	switch s.CurrentTask.Status {
	case domain.StatusDone:
		if !s.IsHumanReviewed {
			sv.say(s, "Requirements document is ready for human review.")
			s.PreviousProjectStatus = domain.PStatusInitial
			sv.move(s, domain.PStatusHalted)
			return
		}
		sv.say(s, fmt.Sprintf("Requirements approved. Starting execution of %d tasks.", s.Tasks.Len()))
		if next, ok := s.Tasks.Next(); ok {
			s.CurrentTask = next
		}
		sv.move(s, domain.PStatusExecuting)
	case domain.StatusAwaiting:
		sv.await(s)
	}
}

// await parks the current phase and asks for answers to the task's question.
func (sv *Supervisor) await(s *State) {
	sv.say(s, "Question raised: "+s.CurrentTask.Question)
	s.PreviousProjectStatus = s.ProjectStatus
	s.RAGQueryAttempted = false
	s.IsRAGQueryAnswered = false
	sv.move(s, domain.PStatusMonitoring)
}

func (sv *Supervisor) monitoring(s *State) {
	if s.CurrentTask.Status != domain.StatusResponded {
		return
	}
	back := s.PreviousProjectStatus
	if back != domain.PStatusInitial && back != domain.PStatusExecuting {
		back = domain.PStatusInitial
	}
	sv.say(s, "Question answered. Resuming "+back.String()+".")
	s.RAGQueryAttempted = false
	s.IsRAGQueryAnswered = false
	sv.move(s, back)
}

func (sv *Supervisor) executing(s *State) {
	if err := s.Tasks.Update(s.CurrentTask); err != nil {
		sv.logger.Warn("task not in queue", "task_id", s.CurrentTask.ID.String(), "error", err)
	}

	switch s.CurrentTask.Status {
	case domain.StatusDone, domain.StatusAbandoned:
		if next, ok := s.Tasks.Next(); ok {
			s.CurrentTask = next
			return
		}
		sv.say(s, "All tasks finished. Starting review.")
		s.IsReviewDone = false
		sv.move(s, domain.PStatusReviewing)

	case domain.StatusAwaiting:
		sv.await(s)

	case domain.StatusInProgress:
		if !s.CurrentPlannedTask.ID.IsZero() {
			if err := s.PlannedTasks.Update(s.CurrentPlannedTask); err != nil {
				sv.logger.Warn("planned task not in queue", "planned_task_id", s.CurrentPlannedTask.ID.String(), "error", err)
			}
		}
		if s.ArePlannedTasksInProgress && !s.CurrentPlannedTask.Status.IsTerminal() {
			return
		}
		if next, ok := s.PlannedTasks.Next(); ok {
			s.CurrentPlannedTask = next
			s.ArePlannedTasksInProgress = true
			return
		}
		s.ArePlannedTasksInProgress = false
		s.CurrentTask.Status = domain.StatusDone
		_ = s.Tasks.Update(s.CurrentTask)
	}
}

func (sv *Supervisor) reviewing(s *State) {
	if !s.IsReviewDone {
		return
	}
	if !s.Issues.HasPending() {
		sv.say(s, "Review found no open issues. Project complete.")
		sv.move(s, domain.PStatusDone)
		return
	}
	if sv.cfg.MaxReviewCycles > 0 && s.ReviewCycles >= sv.cfg.MaxReviewCycles {
		sv.logger.Warn("review cycle cap reached with open issues",
			"thread_id", s.ThreadID, "cycles", s.ReviewCycles, "open_issues", s.Issues.Len()-s.Issues.CountDone())
		sv.say(s, "Review cycle limit reached with open issues. Finishing the run.")
		sv.move(s, domain.PStatusDone)
		return
	}
	next, _ := s.Issues.Next()
	s.CurrentIssue = next
	s.ArePlannedIssuesInProgress = false
	sv.say(s, "Review found issues. Resolving them.")
	sv.move(s, domain.PStatusResolving)
}

func (sv *Supervisor) resolving(s *State) {
	if err := s.Issues.Update(s.CurrentIssue); err != nil {
		sv.logger.Warn("issue not in queue", "issue_id", s.CurrentIssue.ID.String(), "error", err)
	}

	switch {
	case s.CurrentIssue.Status.IsTerminal():
		if next, ok := s.Issues.Next(); ok {
			s.CurrentIssue = next
			return
		}
		sv.say(s, "All issues handled. Reviewing again.")
		s.IsReviewDone = false
		sv.move(s, domain.PStatusReviewing)

	case s.CurrentIssue.Status == domain.StatusInProgress:
		if !s.CurrentPlannedIssue.ID.IsZero() {
			if err := s.PlannedIssues.Update(s.CurrentPlannedIssue); err != nil {
				sv.logger.Warn("planned issue not in queue", "planned_issue_id", s.CurrentPlannedIssue.ID.String(), "error", err)
			}
		}
		if s.ArePlannedIssuesInProgress && !s.CurrentPlannedIssue.Status.IsTerminal() {
			return
		}
		if next, ok := s.PlannedIssues.Next(); ok {
			s.CurrentPlannedIssue = next
			s.ArePlannedIssuesInProgress = true
			return
		}
		s.ArePlannedIssuesInProgress = false
		s.CurrentIssue.Status = domain.StatusDone
		_ = s.Issues.Update(s.CurrentIssue)
	}
}

func (sv *Supervisor) halted(s *State) {
	if s.AwaitingHumanAnswer {
		return
	}
	if s.CurrentTask.Status == domain.StatusResponded {
		back := s.PreviousProjectStatus
		if back != domain.PStatusInitial && back != domain.PStatusExecuting {
			back = domain.PStatusInitial
		}
		sv.say(s, "Human answered the question. Resuming "+back.String()+".")
		sv.move(s, back)
		return
	}
	if !s.IsHumanReviewed {
		return
	}
	if s.CurrentTask.Status == domain.StatusInProgress {
		sv.say(s, "Human feedback received. Revising the requirements.")
		s.IsHumanReviewed = false
	}
	sv.move(s, domain.PStatusInitial)
}
