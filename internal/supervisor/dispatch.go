package supervisor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/agents/architect"
	"github.com/felixgeelhaar/genpod/internal/agents/coder"
	"github.com/felixgeelhaar/genpod/internal/agents/planner"
	"github.com/felixgeelhaar/genpod/internal/agents/rag"
	"github.com/felixgeelhaar/genpod/internal/agents/reviewer"
	"github.com/felixgeelhaar/genpod/internal/agents/testgen"
	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
)

// Team is the set of specialists a run delegates to.
type Team struct {
	RAG           agents.Agent[rag.Input, rag.Output]
	Architect     agents.Agent[architect.Input, architect.Output]
	Planner       agents.Agent[planner.Input, planner.Output]
	Coder         agents.Agent[coder.Input, coder.Output]
	TestGenerator agents.Agent[testgen.Input, testgen.Output]
	Reviewer      agents.Agent[reviewer.Input, reviewer.Output]
	Human         HumanReviewer

	// LLM prepares the questions that prime the retrieval cache. Priming is
	// skipped when nil.
	LLM llm.Client
	// Cache is the retrieval agent's cache. Its entries are saved with every
	// checkpoint and restored on resume.
	Cache *ragcache.Cache
}

func (t Team) validate() error {
	missing := func(name string) error {
		return errors.New(errors.ErrCodeAgentBadInput, "team has no "+name+" agent")
	}
	switch {
	case t.RAG == nil:
		return missing(agents.NameRAG)
	case t.Architect == nil:
		return missing(agents.NameArchitect)
	case t.Planner == nil:
		return missing(agents.NamePlanner)
	case t.Coder == nil:
		return missing(agents.NameCoder)
	case t.TestGenerator == nil:
		return missing(agents.NameTestGenerator)
	case t.Reviewer == nil:
		return missing(agents.NameReviewer)
	case t.Human == nil:
		return missing(agents.NameHuman)
	}
	return nil
}

// dispatch invokes the specialist for route and merges its output into s.
func (r *Runner) dispatch(ctx context.Context, s *State, route Route) error {
	s.CallingAgent, s.CalledAgent = agents.NameSupervisor, route.String()

	before, tracked := focusOf(s, route)
	var err error
	switch route {
	case RouteSupervisor:
		return nil
	case RouteRAG:
		err = r.callRAG(ctx, s)
	case RouteArchitect:
		err = r.callArchitect(ctx, s)
	case RoutePlanner:
		err = r.callPlanner(ctx, s)
	case RouteCoder:
		err = r.callCoder(ctx, s)
	case RouteTestGenerator:
		err = r.callTestGenerator(ctx, s)
	case RouteReviewer:
		err = r.callReviewer(ctx, s)
	case RouteHuman:
		err = r.callHuman(ctx, s)
	default:
		return errors.New(errors.ErrCodeStateInvalid, "no specialist for route "+route.String())
	}
	if err != nil {
		return err
	}
	if tracked {
		r.guardStall(s, route, before)
	}
	return nil
}

func (r *Runner) callRAG(ctx context.Context, s *State) error {
	defer r.saveCache(s)

	switch s.ProjectStatus {
	case domain.PStatusNew:
		if !s.IsRAGCacheCreated {
			building, err := r.primeRAGCache(ctx, s)
			if err != nil {
				return err
			}
			s.RAGCacheBuilding = building
			s.IsRAGCacheCreated = true
		}
		out, err := r.askRAG(ctx, s.CurrentTask.Question)
		if err != nil {
			return err
		}
		s.CurrentTask.AdditionalInfo = out.Generation + s.RAGCacheBuilding
		s.CurrentTask.Status = domain.StatusDone
		s.IsInitialAdditionalInfoReady = true
		s.IsRAGQueryAnswered = out.QueryAnswered
		s.RAGRetrieval = out.Generation + "\n" + s.RAGCacheBuilding
		s.AgentsStatus = "rag: additional context ready"
		r.sv.say(s, "Knowledge base context gathered for the request.")

	case domain.PStatusMonitoring:
		out, err := r.askRAG(ctx, s.CurrentTask.Question)
		if err != nil {
			return err
		}
		s.RAGQueryAttempted = true
		s.IsRAGQueryAnswered = out.QueryAnswered
		if !out.QueryAnswered {
			s.AgentsStatus = "rag: question not answered, asking the architect"
			return nil
		}
		s.CurrentTask.Status = domain.StatusResponded
		s.CurrentTask.AdditionalInfo += "\nRAG_Response:\n" + out.Generation
		s.RAGRetrieval += "\n" + out.Generation
		s.AgentsStatus = "rag: question answered"

	default:
		return errors.New(errors.ErrCodeStateInvalid, "rag agent called in "+s.ProjectStatus.String())
	}
	return nil
}

func (r *Runner) saveCache(s *State) {
	if r.team.Cache != nil {
		s.RAGCacheQueries = r.team.Cache.Entries()
	}
}

func (r *Runner) callArchitect(ctx context.Context, s *State) error {
	out, err := r.team.Architect.Invoke(ctx, architect.Input{
		ProjectStatus:        s.ProjectStatus,
		Task:                 s.CurrentTask,
		UserRequest:          s.OriginalUserInput,
		ProjectPath:          s.ProjectPath,
		RequirementsDocument: s.RequirementsDocument,
		Context:              s.RAGRetrieval,
	})
	if err != nil {
		return err
	}
	s.CurrentTask = out.Task

	if s.ProjectStatus == domain.PStatusMonitoring {
		if out.QueryAnswered {
			s.AgentsStatus = "architect: question answered"
			return nil
		}
		s.AgentsStatus = "architect: question needs a human"
		s.AwaitingHumanAnswer = true
		r.sv.say(s, "Neither the knowledge base nor the architect could answer: "+s.CurrentTask.Question)
		r.sv.move(s, domain.PStatusHalted)
		return nil
	}

	switch out.Task.Status {
	case domain.StatusDone:
		// Work has not started in INITIAL, so a revised document replaces the
		// draft task list instead of adding to it.
		tasks, err := domain.NewQueue(out.Tasks...)
		if err != nil {
			return errors.Wrap(errors.ErrCodeQueueDuplicateID, "architect returned duplicate tasks", err)
		}
		s.Tasks = tasks
		s.RequirementsDocument = out.RequirementsDocument
		s.AreRequirementsPrepared = true
		if out.ProjectName != "" {
			s.ProjectName = out.ProjectName
		}
		if out.MicroserviceName != "" {
			s.MicroserviceName = out.MicroserviceName
		}
		s.AgentsStatus = fmt.Sprintf("architect: requirements ready with %d tasks", len(out.Tasks))
		r.sv.say(s, "Requirements document written to "+architect.RequirementsPath+".")
	case domain.StatusAwaiting:
		s.AgentsStatus = "architect: needs more information"
	default:
		s.AgentsStatus = "architect: " + out.Task.Status.String()
	}
	return nil
}

func (r *Runner) plannerContext(s *State) string {
	return s.RequirementsDocument.Markdown() + "\n" + s.RAGRetrieval
}

func (r *Runner) callPlanner(ctx context.Context, s *State) error {
	out, err := r.team.Planner.Invoke(ctx, planner.Input{
		ProjectStatus: s.ProjectStatus,
		Task:          s.CurrentTask,
		Issue:         s.CurrentIssue,
		Context:       r.plannerContext(s),
		ProjectPath:   s.ProjectPath,
	})
	if err != nil {
		return err
	}

	if s.ProjectStatus == domain.PStatusResolving {
		s.CurrentIssue = out.Issue
		if out.Issue.Status == domain.StatusInProgress {
			if err := s.PlannedIssues.Extend(out.PlannedIssues...); err != nil {
				return errors.Wrap(errors.ErrCodeQueueDuplicateID, "planner returned duplicate planned issues", err)
			}
		}
		s.AgentsStatus = fmt.Sprintf("planner: issue %s with %d planned issues", out.Issue.Status, len(out.PlannedIssues))
		return nil
	}

	s.CurrentTask = out.Task
	if out.Task.Status == domain.StatusInProgress {
		if err := s.PlannedTasks.Extend(out.PlannedTasks...); err != nil {
			return errors.Wrap(errors.ErrCodeQueueDuplicateID, "planner returned duplicate planned tasks", err)
		}
	}
	s.AgentsStatus = fmt.Sprintf("planner: task %s with %d planned tasks", out.Task.Status, len(out.PlannedTasks))
	return nil
}

func (r *Runner) callCoder(ctx context.Context, s *State) error {
	out, err := r.team.Coder.Invoke(ctx, coder.Input{
		ProjectStatus:        s.ProjectStatus,
		PlannedTask:          s.CurrentPlannedTask,
		PlannedIssue:         s.CurrentPlannedIssue,
		RequirementsDocument: s.RequirementsDocument,
		ProjectName:          s.ProjectName,
		ProjectPath:          s.ProjectPath,
		LicenseText:          s.LicenseText,
		LicenseURL:           s.LicenseURL,
	})
	if err != nil {
		return err
	}

	status := out.PlannedTask.Status
	if s.ProjectStatus == domain.PStatusResolving {
		s.CurrentPlannedIssue = out.PlannedIssue
		status = out.PlannedIssue.Status
	} else {
		s.CurrentPlannedTask = out.PlannedTask
	}
	if !out.Plan.ItemID.IsZero() {
		s.CodeGenerationPlans = append(s.CodeGenerationPlans, out.Plan)
	}
	s.AgentsStatus = fmt.Sprintf("coder: %s, %d files written", status, len(out.Plan.Files))
	return nil
}

func (r *Runner) callTestGenerator(ctx context.Context, s *State) error {
	out, err := r.team.TestGenerator.Invoke(ctx, testgen.Input{
		ProjectStatus:        s.ProjectStatus,
		PlannedTask:          s.CurrentPlannedTask,
		PlannedIssue:         s.CurrentPlannedIssue,
		RequirementsDocument: s.RequirementsDocument,
		ProjectName:          s.ProjectName,
		ProjectPath:          s.ProjectPath,
	})
	if err != nil {
		return err
	}

	status := out.PlannedTask.Status
	if s.ProjectStatus == domain.PStatusResolving {
		s.CurrentPlannedIssue = out.PlannedIssue
		status = out.PlannedIssue.Status
	} else {
		s.CurrentPlannedTask = out.PlannedTask
	}
	s.AgentsStatus = "test_generator: " + status.String()
	return nil
}

func (r *Runner) callReviewer(ctx context.Context, s *State) error {
	out, err := r.team.Reviewer.Invoke(ctx, reviewer.Input{
		ProjectName:          s.ProjectName,
		ProjectPath:          s.ProjectPath,
		LicenseText:          s.LicenseText,
		RequirementsDocument: s.RequirementsDocument,
		Cycle:                s.ReviewCycles + 1,
	})
	if err != nil {
		return err
	}
	if err := s.Issues.Extend(out.Issues...); err != nil {
		return errors.Wrap(errors.ErrCodeQueueDuplicateID, "reviewer returned duplicate issues", err)
	}
	s.ReviewCycles++
	s.IsReviewDone = true
	s.AgentsStatus = fmt.Sprintf("reviewer: cycle %d found %d issues", s.ReviewCycles, len(out.Issues))
	return nil
}

func (r *Runner) callHuman(ctx context.Context, s *State) error {
	if s.AwaitingHumanAnswer {
		outcome, err := r.team.Human.Review(ctx, ReviewRequest{
			Kind:        ReviewQuery,
			ThreadID:    s.ThreadID,
			ProjectName: s.ProjectName,
			Question:    s.CurrentTask.Question,
		})
		if err != nil {
			return err
		}
		answer := outcome.Answer
		if answer == "" {
			answer = "No answer provided."
		}
		s.Messages = append(s.Messages, domain.Message{Role: domain.RoleHuman, Content: answer, At: r.sv.now()})
		s.CurrentTask.AdditionalInfo += "\nHuman Response:\n" + answer
		s.CurrentTask.Status = domain.StatusResponded
		s.AwaitingHumanAnswer = false
		s.AgentsStatus = "human: question answered"
		return nil
	}

	outcome, err := r.team.Human.Review(ctx, ReviewRequest{
		Kind:         ReviewRequirements,
		ThreadID:     s.ThreadID,
		ProjectName:  s.ProjectName,
		DocumentPath: filepath.Join(s.ProjectPath, architect.RequirementsPath),
		Document:     s.RequirementsDocument.Markdown(),
	})
	if err != nil {
		return err
	}
	s.IsHumanReviewed = true
	if outcome.Feedback == "" {
		s.AgentsStatus = "human: requirements approved"
		s.Messages = append(s.Messages, domain.Message{Role: domain.RoleHuman, Content: "Approved.", At: r.sv.now()})
		return nil
	}
	s.Messages = append(s.Messages, domain.Message{Role: domain.RoleHuman, Content: outcome.Feedback, At: r.sv.now()})
	s.CurrentTask.AdditionalInfo += "\nHuman feedback to incorporate:\n" + outcome.Feedback
	s.CurrentTask.Status = domain.StatusInProgress
	s.AgentsStatus = "human: requirements need changes"
	return nil
}

// focus is the item a planning or coding specialist works on.
type focus struct {
	id     domain.ItemID
	status domain.Status
}

func focusOf(s *State, route Route) (focus, bool) {
	issueTrack := s.ProjectStatus == domain.PStatusResolving
	switch route {
	case RoutePlanner:
		if issueTrack {
			return focus{s.CurrentIssue.ID, s.CurrentIssue.Status}, true
		}
		return focus{s.CurrentTask.ID, s.CurrentTask.Status}, true
	case RouteCoder, RouteTestGenerator:
		if issueTrack {
			return focus{s.CurrentPlannedIssue.ID, s.CurrentPlannedIssue.Status}, true
		}
		return focus{s.CurrentPlannedTask.ID, s.CurrentPlannedTask.Status}, true
	}
	return focus{}, false
}

// guardStall abandons an item once the same specialist has returned it
// unchanged MaxItemAttempts times in a row.
func (r *Runner) guardStall(s *State, route Route, before focus) {
	after, _ := focusOf(s, route)
	agent := route.String()
	if after.id != before.id || after.status != before.status || after.status.IsTerminal() {
		s.Stall = Stall{}
		return
	}
	if s.Stall.Agent != agent || s.Stall.ItemID != after.id || s.Stall.Status != after.status {
		s.Stall = Stall{Agent: agent, ItemID: after.id, Status: after.status}
	}
	s.Stall.Attempts++
	if s.Stall.Attempts < r.sv.cfg.MaxItemAttempts {
		return
	}

	remark := fmt.Sprintf("abandoned after %s made no progress in %d attempts", agent, s.Stall.Attempts)
	issueTrack := s.ProjectStatus == domain.PStatusResolving
	switch {
	case route == RoutePlanner && issueTrack:
		s.CurrentIssue.Status, s.CurrentIssue.Remarks = domain.StatusAbandoned, remark
	case route == RoutePlanner:
		s.CurrentTask.Status, s.CurrentTask.Remarks = domain.StatusAbandoned, remark
	case issueTrack:
		s.CurrentPlannedIssue.Status, s.CurrentPlannedIssue.Remarks = domain.StatusAbandoned, remark
	default:
		s.CurrentPlannedTask.Status, s.CurrentPlannedTask.Remarks = domain.StatusAbandoned, remark
	}
	r.logger.Warn("item abandoned", "thread_id", s.ThreadID, "agent", agent, "item_id", after.id.String(), "attempts", s.Stall.Attempts)
	r.metrics.ObserveStall(agent)
	s.AgentsStatus = agent + ": " + remark
	s.Stall = Stall{}
}
