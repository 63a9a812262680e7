package supervisor

import (
	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/domain"
)

// Route is the delegator's decision for the next step.
type Route int

const (
	// RouteUpdateState ends the run.
	RouteUpdateState Route = iota
	// RouteSupervisor runs only the transition function.
	RouteSupervisor
	RouteRAG
	RouteArchitect
	RoutePlanner
	RouteCoder
	RouteTestGenerator
	RouteReviewer
	RouteHuman
)

func (r Route) String() string {
	switch r {
	case RouteSupervisor:
		return agents.NameSupervisor
	case RouteRAG:
		return agents.NameRAG
	case RouteArchitect:
		return agents.NameArchitect
	case RoutePlanner:
		return agents.NamePlanner
	case RouteCoder:
		return agents.NameCoder
	case RouteTestGenerator:
		return agents.NameTestGenerator
	case RouteReviewer:
		return agents.NameReviewer
	case RouteHuman:
		return agents.NameHuman
	default:
		return "update_state"
	}
}

// Delegate picks the next route from the state alone. It never mutates s.
func Delegate(s *State) Route {
	switch s.ProjectStatus {
	case domain.PStatusReceived:
		return RouteSupervisor

	case domain.PStatusNew:
		if s.CurrentTask.Status == domain.StatusDone {
			return RouteSupervisor
		}
		return RouteRAG

	case domain.PStatusInitial:
		switch s.CurrentTask.Status {
		case domain.StatusDone, domain.StatusAwaiting, domain.StatusAbandoned:
			return RouteSupervisor
		}
		if s.IsInitialAdditionalInfoReady {
			return RouteArchitect
		}
		return RouteSupervisor

	case domain.PStatusMonitoring:
		if s.CurrentTask.Status != domain.StatusAwaiting {
			return RouteSupervisor
		}
		if !s.RAGQueryAttempted {
			return RouteRAG
		}
		if !s.IsRAGQueryAnswered {
			return RouteArchitect
		}
		return RouteSupervisor

	case domain.PStatusExecuting:
		if s.ArePlannedTasksInProgress {
			pt := s.CurrentPlannedTask
			return plannedRoute(pt.Status, pt.IsFunctionGenerationRequired, pt.IsTestCodeGenerated, pt.IsCodeGenerated)
		}
		switch s.CurrentTask.Status {
		case domain.StatusNew, domain.StatusResponded:
			return RoutePlanner
		}
		return RouteSupervisor

	case domain.PStatusReviewing:
		if !s.IsReviewDone {
			return RouteReviewer
		}
		return RouteSupervisor

	case domain.PStatusResolving:
		if s.ArePlannedIssuesInProgress {
			pi := s.CurrentPlannedIssue
			return plannedRoute(pi.Status, pi.IsFunctionGenerationRequired, pi.IsTestCodeGenerated, pi.IsCodeGenerated)
		}
		if s.CurrentIssue.Status == domain.StatusNew {
			return RoutePlanner
		}
		return RouteSupervisor

	case domain.PStatusHalted:
		if s.AwaitingHumanAnswer {
			return RouteHuman
		}
		if s.CurrentTask.Status == domain.StatusResponded {
			return RouteSupervisor
		}
		if !s.IsHumanReviewed {
			return RouteHuman
		}
		return RouteSupervisor

	default:
		return RouteUpdateState
	}
}

// plannedRoute sends a planned item to the test generator when it needs
// function stubs, then to the coder. Finished items go back to the supervisor
// so it can pick the next one.
func plannedRoute(status domain.Status, needsFunctions, testsGenerated, codeGenerated bool) Route {
	if status.IsTerminal() {
		return RouteSupervisor
	}
	if needsFunctions && !testsGenerated {
		return RouteTestGenerator
	}
	if !codeGenerated {
		return RouteCoder
	}
	return RouteSupervisor
}
