// Package supervisor drives a project run. A pure delegator picks the next
// specialist from the state, the runner invokes it and merges its output, and
// the supervisor's transition function moves the project phase forward. Each
// completed step is checkpointed so a run can be resumed by thread id.
package supervisor

import (
	"slices"

	"github.com/felixgeelhaar/genpod/internal/domain"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
)

// ProjectRequest is the user's input for a new run.
type ProjectRequest struct {
	Input       string `json:"input" yaml:"input"`
	LicenseURL  string `json:"license_url,omitempty" yaml:"license_url,omitempty"`
	LicenseText string `json:"license_text,omitempty" yaml:"license_text,omitempty"`
}

// RunContext identifies a run. Empty ids are generated by NewState.
type RunContext struct {
	ThreadID       string
	ProjectID      string
	MicroserviceID string
	UserID         string
	// ProjectPath is the directory generated files are written under.
	ProjectPath string
}

// Stall tracks a specialist that keeps returning the same item unchanged.
type Stall struct {
	Agent    string        `json:"agent,omitempty"`
	ItemID   domain.ItemID `json:"item_id,omitempty"`
	Status   domain.Status `json:"status,omitempty"`
	Attempts int           `json:"attempts,omitempty"`
}

// State is the whole of a run. It is owned by the runner; specialists receive
// value copies of the fields they read and the runner merges their output
// back. It round-trips through JSON for checkpoints.
type State struct {
	ThreadID          string `json:"thread_id"`
	ProjectID         string `json:"project_id"`
	MicroserviceID    string `json:"microservice_id"`
	UserID            string `json:"user_id,omitempty"`
	ProjectName       string `json:"project_name"`
	MicroserviceName  string `json:"microservice_name"`
	OriginalUserInput string `json:"original_user_input"`
	ProjectPath       string `json:"project_path"`
	LicenseURL        string `json:"license_url,omitempty"`
	LicenseText       string `json:"license_text,omitempty"`
	Step              int    `json:"step"`

	ProjectStatus         domain.PStatus `json:"project_status"`
	PreviousProjectStatus domain.PStatus `json:"previous_project_status"`

	CurrentTask         domain.Task         `json:"current_task"`
	CurrentPlannedTask  domain.PlannedTask  `json:"current_planned_task"`
	CurrentIssue        domain.Issue        `json:"current_issue"`
	CurrentPlannedIssue domain.PlannedIssue `json:"current_planned_issue"`

	Tasks         *domain.TaskQueue          `json:"tasks"`
	PlannedTasks  *domain.PlannedTaskQueue   `json:"planned_tasks"`
	Issues        *domain.IssuesQueue        `json:"issues"`
	PlannedIssues *domain.PlannedIssuesQueue `json:"planned_issues"`

	RequirementsDocument domain.RequirementsDocument `json:"requirements_document"`
	RAGRetrieval         string                      `json:"rag_retrieval"`
	RAGCacheQueries      []ragcache.Entry            `json:"rag_cache_queries"`
	RAGCacheBuilding     string                      `json:"rag_cache_building"`

	IsRAGCacheCreated            bool `json:"is_rag_cache_created"`
	IsInitialAdditionalInfoReady bool `json:"is_initial_additional_info_ready"`
	AreRequirementsPrepared      bool `json:"are_requirements_prepared"`
	ArePlannedTasksInProgress    bool `json:"are_planned_tasks_in_progress"`
	ArePlannedIssuesInProgress   bool `json:"are_planned_issues_in_progress"`
	IsHumanReviewed              bool `json:"is_human_reviewed"`
	IsRAGQueryAnswered           bool `json:"is_rag_query_answered"`
	RAGQueryAttempted            bool `json:"rag_query_attempted"`
	AwaitingHumanAnswer          bool `json:"awaiting_human_answer"`
	IsReviewDone                 bool `json:"is_review_done"`

	Messages            []domain.Message            `json:"messages"`
	AgentsStatus        string                      `json:"agents_status"`
	CodeGenerationPlans []domain.CodeGenerationPlan `json:"code_generation_plans"`
	ReviewCycles        int                         `json:"review_cycles"`
	Stall               Stall                       `json:"stall"`
	CallingAgent        string                      `json:"calling_agent"`
	CalledAgent         string                      `json:"called_agent"`
}

// NewState builds the initial RECEIVED state for a request.
func NewState(rc RunContext, req ProjectRequest) *State {
	return &State{
		ThreadID:          rc.ThreadID,
		ProjectID:         rc.ProjectID,
		MicroserviceID:    rc.MicroserviceID,
		UserID:            rc.UserID,
		OriginalUserInput: req.Input,
		ProjectPath:       rc.ProjectPath,
		LicenseURL:        req.LicenseURL,
		LicenseText:       req.LicenseText,
		ProjectStatus:     domain.PStatusReceived,
		Tasks:             &domain.TaskQueue{},
		PlannedTasks:      &domain.PlannedTaskQueue{},
		Issues:            &domain.IssuesQueue{},
		PlannedIssues:     &domain.PlannedIssuesQueue{},
	}
}

// Clone returns a deep copy. The runner steps on a clone so a failed step
// leaves the last completed state untouched.
func (s *State) Clone() *State {
	c := *s
	c.CurrentTask = s.CurrentTask.Clone()
	c.CurrentPlannedTask = s.CurrentPlannedTask.Clone()
	c.CurrentIssue = s.CurrentIssue.Clone()
	c.CurrentPlannedIssue = s.CurrentPlannedIssue.Clone()
	c.Tasks = s.Tasks.Clone()
	c.PlannedTasks = s.PlannedTasks.Clone()
	c.Issues = s.Issues.Clone()
	c.PlannedIssues = s.PlannedIssues.Clone()
	c.RAGCacheQueries = slices.Clone(s.RAGCacheQueries)
	c.Messages = slices.Clone(s.Messages)
	if s.CodeGenerationPlans != nil {
		c.CodeGenerationPlans = make([]domain.CodeGenerationPlan, len(s.CodeGenerationPlans))
		for i, p := range s.CodeGenerationPlans {
			c.CodeGenerationPlans[i] = p.Clone()
		}
	}
	return &c
}

// ensureQueues replaces nil queues, which a hand-edited checkpoint may carry.
func (s *State) ensureQueues() {
	if s.Tasks == nil {
		s.Tasks = &domain.TaskQueue{}
	}
	if s.PlannedTasks == nil {
		s.PlannedTasks = &domain.PlannedTaskQueue{}
	}
	if s.Issues == nil {
		s.Issues = &domain.IssuesQueue{}
	}
	if s.PlannedIssues == nil {
		s.PlannedIssues = &domain.PlannedIssuesQueue{}
	}
}
