package domain

import (
	"maps"
	"slices"
)

// Task is a unit of work on the task track. Tasks are never deleted, only
// moved between statuses.
type Task struct {
	ID             ItemID `json:"task_id"`
	Description    string `json:"description"`
	Status         Status `json:"task_status"`
	AdditionalInfo string `json:"additional_info"`
	Question       string `json:"question"`
	Remarks        string `json:"remarks"`
}

// NewTask creates a task in the NEW status.
func NewTask(description, additionalInfo, question string) Task {
	return Task{
		ID:             NewItemID(),
		Description:    description,
		Status:         StatusNew,
		AdditionalInfo: additionalInfo,
		Question:       question,
	}
}

func (t Task) ItemID() ItemID     { return t.ID }
func (t Task) ItemStatus() Status { return t.Status }
func (t Task) Clone() Task        { return t }

// PlannedTask is a finer-grained step of a Task produced by the planner.
type PlannedTask struct {
	Task
	ParentTaskID                 ItemID              `json:"parent_task_id"`
	IsFunctionGenerationRequired bool                `json:"is_function_generation_required"`
	IsTestCodeGenerated          bool                `json:"is_test_code_generated"`
	IsCodeGenerated              bool                `json:"is_code_generated"`
	TestCode                     map[string]string   `json:"test_code,omitempty"`
	FunctionSignatures           map[string][]string `json:"function_signatures,omitempty"`
}

// NewPlannedTask creates a NEW planned task under parent.
func NewPlannedTask(parent ItemID, description string, needsFunctions bool) PlannedTask {
	return PlannedTask{
		Task:                         NewTask(description, "", ""),
		ParentTaskID:                 parent,
		IsFunctionGenerationRequired: needsFunctions,
	}
}

func (p PlannedTask) ItemID() ItemID     { return p.ID }
func (p PlannedTask) ItemStatus() Status { return p.Status }

// Clone returns a deep copy.
func (p PlannedTask) Clone() PlannedTask {
	p.TestCode = maps.Clone(p.TestCode)
	p.FunctionSignatures = cloneSignatures(p.FunctionSignatures)
	return p
}

func cloneSignatures(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = slices.Clone(v)
	}
	return out
}
