package domain

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Issue is a problem found by the reviewer. It mirrors Task on the issue track.
type Issue struct {
	ID             ItemID   `json:"issue_id"`
	Status         Status   `json:"issue_status"`
	FilePath       string   `json:"file_path"`
	LineNumber     int      `json:"line_number,omitempty"`
	Description    string   `json:"description"`
	Suggestions    []string `json:"suggestions,omitempty"`
	Remarks        string   `json:"remarks"`
	Question       string   `json:"question"`
	AdditionalInfo string   `json:"additional_info"`
}

// NewIssue creates an issue in the NEW status.
func NewIssue(filePath string, line int, description string, suggestions ...string) Issue {
	return Issue{
		ID:          NewItemID(),
		Status:      StatusNew,
		FilePath:    filePath,
		LineNumber:  line,
		Description: description,
		Suggestions: suggestions,
	}
}

func (i Issue) ItemID() ItemID     { return i.ID }
func (i Issue) ItemStatus() Status { return i.Status }

// Clone returns a deep copy.
func (i Issue) Clone() Issue {
	i.Suggestions = slices.Clone(i.Suggestions)
	return i
}

// Details renders the issue for prompts and status output.
func (i Issue) Details() string {
	return issueDetails(i.Description, i.FilePath, i.LineNumber, i.Suggestions)
}

// PlannedIssue is a planner step that resolves part of an Issue.
type PlannedIssue struct {
	Issue
	ParentIssueID                ItemID              `json:"parent_issue_id"`
	IsFunctionGenerationRequired bool                `json:"is_function_generation_required"`
	IsTestCodeGenerated          bool                `json:"is_test_code_generated"`
	IsCodeGenerated              bool                `json:"is_code_generated"`
	FunctionSignatures           map[string][]string `json:"function_signatures,omitempty"`
	TestCode                     map[string]string   `json:"test_code,omitempty"`
}

// NewPlannedIssue creates a NEW planned issue under parent, inheriting its location.
func NewPlannedIssue(parent Issue, description string, needsFunctions bool) PlannedIssue {
	child := NewIssue(parent.FilePath, parent.LineNumber, description, parent.Suggestions...)
	return PlannedIssue{
		Issue:                        child.Clone(),
		ParentIssueID:                parent.ID,
		IsFunctionGenerationRequired: needsFunctions,
	}
}

func (p PlannedIssue) ItemID() ItemID     { return p.ID }
func (p PlannedIssue) ItemStatus() Status { return p.Status }

// Clone returns a deep copy.
func (p PlannedIssue) Clone() PlannedIssue {
	p.Issue = p.Issue.Clone()
	p.FunctionSignatures = cloneSignatures(p.FunctionSignatures)
	p.TestCode = maps.Clone(p.TestCode)
	return p
}

func issueDetails(description, filePath string, line int, suggestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issue: %s\n", description)
	fmt.Fprintf(&b, "File: %s\n", filePath)
	if line > 0 {
		fmt.Fprintf(&b, "Line: %d\n", line)
	}
	if len(suggestions) > 0 {
		fmt.Fprintf(&b, "Suggestions:\n%s\n", strings.Join(suggestions, "\n"))
	}
	return b.String()
}
