package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/domain"
)

type backlogList struct {
	Backlogs []string `json:"backlogs" jsonschema:"description=Ordered work packages needed to complete the deliverable"`
}

func (b *backlogList) Validate() error {
	if len(b.Backlogs) == 0 {
		return fmt.Errorf("backlogs must not be empty")
	}
	for i, item := range b.Backlogs {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("backlog %d is blank", i)
		}
	}
	return nil
}

// workPackage is the detailed plan for one backlog item, or a question when
// the planner lacks information.
type workPackage struct {
	Question           string   `json:"question,omitempty" jsonschema:"description=Set only when information is missing"`
	Description        string   `json:"description,omitempty"`
	Name               string   `json:"name,omitempty"`
	Language           string   `json:"language,omitempty"`
	Framework          string   `json:"framework,omitempty"`
	Files              []string `json:"files,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}

func (w *workPackage) Validate() error {
	if strings.TrimSpace(w.Question) == "" && strings.TrimSpace(w.Description) == "" {
		return fmt.Errorf("either question or description is required")
	}
	return nil
}

// document is the JSON stored as the planned task description and written to
// docs/work_packages.
func (w workPackage) document(id domain.ItemID, backlog string) ([]byte, error) {
	return json.MarshalIndent(struct {
		TaskID          domain.ItemID `json:"task_id"`
		WorkPackageName string        `json:"work_package_name"`
		workPackage
	}{id, backlog, w}, "", "  ")
}

type segregation struct {
	RequiresFunctionCreation bool `json:"requires_function_creation" jsonschema:"description=True when the work needs new functions that deserve unit tests"`
}
