package architect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/domain"
)

type requirementsAnswer struct {
	domain.RequirementsDocument
	Question string `json:"question,omitempty" jsonschema:"description=Set only when the document cannot be written yet"`
}

func (r *requirementsAnswer) Validate() error {
	if strings.TrimSpace(r.Question) != "" {
		return nil
	}
	if strings.TrimSpace(r.ProjectSummary) == "" {
		return fmt.Errorf("project_summary is required")
	}
	if strings.TrimSpace(r.TasksSummary) == "" {
		return fmt.Errorf("tasks_summary is required")
	}
	return nil
}

type tasksList struct {
	Tasks []string `json:"tasks"`
}

func (t *tasksList) Validate() error {
	if len(t.Tasks) == 0 {
		return fmt.Errorf("tasks must not be empty")
	}
	for i, task := range t.Tasks {
		if strings.TrimSpace(task) == "" {
			return fmt.Errorf("task %d is blank", i)
		}
	}
	return nil
}

var nameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

type projectDetails struct {
	ProjectName      string `json:"project_name"`
	MicroserviceName string `json:"microservice_name"`
}

func (p *projectDetails) Validate() error {
	p.ProjectName = strings.ToLower(strings.TrimSpace(p.ProjectName))
	p.MicroserviceName = strings.ToLower(strings.TrimSpace(p.MicroserviceName))
	if !nameRe.MatchString(p.ProjectName) {
		return fmt.Errorf("project_name %q must match %s", p.ProjectName, nameRe)
	}
	if p.MicroserviceName != "" && !nameRe.MatchString(p.MicroserviceName) {
		return fmt.Errorf("microservice_name %q must match %s", p.MicroserviceName, nameRe)
	}
	return nil
}

type queryResult struct {
	IsAnswerFound bool   `json:"is_answer_found"`
	ResponseText  string `json:"response_text"`
}

func (q *queryResult) Validate() error {
	if q.IsAnswerFound && strings.TrimSpace(q.ResponseText) == "" {
		return fmt.Errorf("response_text is required when is_answer_found is true")
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a name from free text, keeping the first few words.
func slugify(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 4 {
		words = words[:4]
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.Join(words, "-"), "-"), "-")
	if slug == "" {
		return "project"
	}
	return slug
}
