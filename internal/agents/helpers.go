package agents

import (
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/llm"
)

// Exhausted reports whether err means the model never produced a valid answer.
// Agents turn it into an item status instead of failing the step.
func Exhausted(err error) bool {
	return errors.Is(err, llm.ErrValidationExhausted)
}

// Grade is a yes/no verdict from a grading prompt.
type Grade struct {
	Score string `json:"score" jsonschema:"enum=yes,enum=no"`
}

// Validate implements llm.Validator.
func (g *Grade) Validate() error {
	g.Score = strings.ToLower(strings.TrimSpace(g.Score))
	if g.Score != "yes" && g.Score != "no" {
		return fmt.Errorf("score must be \"yes\" or \"no\", got %q", g.Score)
	}
	return nil
}

// Yes reports a positive verdict.
func (g Grade) Yes() bool {
	return g.Score == "yes"
}

// Section renders a titled prompt block, or nothing when body is blank.
func Section(title, body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return fmt.Sprintf("%s:\n%s\n\n", title, body)
}
