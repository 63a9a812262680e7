package llm

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/genpod/internal/errors"
)

// FallbackTag is the fixture entry served when a request's tag has none.
const FallbackTag = "*"

// Fixture maps request tags to the responses served for them, in order.
//
//	responses:
//	  architect.requirements:
//	    - '{"project_name": "todo", ...}'
//	  planner.plan:
//	    - '{"backlogs": ["create models"]}'
//	    - '{"backlogs": ["write handlers"]}'
type Fixture struct {
	Model     string              `yaml:"model"`
	Responses map[string][]string `yaml:"responses"`
}

// Replay serves canned responses from a Fixture. Each tag walks its list in
// order; once exhausted the last response repeats.
type Replay struct {
	fixture Fixture

	mu     sync.Mutex
	served map[string]int
	calls  []Request
}

// NewReplay creates a replay client from an in-memory fixture.
func NewReplay(fixture Fixture) *Replay {
	if fixture.Model == "" {
		fixture.Model = "fixture"
	}
	return &Replay{fixture: fixture, served: make(map[string]int)}
}

// LoadReplay reads a YAML fixture file.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read replay fixture", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return NewReplay(fixture), nil
}

func (r *Replay) Name() string  { return "replay" }
func (r *Replay) Model() string { return r.fixture.Model }

// Generate implements Client.
func (r *Replay) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, *req)

	tag := req.Tag
	responses := r.fixture.Responses[tag]
	if len(responses) == 0 {
		tag = FallbackTag
		responses = r.fixture.Responses[tag]
	}
	if len(responses) == 0 {
		return nil, errors.New(errors.ErrCodeLLMFixtureMissing, fmt.Sprintf("no replay response for %q", req.Tag)).
			WithSuggestion(fmt.Sprintf("Add a '%s' entry under responses in the fixture", req.Tag))
	}

	i := r.served[tag]
	if i >= len(responses) {
		i = len(responses) - 1
	}
	r.served[tag]++

	return &Response{
		Content:  responses[i],
		Model:    r.fixture.Model,
		Provider: r.Name(),
	}, nil
}

// Calls returns every request received so far.
func (r *Replay) Calls() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.calls...)
}
