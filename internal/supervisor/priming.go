package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/agents/rag"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
)

const (
	queryListAttempts = 3
	maxPrimingQueries = 10

	// primingFailed is stored as the cache building text when no questions
	// could be prepared.
	primingFailed = "Failed to initialize project"
)

type queryList struct {
	Queries []string `json:"req_queries" jsonschema:"description=Questions for the knowledge base"`
}

func (q *queryList) Validate() error {
	kept := q.Queries[:0]
	for _, query := range q.Queries {
		if query = strings.TrimSpace(query); query != "" {
			kept = append(kept, query)
		}
	}
	q.Queries = kept
	if len(q.Queries) == 0 {
		return fmt.Errorf("req_queries must contain at least one question")
	}
	if len(q.Queries) > maxPrimingQueries {
		q.Queries = q.Queries[:maxPrimingQueries]
	}
	return nil
}

type followUp struct {
	Verdict       string `json:"verdict" jsonschema:"enum=COMPLETE,enum=INCOMPLETE"`
	Reason        string `json:"reason"`
	FollowUpQuery string `json:"follow_up_query,omitempty"`
}

func (f *followUp) Validate() error {
	f.Verdict = strings.ToUpper(strings.TrimSpace(f.Verdict))
	switch f.Verdict {
	case "COMPLETE":
		return nil
	case "INCOMPLETE":
		if strings.TrimSpace(f.FollowUpQuery) == "" {
			return fmt.Errorf("follow_up_query is required when the verdict is INCOMPLETE")
		}
		return nil
	default:
		return fmt.Errorf("verdict must be COMPLETE or INCOMPLETE, got %q", f.Verdict)
	}
}

// primeRAGCache anticipates the questions the team will ask, answers them
// through the retrieval agent so the answers land in its cache, and returns
// the combined question and answer text.
func (r *Runner) primeRAGCache(ctx context.Context, s *State) (string, error) {
	if r.team.LLM == nil {
		return "", nil
	}

	queries, err := llm.Structured[queryList](ctx, r.team.LLM, llm.Request{
		Tag:    "supervisor.queries",
		System: systemPrompt,
		Prompt: queryListPrompt(s.OriginalUserInput),
	}, llm.WithAttempts(queryListAttempts), llm.WithMetrics(r.metrics))
	if agents.Exhausted(err) {
		r.logger.Warn("no priming questions", "thread_id", s.ThreadID, "error", err)
		return primingFailed, nil
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, q := range queries.Queries {
		out, err := r.askRAG(ctx, q)
		if err != nil {
			return "", err
		}
		if !out.QueryAnswered {
			continue
		}
		// Cached answers were already evaluated when first primed.
		if out.Match != ragcache.MatchNone {
			fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\n", q, out.Generation)
			continue
		}

		eval, err := llm.Structured[followUp](ctx, r.team.LLM, llm.Request{
			Tag:    "supervisor.follow_up",
			System: systemPrompt,
			Prompt: followUpPrompt(q, out.Generation),
		}, llm.WithMetrics(r.metrics))
		switch {
		case agents.Exhausted(err):
			fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\n", q, out.Generation)
		case err != nil:
			return "", err
		case eval.Verdict == "INCOMPLETE":
			extra, err := r.askRAG(ctx, eval.FollowUpQuery)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "Question: %s\nInitial Answer: %s\nFollow-up Question: %s\nFollow-up Answer: %s\n\n",
				q, out.Generation, eval.FollowUpQuery, extra.Generation)
		default:
			fmt.Fprintf(&b, "Question: %s\nAnswer: %s\n\n", q, out.Generation)
		}
	}
	return b.String(), nil
}

func (r *Runner) askRAG(ctx context.Context, question string) (rag.Output, error) {
	return r.team.RAG.Invoke(ctx, rag.Input{Question: question, MaxHallucination: r.sv.cfg.MaxHallucination})
}
