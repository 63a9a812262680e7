// Package rag is the retrieval specialist. It answers questions from the
// knowledge index: retrieve, grade the documents, generate, then check the
// answer for grounding and usefulness, rewriting the query once when nothing
// relevant turns up. Answers are memoized in a fuzzy cache.
package rag

import (
	"context"
	"strings"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/knowledge"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/log"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
)

const (
	DefaultTopK             = 5
	DefaultMaxHallucination = 3

	// NoInformation is the generation returned when nothing relevant was found.
	NoInformation = "I don't have any additional information about the question."
	// Hallucinating is the generation returned when every answer failed the
	// grounding check.
	Hallucinating = "Model is hallucinating with too many inaccuracies."

	maxRewrites = 1
)

// Input is what the supervisor hands the retrieval agent.
type Input struct {
	Question string
	// MaxHallucination bounds regenerations after failed grounding checks.
	// Zero uses the agent default.
	MaxHallucination int
}

// Output is the retrieval agent's answer.
type Output struct {
	Generation    string
	QueryAnswered bool
	// Match reports how the cache served the question; MatchNone when the
	// retrieval pipeline ran.
	Match ragcache.MatchKind
}

// Agent implements agents.Agent[Input, Output].
type Agent struct {
	client           llm.Client
	retriever        knowledge.Retriever
	cache            *ragcache.Cache
	topK             int
	maxHallucination int
	logger           *log.Logger
	metrics          *metrics.Metrics
}

// Option configures the agent.
type Option func(*Agent)

// WithCache shares a cache with the caller. By default the agent owns a
// fresh one.
func WithCache(c *ragcache.Cache) Option {
	return func(a *Agent) {
		if c != nil {
			a.cache = c
		}
	}
}

func WithTopK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.topK = k
		}
	}
}

func WithMaxHallucination(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxHallucination = n
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) { a.metrics = m }
}

// New creates the retrieval agent.
func New(client llm.Client, retriever knowledge.Retriever, opts ...Option) *Agent {
	a := &Agent{
		client:           client,
		retriever:        retriever,
		cache:            ragcache.New(),
		topK:             DefaultTopK,
		maxHallucination: DefaultMaxHallucination,
		logger:           log.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.WithAgent(a.Name())
	return a
}

func (a *Agent) Name() string { return agents.NameRAG }

// Cache returns the answer cache.
func (a *Agent) Cache() *ragcache.Cache { return a.cache }

// Invoke answers in.Question from the cache or the knowledge index.
func (a *Agent) Invoke(ctx context.Context, in Input) (Output, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return Output{}, errors.New(errors.ErrCodeAgentBadInput, "rag agent needs a question")
	}

	if answer, kind := a.cache.Lookup(question); kind != ragcache.MatchNone {
		a.metrics.ObserveCache(kind.String())
		a.logger.Debug("answered from cache", "match", kind.String())
		return Output{Generation: answer, QueryAnswered: true, Match: kind}, nil
	}
	a.metrics.ObserveCache(ragcache.MatchNone.String())

	budget := in.MaxHallucination
	if budget <= 0 {
		budget = a.maxHallucination
	}

	out, err := a.answer(ctx, question, budget)
	if err != nil {
		return Output{}, agents.Failed(a.Name(), err)
	}
	if out.QueryAnswered {
		a.cache.Add(question, out.Generation)
	}
	return out, nil
}

func (a *Agent) answer(ctx context.Context, question string, budget int) (Output, error) {
	rewrites := maxRewrites
	for {
		docs, err := a.retriever.Retrieve(ctx, question, a.topK)
		if err != nil {
			return Output{}, err
		}

		relevant, err := a.gradeDocuments(ctx, question, docs)
		if err != nil {
			return Output{}, err
		}

		if len(relevant) > 0 {
			generation, verdict, err := a.generate(ctx, question, relevant, &budget)
			if err != nil {
				return Output{}, err
			}
			switch verdict {
			case verdictUseful:
				return Output{Generation: generation, QueryAnswered: true}, nil
			case verdictHallucinating:
				a.logger.Info("giving up after failed grounding checks")
				return Output{Generation: Hallucinating}, nil
			}
		}

		if rewrites == 0 {
			a.logger.Info("no relevant documents", "question", question)
			return Output{Generation: NoInformation}, nil
		}
		rewrites--

		question, err = a.rewrite(ctx, question)
		if err != nil {
			return Output{}, err
		}
		a.logger.Debug("rewrote query", "question", question)
	}
}

type verdict int

const (
	verdictUseful verdict = iota
	verdictNotUseful
	verdictHallucinating
)

// generate produces an answer and regenerates while it is not grounded,
// spending budget on every failed grounding check.
func (a *Agent) generate(ctx context.Context, question string, docs []knowledge.Document, budget *int) (string, verdict, error) {
	for {
		resp, err := a.client.Generate(ctx, &llm.Request{
			Tag:    "rag.generate",
			System: systemPrompt,
			Prompt: generatePrompt(question, docs),
		})
		if err != nil {
			return "", 0, err
		}
		generation := strings.TrimSpace(resp.Content)

		grounded, err := a.grade(ctx, "rag.grade_hallucination", groundedPrompt(generation, docs))
		if err != nil {
			return "", 0, err
		}
		if !grounded {
			*budget--
			if *budget <= 0 {
				return generation, verdictHallucinating, nil
			}
			continue
		}

		useful, err := a.grade(ctx, "rag.grade_answer", usefulPrompt(question, generation))
		if err != nil {
			return "", 0, err
		}
		if useful {
			return generation, verdictUseful, nil
		}
		return generation, verdictNotUseful, nil
	}
}

func (a *Agent) gradeDocuments(ctx context.Context, question string, docs []knowledge.Document) ([]knowledge.Document, error) {
	var relevant []knowledge.Document
	for _, doc := range docs {
		ok, err := a.grade(ctx, "rag.grade_document", gradeDocumentPrompt(question, doc))
		if err != nil {
			return nil, err
		}
		if ok {
			relevant = append(relevant, doc)
		}
	}
	return relevant, nil
}

// grade asks a yes/no question. A model that never answers validly counts as "no".
func (a *Agent) grade(ctx context.Context, tag, prompt string) (bool, error) {
	g, err := llm.Structured[agents.Grade](ctx, a.client, llm.Request{
		Tag:    tag,
		System: systemPrompt,
		Prompt: prompt,
	}, llm.WithMetrics(a.metrics))
	if err != nil {
		if agents.Exhausted(err) {
			a.logger.Warn("grader gave no valid verdict", "tag", tag)
			return false, nil
		}
		return false, err
	}
	return g.Yes(), nil
}

func (a *Agent) rewrite(ctx context.Context, question string) (string, error) {
	resp, err := a.client.Generate(ctx, &llm.Request{
		Tag:    "rag.rewrite",
		System: systemPrompt,
		Prompt: rewritePrompt(question),
	})
	if err != nil {
		return "", err
	}
	if rewritten := strings.TrimSpace(resp.Content); rewritten != "" {
		return rewritten, nil
	}
	return question, nil
}
