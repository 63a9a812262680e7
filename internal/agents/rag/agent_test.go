package rag

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/genpod/internal/errors"
	"github.com/felixgeelhaar/genpod/internal/knowledge"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
)

var corpus = knowledge.Static{
	{Source: "standards.md", Content: "Loan records must carry a borrower name and an amount."},
	{Source: "style.md", Content: "Services expose health endpoints on port 8080."},
}

func countTag(calls []llm.Request, tag string) int {
	n := 0
	for _, c := range calls {
		if c.Tag == tag {
			n++
		}
	}
	return n
}

func TestInvokeAnswersAndCaches(t *testing.T) {
	client := llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"rag.grade_document":      {`{"score": "yes"}`},
		"rag.generate":            {"A loan record needs a borrower name and an amount."},
		"rag.grade_hallucination": {`{"score": "yes"}`},
		"rag.grade_answer":        {`{"score": "yes"}`},
	}})
	agent := New(client, corpus)

	out, err := agent.Invoke(context.Background(), Input{Question: "What fields does a loan record carry?"})
	require.NoError(t, err)
	assert.True(t, out.QueryAnswered)
	assert.Equal(t, "A loan record needs a borrower name and an amount.", out.Generation)
	assert.Equal(t, ragcache.MatchNone, out.Match)

	before := len(client.Calls())
	again, err := agent.Invoke(context.Background(), Input{Question: "What fields does a loan record carry?"})
	require.NoError(t, err)
	assert.Equal(t, ragcache.MatchExact, again.Match)
	assert.Equal(t, out.Generation, again.Generation)
	assert.Len(t, client.Calls(), before, "a cache hit must not call the model")
}

func TestInvokeRewritesOnceThenGivesUp(t *testing.T) {
	client := llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"rag.grade_document": {`{"score": "no"}`},
		"rag.rewrite":        {"loan borrower amount fields"},
	}})
	agent := New(client, corpus)

	out, err := agent.Invoke(context.Background(), Input{Question: "loan fields"})
	require.NoError(t, err)
	assert.False(t, out.QueryAnswered)
	assert.Equal(t, NoInformation, out.Generation)
	assert.Equal(t, 1, countTag(client.Calls(), "rag.rewrite"))
	assert.Equal(t, 0, agent.Cache().Len(), "unanswered questions are not cached")
}

func TestInvokeStopsHallucinating(t *testing.T) {
	client := llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"rag.grade_document":      {`{"score": "yes"}`},
		"rag.generate":            {"Loans are stored on the moon."},
		"rag.grade_hallucination": {`{"score": "no"}`},
	}})
	agent := New(client, corpus)

	out, err := agent.Invoke(context.Background(), Input{Question: "Where are loan records stored?", MaxHallucination: 2})
	require.NoError(t, err)
	assert.False(t, out.QueryAnswered)
	assert.Equal(t, Hallucinating, out.Generation)
	assert.Equal(t, 2, countTag(client.Calls(), "rag.generate"))
}

func TestInvokeNotUsefulFallsBackToRewrite(t *testing.T) {
	client := llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"rag.grade_document":      {`{"score": "yes"}`},
		"rag.generate":            {"Something vague.", "Port 8080 serves health checks."},
		"rag.grade_hallucination": {`{"score": "yes"}`},
		"rag.grade_answer":        {`{"score": "no"}`, `{"score": "yes"}`},
		"rag.rewrite":             {"health endpoint port"},
	}})
	agent := New(client, corpus)

	out, err := agent.Invoke(context.Background(), Input{Question: "Which port serves health endpoints?"})
	require.NoError(t, err)
	assert.True(t, out.QueryAnswered)
	assert.Equal(t, "Port 8080 serves health checks.", out.Generation)
}

func TestInvokeInvalidGradeCountsAsNo(t *testing.T) {
	client := llm.NewReplay(llm.Fixture{Responses: map[string][]string{
		"rag.grade_document": {"maybe"},
		"rag.rewrite":        {"loan"},
	}})
	agent := New(client, corpus)

	out, err := agent.Invoke(context.Background(), Input{Question: "loan"})
	require.NoError(t, err)
	assert.False(t, out.QueryAnswered)
}

func TestInvokeRejectsEmptyQuestion(t *testing.T) {
	agent := New(llm.NewReplay(llm.Fixture{}), corpus)

	_, err := agent.Invoke(context.Background(), Input{Question: "  "})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAgentBadInput, errors.CodeOf(err))
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, string, int) ([]knowledge.Document, error) {
	return nil, fmt.Errorf("index unavailable")
}

func TestInvokeRetrieverFailure(t *testing.T) {
	agent := New(llm.NewReplay(llm.Fixture{}), failingRetriever{})

	_, err := agent.Invoke(context.Background(), Input{Question: "anything"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAgentFailed, errors.CodeOf(err))
}

func TestSharedCache(t *testing.T) {
	cache := ragcache.New()
	cache.Add("Which port serves health endpoints?", "8080")
	agent := New(llm.NewReplay(llm.Fixture{}), corpus, WithCache(cache))

	out, err := agent.Invoke(context.Background(), Input{Question: "which port serves health endpoints"})
	require.NoError(t, err)
	assert.True(t, out.QueryAnswered)
	assert.Equal(t, "8080", out.Generation)
	assert.NotEqual(t, ragcache.MatchNone, out.Match)
}
