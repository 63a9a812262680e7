package cmd

import (
	"context"
	"io"

	"github.com/felixgeelhaar/genpod/internal/agents"
	"github.com/felixgeelhaar/genpod/internal/agents/architect"
	"github.com/felixgeelhaar/genpod/internal/agents/coder"
	"github.com/felixgeelhaar/genpod/internal/agents/planner"
	"github.com/felixgeelhaar/genpod/internal/agents/rag"
	"github.com/felixgeelhaar/genpod/internal/agents/reviewer"
	"github.com/felixgeelhaar/genpod/internal/agents/testgen"
	"github.com/felixgeelhaar/genpod/internal/checkpoint"
	"github.com/felixgeelhaar/genpod/internal/config"
	"github.com/felixgeelhaar/genpod/internal/hooks"
	"github.com/felixgeelhaar/genpod/internal/knowledge"
	"github.com/felixgeelhaar/genpod/internal/llm"
	"github.com/felixgeelhaar/genpod/internal/metrics"
	"github.com/felixgeelhaar/genpod/internal/ragcache"
	"github.com/felixgeelhaar/genpod/internal/registry"
	"github.com/felixgeelhaar/genpod/internal/supervisor"
	"github.com/felixgeelhaar/genpod/internal/tui"
)

// session holds everything a generate or resume run needs. Close releases
// the stores in reverse order of opening.
type session struct {
	runner   *supervisor.Runner
	store    checkpoint.Store
	registry *registry.Registry
	closers  []io.Closer
	cleanup  func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	if s.cleanup != nil {
		s.cleanup()
	}
}

// openSession wires the configured provider, knowledge index, agents, stores
// and hooks into a runner.
func openSession(ctx context.Context, cfg *config.Config, human supervisor.HumanReviewer) (_ *session, err error) {
	m, cleanup := setupObservability(ctx, cfg)
	s := &session{cleanup: cleanup}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.closers = append(s.closers, store)

	reg, err := registry.Open(ctx, cfg.Registry.Path)
	if err != nil {
		return nil, err
	}
	s.registry = reg
	s.closers = append(s.closers, reg)

	client, err := llm.New(cfg.LLMSettings(), m, logger)
	if err != nil {
		return nil, err
	}

	retriever, closer, err := openKnowledge(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		s.closers = append(s.closers, closer)
	}

	hookRegistry, err := hooks.FromConfig(cfg.Hooks, logger)
	if err != nil {
		return nil, err
	}

	team := buildTeam(cfg, client, retriever, human, m)
	s.runner, err = supervisor.NewRunner(
		supervisor.New(cfg.SupervisorSettings(), logger, m),
		team, store,
		supervisor.WithHooks(hookRegistry),
		supervisor.WithRecorder(reg),
		supervisor.WithMetrics(m),
		supervisor.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config) (checkpoint.Store, error) {
	return checkpoint.Open(ctx, cfg.Store.Backend, cfg.Store.Path)
}

// openKnowledge indexes rag.knowledge_dir into the FTS index. Without a
// knowledge directory the agents run with an empty retriever.
func openKnowledge(ctx context.Context, cfg *config.Config) (knowledge.Retriever, io.Closer, error) {
	if cfg.RAG.KnowledgeDir == "" {
		return knowledge.Static(nil), nil, nil
	}
	index, err := knowledge.Open(ctx, cfg.RAG.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	n, err := index.IndexDir(ctx, cfg.RAG.KnowledgeDir)
	if err != nil {
		_ = index.Close()
		return nil, nil, err
	}
	logger.Info("knowledge indexed", "dir", cfg.RAG.KnowledgeDir, "changed_files", n)
	return index, index, nil
}

func buildTeam(cfg *config.Config, client llm.Client, retriever knowledge.Retriever, human supervisor.HumanReviewer, m *metrics.Metrics) supervisor.Team {
	cache := ragcache.New(
		ragcache.WithLimit(cfg.RAG.CacheLimit),
		ragcache.WithThreshold(cfg.RAG.SimilarityThreshold),
	)
	ragAgent := rag.New(client, retriever,
		rag.WithCache(cache),
		rag.WithTopK(cfg.RAG.TopK),
		rag.WithMaxHallucination(cfg.RAG.MaxHallucination),
		rag.WithLogger(logger),
		rag.WithMetrics(m),
	)
	shellOpts := cfg.ShellOptions()

	return supervisor.Team{
		RAG:       agents.Observe[rag.Input, rag.Output](ragAgent, m, logger),
		Architect: agents.Observe[architect.Input, architect.Output](architect.New(client, logger, m), m, logger),
		Planner:   agents.Observe[planner.Input, planner.Output](planner.New(client, logger, m), m, logger),
		Coder: agents.Observe[coder.Input, coder.Output](
			coder.New(client, coder.Config{LicenseHeader: cfg.Workspace.LicenseHeader, Shell: shellOpts}, logger, m), m, logger),
		TestGenerator: agents.Observe[testgen.Input, testgen.Output](testgen.New(client, logger, m), m, logger),
		Reviewer: agents.Observe[reviewer.Input, reviewer.Output](
			reviewer.New(client, reviewer.Config{Commands: cfg.Review.Commands, Shell: shellOpts}, logger, m), m, logger),
		Human: human,
		LLM:   client,
		Cache: cache,
	}
}

// humanReviewer prompts at the terminal unless auto-approval was asked for or
// nobody is there to answer.
func humanReviewer(autoApprove bool) supervisor.HumanReviewer {
	if autoApprove || !tui.ShouldPrompt() {
		return supervisor.AutoApprove{}
	}
	return tui.Reviewer{}
}
