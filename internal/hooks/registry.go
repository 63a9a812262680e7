package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/genpod/internal/log"
)

// Registry maps events to hooks and the hook types it can build.
type Registry struct {
	mu        sync.RWMutex
	hooks     map[EventType][]Hook
	factories map[string]Factory
	executor  *Executor
	logger    *log.Logger
}

// NewRegistry creates a registry that knows the script and webhook types.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	r := &Registry{
		hooks:     make(map[EventType][]Hook),
		factories: make(map[string]Factory),
		executor:  NewExecutor(),
		logger:    logger.With("component", "hooks"),
	}
	r.RegisterFactory("script", NewScriptHook)
	r.RegisterFactory("webhook", NewWebhookHook)
	return r
}

// FromConfig builds a registry holding every enabled hook in configs.
func FromConfig(configs []Config, logger *log.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	for i := range configs {
		if err := r.RegisterFromConfig(&configs[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) RegisterFactory(hookType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[hookType] = factory
}

// Register subscribes hook to its events.
func (r *Registry) Register(hook Hook) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	for _, t := range hook.EventTypes() {
		if !IsValidEvent(t) {
			return fmt.Errorf("hook %s: unknown event %q", hook.Name(), t)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range hook.EventTypes() {
		r.hooks[t] = append(r.hooks[t], hook)
	}
	return nil
}

// RegisterFromConfig builds and registers a hook. Disabled hooks are skipped.
func (r *Registry) RegisterFromConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if !cfg.Enabled {
		return nil
	}

	r.mu.RLock()
	factory, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown hook type: %s", cfg.Type)
	}

	hook, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("failed to create hook %s: %w", cfg.Name, err)
	}
	return r.Register(hook)
}

// Trigger runs every hook subscribed to event and logs failures. A nil
// registry does nothing.
func (r *Registry) Trigger(ctx context.Context, event *Event) []Result {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	hooks := r.hooks[event.Type]
	r.mu.RUnlock()
	if len(hooks) == 0 {
		return nil
	}

	results := r.executor.ExecuteAll(ctx, hooks, event)
	for _, res := range results {
		if !res.Success {
			r.logger.Warn("hook failed",
				"hook", res.HookName, "event", string(res.EventType),
				"thread_id", event.ThreadID, "error", res.Error)
		}
	}
	return results
}

// Hooks returns the hooks subscribed to t.
func (r *Registry) Hooks(t EventType) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Hook, len(r.hooks[t]))
	copy(out, r.hooks[t])
	return out
}

// Count returns the number of distinct hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, hooks := range r.hooks {
		for _, h := range hooks {
			seen[h.Name()] = true
		}
	}
	return len(seen)
}
