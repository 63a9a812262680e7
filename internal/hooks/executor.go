package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Executor runs hooks concurrently with a bounded fan-out.
type Executor struct {
	maxConcurrency int
}

// NewExecutor allows up to 10 hooks at once.
func NewExecutor() *Executor {
	return &Executor{maxConcurrency: 10}
}

// SetMaxConcurrency changes the fan-out; values below one mean one.
func (e *Executor) SetMaxConcurrency(n int) {
	e.maxConcurrency = max(n, 1)
}

// ExecuteAll runs hooks for event and returns their results in order.
func (e *Executor) ExecuteAll(ctx context.Context, hooks []Hook, event *Event) []Result {
	results := make([]Result, len(hooks))
	sem := make(chan struct{}, e.maxConcurrency)
	var wg sync.WaitGroup

	for i, h := range hooks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = e.Execute(ctx, h, event)
		}()
	}
	wg.Wait()
	return results
}

// Execute runs one hook. Panics are reported as failures.
func (e *Executor) Execute(ctx context.Context, h Hook, event *Event) (res Result) {
	res = Result{HookName: h.Name(), EventType: event.Type}
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", p)
		}
		res.Duration = time.Since(start)
	}()

	if err := h.Execute(ctx, event); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Success = true
	return res
}
