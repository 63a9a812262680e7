// Package hooks runs user-configured scripts and webhooks on run lifecycle
// events. Hook failures are logged and never stop a run.
package hooks

import (
	"context"
	"slices"
	"time"
)

// EventType is a run lifecycle event.
type EventType string

const (
	EventRunStart    EventType = "on_run_start"
	EventPhaseChange EventType = "on_phase_change"
	EventHalted      EventType = "on_halted"
	EventRunComplete EventType = "on_run_complete"
	EventStepFailed  EventType = "on_step_failed"
)

// AllEvents lists every event a hook may subscribe to.
var AllEvents = []EventType{EventRunStart, EventPhaseChange, EventHalted, EventRunComplete, EventStepFailed}

// IsValidEvent reports whether t is a known event.
func IsValidEvent(t EventType) bool {
	return slices.Contains(AllEvents, t)
}

// Event is what a hook receives.
type Event struct {
	Type      EventType         `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	ThreadID  string            `json:"thread_id"`
	Phase     string            `json:"phase"`
	Step      int               `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(t EventType, threadID, phase string, step int, data map[string]string) *Event {
	return &Event{
		Type:      t,
		Timestamp: time.Now().UTC(),
		ThreadID:  threadID,
		Phase:     phase,
		Step:      step,
		Data:      data,
	}
}

// Hook reacts to events.
type Hook interface {
	Name() string
	EventTypes() []EventType
	Execute(ctx context.Context, event *Event) error
}

// Config is one entry of the hooks list in genpod.yaml.
type Config struct {
	Name    string         `yaml:"name" json:"name" mapstructure:"name"`
	Type    string         `yaml:"type" json:"type" mapstructure:"type"`
	Events  []EventType    `yaml:"events" json:"events" mapstructure:"events"`
	Enabled bool           `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Timeout time.Duration  `yaml:"timeout" json:"timeout" mapstructure:"timeout"`
	Options map[string]any `yaml:"config" json:"config" mapstructure:"config"`
}

// Result is the outcome of one hook execution.
type Result struct {
	HookName  string        `json:"hook_name"`
	EventType EventType     `json:"event_type"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Factory builds a hook from its configuration.
type Factory func(cfg *Config) (Hook, error)

// DefaultTimeout bounds a hook without a configured timeout.
const DefaultTimeout = 30 * time.Second

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c *Config) option(key string) string {
	v, _ := c.Options[key].(string)
	return v
}
