package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// State machine errors (STATE-001 to STATE-099)
	ErrCodeStateInvalid        ErrorCode = "STATE-001"
	ErrCodeStateRecursionLimit ErrorCode = "STATE-002"
	ErrCodeStateHalted         ErrorCode = "STATE-003"
	ErrCodeStateCompleted      ErrorCode = "STATE-004"

	// Queue integrity errors (QUEUE-001 to QUEUE-099)
	ErrCodeQueueItemNotFound ErrorCode = "QUEUE-001"
	ErrCodeQueueDuplicateID  ErrorCode = "QUEUE-002"

	// Specialist agent errors (AGENT-001 to AGENT-099)
	ErrCodeAgentFailed      ErrorCode = "AGENT-001"
	ErrCodeAgentBadInput    ErrorCode = "AGENT-002"
	ErrCodeAgentToolFailure ErrorCode = "AGENT-003"

	// Language model errors (LLM-001 to LLM-099)
	ErrCodeLLMConfig              ErrorCode = "LLM-001"
	ErrCodeLLMAuth                ErrorCode = "LLM-002"
	ErrCodeLLMAPI                 ErrorCode = "LLM-003"
	ErrCodeLLMRateLimit           ErrorCode = "LLM-004"
	ErrCodeLLMValidationExhausted ErrorCode = "LLM-005"
	ErrCodeLLMFixtureMissing      ErrorCode = "LLM-006"

	// Checkpoint store errors (STORE-001 to STORE-099)
	ErrCodeStoreNotFound    ErrorCode = "STORE-001"
	ErrCodeStoreCorrupt     ErrorCode = "STORE-002"
	ErrCodeStoreWriteFailed ErrorCode = "STORE-003"
	ErrCodeStoreOpenFailed  ErrorCode = "STORE-004"
	ErrCodeStoreThreadTaken ErrorCode = "STORE-005"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigLoad    ErrorCode = "CONFIG-002"

	// Registry errors (REGISTRY-001 to REGISTRY-099)
	ErrCodeRegistryOpen     ErrorCode = "REGISTRY-001"
	ErrCodeRegistryNotFound ErrorCode = "REGISTRY-002"
	ErrCodeRegistryQuery    ErrorCode = "REGISTRY-003"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodePathEscape      ErrorCode = "IO-006"
	ErrCodeCommandDenied   ErrorCode = "IO-007"
)

// GenpodError is an error carrying a stable code, remediation hints and an optional cause
type GenpodError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *GenpodError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *GenpodError) Unwrap() error {
	return e.Cause
}

// Category returns the code prefix, e.g. "STORE" for STORE-001
func (c ErrorCode) Category() string {
	prefix, _, found := strings.Cut(string(c), "-")
	if !found {
		return ""
	}
	return prefix
}

// New creates a new GenpodError
func New(code ErrorCode, message string) *GenpodError {
	return &GenpodError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new GenpodError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *GenpodError {
	return &GenpodError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *GenpodError) WithSuggestion(suggestion string) *GenpodError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *GenpodError) WithSuggestions(suggestions ...string) *GenpodError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *GenpodError) WithDocs(url string) *GenpodError {
	e.DocsURL = url
	return e
}

// As finds the first GenpodError in err's chain.
func As(err error) (*GenpodError, bool) {
	var gerr *GenpodError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

// CodeOf returns the code of the first GenpodError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if gerr, ok := As(err); ok {
		return gerr.Code
	}
	return ""
}

// Common error constructors

// NewRecursionLimitError reports a run that exhausted its step budget
func NewRecursionLimitError(threadID string, limit int) *GenpodError {
	return New(ErrCodeStateRecursionLimit, fmt.Sprintf("run %s exceeded the step limit of %d", threadID, limit)).
		WithSuggestion(fmt.Sprintf("Resume the run with 'genpod resume --thread %s'", threadID)).
		WithSuggestion("Raise supervisor.recursion_limit in genpod.yaml")
}

// NewHaltedError reports a run that needs a human but cannot prompt for one
func NewHaltedError(threadID string) *GenpodError {
	return New(ErrCodeStateHalted, fmt.Sprintf("run %s is waiting for human review", threadID)).
		WithSuggestion("Re-run interactively to review the requirements document").
		WithSuggestion("Pass --yes to approve the requirements document automatically")
}

// NewCheckpointNotFoundError reports a missing checkpoint
func NewCheckpointNotFoundError(threadID string) *GenpodError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("checkpoint not found: %s", threadID)).
		WithSuggestion("Run 'genpod checkpoint list' to see available threads")
}

// NewThreadExistsError reports a new run asked to reuse a checkpointed thread
func NewThreadExistsError(threadID string) *GenpodError {
	return New(ErrCodeStoreThreadTaken, fmt.Sprintf("thread %s already has checkpoints", threadID)).
		WithSuggestion(fmt.Sprintf("Continue it with 'genpod resume --thread %s'", threadID)).
		WithSuggestion(fmt.Sprintf("Remove it with 'genpod checkpoint delete %s' to start over", threadID))
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider, envVar string) *GenpodError {
	return New(ErrCodeLLMAuth, fmt.Sprintf("no API key for provider: %s", provider)).
		WithSuggestion(fmt.Sprintf("Set the %s environment variable", envVar)).
		WithSuggestion("Use llm.provider: replay for offline runs")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(key, details string) *GenpodError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration %s: %s", key, details)).
		WithSuggestion("Check genpod.yaml or the matching GENPOD_ environment variable")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *GenpodError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *GenpodError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
