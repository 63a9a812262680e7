package exitcode

import (
	"context"
	"errors"
	"os"
	"strings"

	gerrors "github.com/felixgeelhaar/genpod/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// ConfigError indicates an invalid or unreadable configuration
	ConfigError = 3

	// StoreError indicates a checkpoint or registry failure
	StoreError = 4

	// ProviderError indicates a language model provider failure
	ProviderError = 5

	// Halted indicates the run needs human review but could not prompt for it
	Halted = 6

	// Incomplete indicates the run stopped at its step limit before finishing
	Incomplete = 7

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to an exit code. Coded errors are matched by
// code; anything else falls back to message inspection.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if errors.Is(err, context.Canceled) {
		return Interrupted
	}

	switch code := gerrors.CodeOf(err); {
	case code == gerrors.ErrCodeStateHalted:
		return Halted
	case code == gerrors.ErrCodeStateRecursionLimit:
		return Incomplete
	case code.Category() == "CONFIG":
		return ConfigError
	case code.Category() == "STORE", code.Category() == "REGISTRY":
		return StoreError
	case code.Category() == "LLM":
		return ProviderError
	case code != "":
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case ConfigError:
		return "Configuration error"
	case StoreError:
		return "Checkpoint or registry error"
	case ProviderError:
		return "Language model provider error"
	case Halted:
		return "Run halted for human review"
	case Incomplete:
		return "Run stopped at step limit"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
