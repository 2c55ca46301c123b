// Package exitcode provides the process exit codes for pbxmend.
package exitcode

import "errors"

// Exit codes for the pbxmend CLI
const (
	Success = 0
	// GeneralError covers lookup, load and save failures.
	GeneralError = 1
	// ConfigError covers bad flags, config files and request lists.
	ConfigError = 2
)

// Coder is implemented by errors that carry their own exit code.
type Coder interface {
	ExitCode() int
}

// ForError returns the exit code for err: Success for nil, the code of the
// first Coder in the chain, and GeneralError otherwise.
func ForError(err error) int {
	if err == nil {
		return Success
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	return GeneralError
}

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	default:
		return "Unknown error"
	}
}
