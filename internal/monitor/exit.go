package monitor

import (
	"errors"

	"ctlmon/internal/channel"
	"ctlmon/internal/protocol"
)

// Process exit codes, grouped by category:
//   - 0: success
//   - 1-9: general errors (usage, terminal)
//   - 10-19: resource not found
//   - 40-49: timeouts
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitEmptyCommand   = 2
	ExitRawMode        = 3
	ExitLogNotFound    = 10
	ExitChannelTimeout = 40
)

// ExitError carries a specific process exit code alongside its cause.
type ExitError struct {
	Code int
	Err  error
}

// Error returns the underlying error message.
func (e *ExitError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error from Run to a process exit code. Works with
// wrapped errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var coded *ExitError
	if errors.As(err, &coded) {
		return coded.Code
	}

	switch {
	case errors.Is(err, protocol.ErrEmptyCommand), errors.Is(err, protocol.ErrMultiline):
		return ExitEmptyCommand
	case errors.Is(err, channel.ErrLogNotFound):
		return ExitLogNotFound
	case errors.Is(err, channel.ErrChannelTimeout):
		return ExitChannelTimeout
	}
	return ExitFailure
}
