package protocol

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Channel text format errors.
var (
	ErrEmptyCommand = errors.New("empty command")
	ErrMultiline    = errors.New("command must be a single line")
)

// ValidateCommand checks that s can be written into the control channel
// without corrupting the mailbox semantics: non-empty after trimming,
// a single line, and free of control bytes that would split it.
func ValidateCommand(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ErrEmptyCommand
	}
	if strings.ContainsAny(trimmed, "\n\r") {
		return ErrMultiline
	}
	if strings.ContainsRune(trimmed, 0) {
		return fmt.Errorf("%w: embedded NUL byte", ErrMultiline)
	}
	return nil
}

// ParseLogPath reports whether the control channel contents look like a
// dispatcher reply: a single line naming an absolute filesystem path.
// Anything else is still a pending command (or garbage) and the caller
// should keep waiting.
func ParseLogPath(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", false
	}
	if strings.ContainsAny(trimmed, "\n\r") {
		return "", false
	}
	if !filepath.IsAbs(trimmed) {
		return "", false
	}
	return trimmed, true
}
