//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

// Package rawterm switches a terminal into raw, non-echoing mode for the
// duration of a monitoring session and guarantees restoration of the
// prior mode on every exit path.
package rawterm

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// State holds a terminal's pre-raw mode so it can be restored.
type State struct {
	fd   int
	prev *term.State

	mu       sync.Mutex
	restored bool
}

// MakeRaw switches the terminal on fd into raw mode and returns a State
// for restoring it. On top of the usual raw settings, reads are bounded
// to roughly one poll interval (VMIN=0, VTIME=1) so whoever pumps the
// keyboard can observe shutdown without blocking indefinitely.
func MakeRaw(fd int) (*State, error) {
	prev, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}

	tio, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		term.Restore(fd, prev)
		return nil, fmt.Errorf("read termios: %w", err)
	}
	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = 1 // reads return within 100ms
	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, tio); err != nil {
		term.Restore(fd, prev)
		return nil, fmt.Errorf("bound read timeout: %w", err)
	}

	return &State{fd: fd, prev: prev}, nil
}

// Restore returns the terminal to its pre-raw mode. Safe to call more
// than once; only the first call takes effect.
func (s *State) Restore() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.restored {
		return nil
	}
	s.restored = true

	if err := term.Restore(s.fd, s.prev); err != nil {
		return fmt.Errorf("restore terminal: %w", err)
	}
	return nil
}

// IsTerminal reports whether fd is connected to a terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}
