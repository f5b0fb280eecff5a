// Package monitor drives the command/response/display loop: prompt for
// a command, hand it to the dispatcher through the control channel,
// live-tail the resulting log in raw terminal mode, and clean up when
// the operator dismisses the view.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"ctlmon/internal/channel"
	"ctlmon/internal/follower"
	"ctlmon/internal/mirror"
	"ctlmon/internal/protocol"
	"ctlmon/internal/rawterm"
)

// DefaultDismissKey dismisses the log view when pressed.
const DefaultDismissKey = 'n'

// inputPollInterval is the backoff after a read that yields no bytes.
// A raw tty already blocks for its VTIME tick; this keeps a non-blocking
// reader from spinning.
const inputPollInterval = 50 * time.Millisecond

// errInputClosed ends the monitor loop when the operator's input stream
// is gone (EOF on a pipe, closed terminal).
var errInputClosed = errors.New("input closed")

// Config holds the monitor's settings for all cycles.
type Config struct {
	Channel *channel.Channel

	// DismissKey ends the Following state. Zero means DefaultDismissKey.
	DismissKey byte

	// PollInterval is the follower's poll cadence; zero uses the
	// follower default.
	PollInterval time.Duration

	// ExitOnEmpty terminates the monitor on an empty command instead of
	// re-prompting.
	ExitOnEmpty bool

	// ExitOnError terminates the monitor when a session aborts
	// (ChannelTimeout, LogNotFound) instead of returning to the prompt.
	ExitOnError bool

	// Input and Output default to os.Stdin and os.Stdout.
	Input  io.Reader
	Output io.Writer

	// Mirror, when set, receives a copy of the followed log stream.
	Mirror *mirror.Server
}

// terminalGuard restores the terminal's pre-raw mode.
type terminalGuard interface {
	Restore() error
}

type noopGuard struct{}

func (noopGuard) Restore() error { return nil }

// Monitor runs command/response cycles until its context is cancelled
// or its input closes.
type Monitor struct {
	cfg     Config
	input   io.Reader
	out     io.Writer
	dismiss byte

	// keys carries input one keystroke at a time. A single pump
	// goroutine owns the reader for the monitor's lifetime, so the
	// prompt and the dismissal listener never compete for an in-flight
	// read and ending a session never waits on one.
	keys    chan byte
	readErr error // set before keys closes; read only after

	// makeRaw acquires the raw-mode guard; swapped out in tests.
	makeRaw func() (terminalGuard, error)
}

// session is the in-memory state for one command/response cycle.
type session struct {
	command string
	logPath string
}

// New creates a monitor. cfg.Channel is required.
func New(cfg Config) *Monitor {
	m := &Monitor{cfg: cfg, input: cfg.Input, out: cfg.Output, dismiss: cfg.DismissKey}
	if m.input == nil {
		m.input = os.Stdin
	}
	if m.out == nil {
		m.out = os.Stdout
	}
	if m.dismiss == 0 {
		m.dismiss = DefaultDismissKey
	}

	m.makeRaw = func() (terminalGuard, error) {
		if f, ok := m.input.(*os.File); ok && rawterm.IsTerminal(int(f.Fd())) {
			return rawterm.MakeRaw(int(f.Fd()))
		}
		// Not a terminal: scripted input or a pipe. Keystrokes arrive
		// unbuffered already and there is no mode to restore.
		return noopGuard{}, nil
	}
	return m
}

// Run loops through command cycles until ctx is cancelled, input
// closes, or an error escalates per the configured policy.
func (m *Monitor) Run(ctx context.Context) error {
	m.keys = make(chan byte)
	pumpCtx, stopPump := context.WithCancel(ctx)
	defer stopPump()
	go m.pumpInput(pumpCtx)

	for {
		err := m.cycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case err == nil:

		case errors.Is(err, errInputClosed):
			if m.readErr != nil {
				return fmt.Errorf("read input: %w", m.readErr)
			}
			return nil

		case errors.Is(err, protocol.ErrEmptyCommand), errors.Is(err, protocol.ErrMultiline):
			if m.cfg.ExitOnEmpty {
				return err
			}
			fmt.Fprintf(m.out, "%v\n", err)

		default:
			var coded *ExitError
			if errors.As(err, &coded) {
				return err // terminal-mode failures are fatal
			}
			fmt.Fprintf(m.out, "error: %v\n", err)
			if m.cfg.ExitOnError {
				return err
			}
		}
	}
}

// pumpInput moves bytes from the input reader onto the key channel
// until the reader ends or ctx is cancelled. A read failure is recorded
// in m.readErr before the channel closes.
func (m *Monitor) pumpInput(ctx context.Context) {
	defer close(m.keys)
	buf := make([]byte, 1)
	for {
		n, err := m.input.Read(buf)
		if n > 0 {
			select {
			case m.keys <- buf[0]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.readErr = err
			}
			return
		}
		if n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(inputPollInterval):
			}
		}
	}
}

// cycle runs one pass of the state machine: AwaitingCommand →
// SendingCommand → Following → Terminating.
func (m *Monitor) cycle(ctx context.Context) error {
	fmt.Fprint(m.out, "> ")
	line, err := m.readLine(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	command := strings.TrimSpace(line)
	logPath, err := m.cfg.Channel.Send(ctx, command)
	if err != nil {
		return err
	}

	fmt.Fprintf(m.out, "following %s (press %q to dismiss)\n", logPath, m.dismiss)
	return m.follow(ctx, &session{command: command, logPath: logPath})
}

// follow runs the Following state: raw mode on, log follower and
// keystroke listener concurrent, then guaranteed cleanup.
func (m *Monitor) follow(ctx context.Context, sess *session) error {
	// Terminating: drop the log on every path out of Following,
	// including a failed raw-mode switch. A missing log is fine.
	defer func() {
		if err := os.Remove(sess.logPath); err != nil && !os.IsNotExist(err) {
			log.Printf("remove log %s: %v", sess.logPath, err)
		}
	}()

	guard, err := m.makeRaw()
	if err != nil {
		return &ExitError{Code: ExitRawMode, Err: err}
	}
	defer guard.Restore()

	out := m.out
	if m.cfg.Mirror != nil {
		m.cfg.Mirror.SessionStart(sess.command, sess.logPath)
		out = io.MultiWriter(m.out, m.cfg.Mirror)
	}

	fctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f := follower.New(sess.logPath, out)
	f.PollInterval = m.cfg.PollInterval
	l := &rawterm.Listener{Keys: m.keys, Dismiss: m.dismiss}

	// First result wins; cancelling stops the sibling within one poll
	// interval, and we wait for it so the terminal is quiet before
	// restoration.
	results := make(chan error, 2)
	go func() { results <- f.Run(fctx) }()
	go func() { results <- l.Run(fctx) }()

	first := <-results
	cancel()
	<-results

	reason := "done"
	var failure error
	switch {
	case errors.Is(first, rawterm.ErrDismissed):
		reason = "dismissed"
	case errors.Is(first, follower.ErrLogLost):
		// Surfaced but not fatal: the dispatcher or operator removed
		// the log out from under us.
		reason = "log lost"
		fmt.Fprintf(m.out, "\r\n%v\r\n", first)
	case first != nil:
		reason = "error"
		failure = first
	}

	if m.cfg.Mirror != nil {
		m.cfg.Mirror.SessionEnd(reason)
	}
	return failure
}

// readLine assembles keystrokes up to a newline. A closed key stream
// with a pending partial line still counts as a command; without one it
// reports errInputClosed.
func (m *Monitor) readLine(ctx context.Context) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), nil
		case b, ok := <-m.keys:
			if !ok {
				if strings.TrimSpace(sb.String()) == "" {
					return sb.String(), errInputClosed
				}
				return sb.String(), nil
			}
			if b == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(b)
		}
	}
}
