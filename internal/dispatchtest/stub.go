// Package dispatchtest provides a scripted stand-in for the external
// dispatcher: it watches the control channel for commands, writes back a
// log path, and appends scripted output to the log. Only tests and
// manual harnesses should import it.
package dispatchtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"ctlmon/internal/protocol"
	"ctlmon/internal/util"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const stubPollInterval = 10 * time.Millisecond

// Append is one scripted write to the log file.
type Append struct {
	Delay time.Duration
	Data  string
}

// Stub reacts to commands on a control channel the way a dispatcher
// would. Zero-value fields mean: reply immediately, create an empty log,
// append nothing.
type Stub struct {
	ChannelPath string
	LogsDir     string

	// Seed is written to the log file before the path is handed back.
	Seed string

	// Script is appended to the log after the handoff, entry by entry.
	Script []Append

	// ReplyDelay postpones the handoff after a command is observed.
	ReplyDelay time.Duration

	// Silent suppresses the reply entirely (for timeout tests).
	Silent bool

	// BadPath replies with a path that does not exist (for LogNotFound
	// tests).
	BadPath bool

	mu       sync.Mutex
	commands []string
	lastSeen string

	cancel context.CancelFunc
	done   chan struct{}
}

// Start begins watching the channel in the background. Stop or ctx
// cancellation ends it.
func (s *Stub) Start(ctx context.Context) error {
	if s.ChannelPath == "" || s.LogsDir == "" {
		return fmt.Errorf("stub requires ChannelPath and LogsDir")
	}
	if err := os.MkdirAll(s.LogsDir, 0755); err != nil {
		return fmt.Errorf("create logs dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.ChannelPath), 0755); err != nil {
		return fmt.Errorf("create channel dir: %w", err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.watchLoop(ctx)
	return nil
}

// Stop ends the background watcher and waits for it to exit.
func (s *Stub) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Commands returns the commands observed so far, oldest first.
func (s *Stub) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

func (s *Stub) watchLoop(ctx context.Context) {
	defer close(s.done)

	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(s.ChannelPath)); err == nil {
			events = make(chan fsnotify.Event)
			go func() {
				for {
					select {
					case ev, ok := <-watcher.Events:
						if !ok {
							return
						}
						select {
						case events <- ev:
						default:
						}
					case _, ok := <-watcher.Errors:
						if !ok {
							return
						}
					}
				}
			}()
		}
	}

	ticker := time.NewTicker(stubPollInterval)
	defer ticker.Stop()

	for {
		s.check(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-events:
		}
	}
}

// check reads the channel once and handles a pending command, if any.
func (s *Stub) check(ctx context.Context) {
	data, err := os.ReadFile(s.ChannelPath)
	if err != nil {
		return
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return
	}
	if _, ok := protocol.ParseLogPath(content); ok {
		// Our own reply, or a leftover one. Forget the last command so
		// the operator can repeat it on the next cycle.
		s.mu.Lock()
		s.lastSeen = ""
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if content == s.lastSeen {
		s.mu.Unlock()
		return
	}
	s.lastSeen = content
	s.commands = append(s.commands, content)
	s.mu.Unlock()

	if s.Silent {
		return
	}

	if s.ReplyDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.ReplyDelay):
		}
	}

	logPath := filepath.Join(s.LogsDir, uuid.New().String()+".log")
	if s.BadPath {
		util.AtomicWriteFile(s.ChannelPath, []byte(logPath+"\n"), 0644)
		return
	}

	if err := os.WriteFile(logPath, []byte(s.Seed), 0644); err != nil {
		return
	}
	if err := util.AtomicWriteFile(s.ChannelPath, []byte(logPath+"\n"), 0644); err != nil {
		return
	}

	go s.runScript(ctx, logPath)
}

// runScript plays the scripted appends into the log file.
func (s *Stub) runScript(ctx context.Context, logPath string) {
	for _, entry := range s.Script {
		if entry.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(entry.Delay):
			}
		}

		f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return // the monitor may have deleted the log already
		}
		f.WriteString(entry.Data)
		f.Close()
	}
}
