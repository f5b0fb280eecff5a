package channel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ctlmon/internal/protocol"
	"ctlmon/internal/util"

	"github.com/fsnotify/fsnotify"
)

const (
	// DefaultHandoffTimeout bounds the wait for the dispatcher to claim a
	// command. Generous for a slow dispatcher, but never unbounded.
	DefaultHandoffTimeout = 10 * time.Second

	// pollInterval is the fallback re-read cadence when filesystem events
	// are unavailable or lost.
	pollInterval = 100 * time.Millisecond
)

var (
	// ErrChannelTimeout indicates the dispatcher did not overwrite the
	// channel with a log path within the handoff timeout.
	ErrChannelTimeout = errors.New("dispatcher did not respond")

	// ErrLogNotFound indicates the dispatcher replied with a path that
	// does not exist on the filesystem.
	ErrLogNotFound = errors.New("log file does not exist")
)

// Channel is the well-known control file shared with the dispatcher.
// It acts as a one-shot mailbox: Send replaces its contents with a
// command and waits for the dispatcher to overwrite them with the
// absolute path of a log file.
type Channel struct {
	Path string

	// HandoffTimeout bounds the wait for a reply. Zero means
	// DefaultHandoffTimeout.
	HandoffTimeout time.Duration
}

// New creates a channel for the control file at path.
func New(path string) *Channel {
	return &Channel{Path: path}
}

// Send writes command into the control file and waits for the dispatcher
// to overwrite it with a log path. On success the returned path exists
// on the filesystem.
//
// There is no cross-process synchronization beyond the filesystem: the
// dispatcher is an independent process, so Send polls for the contents
// changing away from the just-written command, bounded by the handoff
// timeout.
func (c *Channel) Send(ctx context.Context, command string) (string, error) {
	if err := protocol.ValidateCommand(command); err != nil {
		return "", err
	}
	command = strings.TrimSpace(command)

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return "", fmt.Errorf("create channel directory: %w", err)
	}
	if err := util.AtomicWriteFile(c.Path, []byte(command+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write control channel: %w", err)
	}

	timeout := c.HandoffTimeout
	if timeout <= 0 {
		timeout = DefaultHandoffTimeout
	}
	deadline := time.Now().Add(timeout)

	// Watch the channel's directory: the dispatcher may replace the file
	// by rename, which drops events registered on the file itself. The
	// ticker below covers lost or unavailable events.
	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(c.Path)); err == nil {
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

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		content, err := c.read()
		if err == nil && content != command {
			if logPath, ok := protocol.ParseLogPath(content); ok {
				if _, err := os.Stat(logPath); err != nil {
					return "", fmt.Errorf("%w: %s", ErrLogNotFound, logPath)
				}
				return logPath, nil
			}
		}

		if time.Now().After(deadline) {
			return "", fmt.Errorf("%w within %s", ErrChannelTimeout, timeout)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		case <-events:
		}
	}
}

// read returns the trimmed contents of the control file. A missing file
// reads as empty: the dispatcher may momentarily hold it during a
// replace-by-rename.
func (c *Channel) read() (string, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
