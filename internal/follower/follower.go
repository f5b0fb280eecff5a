package follower

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the fallback cadence for checking the log for
// appended bytes when filesystem events are unavailable or lost.
const DefaultPollInterval = 50 * time.Millisecond

// ErrLogLost indicates the log file disappeared mid-stream.
var ErrLogLost = errors.New("log file disappeared")

// Follower streams a log file to Out like a continuously-updating tail:
// it dumps the file's current contents, then appended bytes in order.
// Truncation restarts the stream from offset zero; deletion ends it
// with ErrLogLost.
type Follower struct {
	Path string
	Out  io.Writer

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
}

// New creates a follower for the log file at path.
func New(path string, out io.Writer) *Follower {
	return &Follower{Path: path, Out: out}
}

// Run follows the log until ctx is cancelled (returns nil) or the file
// disappears (returns ErrLogLost). The full existing contents are
// written to Out before any newly appended bytes.
func (f *Follower) Run(ctx context.Context) error {
	interval := f.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	file, err := os.Open(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrLogLost, f.Path)
		}
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { file.Close() }()

	// Watch the file for writes; the ticker below covers lost events and
	// writers that bypass fsnotify (e.g. over NFS).
	var events chan fsnotify.Event
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(f.Path); err == nil {
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

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var offset int64
	for {
		n, err := io.Copy(f.Out, file)
		if err != nil {
			return fmt.Errorf("stream log: %w", err)
		}
		offset += n

		info, err := os.Stat(f.Path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: %s", ErrLogLost, f.Path)
			}
			return fmt.Errorf("stat log: %w", err)
		}

		// Rotation shows up as the file shrinking in place, or as the
		// path naming a different inode after a rename-replace. Either
		// way: reopen by path and restart from offset zero.
		cur, statErr := file.Stat()
		replaced := statErr == nil && !os.SameFile(info, cur)
		if info.Size() < offset || replaced {
			log.Printf("log %s rotated, restarting from start", f.Path)
			reopened, err := os.Open(f.Path)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("%w: %s", ErrLogLost, f.Path)
				}
				return fmt.Errorf("reopen log: %w", err)
			}
			file.Close()
			file = reopened
			offset = 0
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-events:
		}
	}
}
