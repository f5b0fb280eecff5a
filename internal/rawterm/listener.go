package rawterm

import (
	"context"
	"errors"
)

// ErrDismissed indicates the operator pressed the dismissal key.
var ErrDismissed = errors.New("dismissed by operator")

// Listener watches a keystroke stream for the dismissal key. It consumes
// a channel rather than an io.Reader so that ending a session never
// waits on an in-flight terminal read; whoever owns the reader keeps
// pumping it across sessions.
type Listener struct {
	Keys    <-chan byte
	Dismiss byte
}

// Run listens until the dismissal key arrives (ErrDismissed), ctx is
// cancelled, or the key stream closes (both nil). Every other key is
// discarded.
func (l *Listener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-l.Keys:
			if !ok {
				return nil
			}
			if b == l.Dismiss {
				return ErrDismissed
			}
		}
	}
}
