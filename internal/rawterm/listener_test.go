package rawterm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// feedKeys returns a key channel preloaded with the bytes of s.
func feedKeys(s string) chan byte {
	ch := make(chan byte, len(s))
	for i := 0; i < len(s); i++ {
		ch <- s[i]
	}
	return ch
}

func runListener(keys <-chan byte) <-chan error {
	l := &Listener{Keys: keys, Dismiss: 'n'}
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()
	return errCh
}

func TestListener_DismissKey(t *testing.T) {
	errCh := runListener(feedKeys("n"))

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrDismissed) {
			t.Errorf("expected ErrDismissed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not observe the dismissal key")
	}
}

func TestListener_IgnoresOtherKeys(t *testing.T) {
	errCh := runListener(feedKeys("abcxyz n"))

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrDismissed) {
			t.Errorf("expected ErrDismissed after ignored keys, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not reach the dismissal key")
	}
}

func TestListener_CancelReturnsNil(t *testing.T) {
	keys := make(chan byte)
	l := &Listener{Keys: keys, Dismiss: 'n'}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after cancellation")
	}
}

func TestListener_KeyStreamClosed(t *testing.T) {
	keys := make(chan byte)
	close(keys)
	errCh := runListener(keys)

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected nil on closed key stream, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("listener did not stop after the key stream closed")
	}
}
