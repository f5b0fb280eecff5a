package channel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ctlmon/internal/dispatchtest"
	"ctlmon/internal/protocol"
)

func newTestChannel(t *testing.T) (*Channel, *dispatchtest.Stub) {
	t.Helper()
	dir := t.TempDir()
	ch := New(filepath.Join(dir, "control"))
	stub := &dispatchtest.Stub{
		ChannelPath: ch.Path,
		LogsDir:     filepath.Join(dir, "logs"),
	}
	return ch, stub
}

func TestSend_ReturnsLogPath(t *testing.T) {
	ch, stub := newTestChannel(t)
	stub.Seed = "ready\n"
	if err := stub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stub.Stop()

	logPath, err := ch.Send(context.Background(), "status")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("returned log path does not exist: %v", err)
	}
	content, _ := os.ReadFile(logPath)
	if string(content) != "ready\n" {
		t.Errorf("expected seeded log contents, got %q", content)
	}

	cmds := stub.Commands()
	if len(cmds) != 1 || cmds[0] != "status" {
		t.Errorf("expected dispatcher to observe [status], got %v", cmds)
	}
}

func TestSend_EmptyCommand(t *testing.T) {
	ch, _ := newTestChannel(t)

	_, err := ch.Send(context.Background(), "   ")
	if !errors.Is(err, protocol.ErrEmptyCommand) {
		t.Errorf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestSend_MultilineCommand(t *testing.T) {
	ch, _ := newTestChannel(t)

	_, err := ch.Send(context.Background(), "status\nupload")
	if !errors.Is(err, protocol.ErrMultiline) {
		t.Errorf("expected ErrMultiline, got %v", err)
	}
}

func TestSend_Timeout(t *testing.T) {
	ch, stub := newTestChannel(t)
	stub.Silent = true
	if err := stub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stub.Stop()

	ch.HandoffTimeout = 200 * time.Millisecond

	start := time.Now()
	_, err := ch.Send(context.Background(), "status")
	if !errors.Is(err, ErrChannelTimeout) {
		t.Fatalf("expected ErrChannelTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Send hung for %s instead of timing out promptly", elapsed)
	}
}

func TestSend_NoDispatcher(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.HandoffTimeout = 200 * time.Millisecond

	_, err := ch.Send(context.Background(), "status")
	if !errors.Is(err, ErrChannelTimeout) {
		t.Errorf("expected ErrChannelTimeout with no dispatcher, got %v", err)
	}
}

func TestSend_LogNotFound(t *testing.T) {
	ch, stub := newTestChannel(t)
	stub.BadPath = true
	if err := stub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stub.Stop()

	_, err := ch.Send(context.Background(), "status")
	if !errors.Is(err, ErrLogNotFound) {
		t.Errorf("expected ErrLogNotFound, got %v", err)
	}
}

func TestSend_SlowDispatcher(t *testing.T) {
	ch, stub := newTestChannel(t)
	stub.ReplyDelay = 300 * time.Millisecond
	if err := stub.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer stub.Stop()

	logPath, err := ch.Send(context.Background(), "status")
	if err != nil {
		t.Fatalf("Send failed against slow dispatcher: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("returned log path does not exist: %v", err)
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	ch, _ := newTestChannel(t)
	ch.HandoffTimeout = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Send(ctx, "status")
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Send did not observe cancellation")
	}
}
