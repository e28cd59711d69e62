package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/runcell/runcell/language"
)

// newStalledWorker builds a moduleWorker whose stdin has no reader,
// like an interpreter spinning in user code that never comes back to
// the command loop.
func newStalledWorker() *moduleWorker {
	w := &moduleWorker{lang: language.Python, router: newRouter()}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.stdinReader, w.stdin = io.Pipe()
	return w
}

func TestRunDispatchHonorsContext(t *testing.T) {
	w := newStalledWorker()
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := w.Run(ctx, "req-1", "while True: pass")
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want deadline exceeded", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run blocked past its context deadline")
	}
}

func TestRunDispatchAfterModuleExit(t *testing.T) {
	w := newStalledWorker()
	defer w.Close()
	w.markDead()

	_, err := w.Run(context.Background(), "req-2", "print(1)")
	if !errors.Is(err, ErrWorkerClosed) {
		t.Fatalf("err = %v, want %v", err, ErrWorkerClosed)
	}
}

func TestWorkerStdoutCaptured(t *testing.T) {
	w := newStalledWorker()
	defer w.Close()

	w.diag.Write([]byte("Python 3.12.0 (wasi)\n"))
	if got := w.Stdout(); got != "Python 3.12.0 (wasi)\n" {
		t.Errorf("Stdout() = %q", got)
	}
}
