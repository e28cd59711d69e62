// Package worker hosts language runtimes as isolated WASI modules and
// exposes them through an asynchronous message-passing interface. Each
// worker runs one interpreter; the host talks to it with JSON requests
// on stdin and receives framed JSON replies on stderr, matched back to
// callers by correlation ID.
package worker

import (
	"context"
	"errors"

	"github.com/runcell/runcell/language"
)

var (
	// ErrWorkerClosed is returned to any caller whose wait was cut
	// short by the worker shutting down or crashing.
	ErrWorkerClosed = errors.New("worker closed")

	// ErrUnknownLanguage is returned when no runtime descriptor is
	// registered for the requested language.
	ErrUnknownLanguage = errors.New("no runtime for language")
)

// Worker is one live language runtime. Run dispatches a single piece of
// code and awaits its reply; concurrent calls on the same worker are
// queued. Close terminates the runtime and unblocks every waiter with
// ErrWorkerClosed.
type Worker interface {
	Language() language.Language

	// Version is the interpreter version reported in the ready reply.
	Version() string

	// Run executes code under the worker's runtime. id is the
	// correlation ID for this request and must be unique per call.
	Run(ctx context.Context, id, code string) (Reply, error)

	Close() error
}

// Factory constructs a ready worker for a language. The registry calls
// it once per (successful) initialization.
type Factory func(ctx context.Context, lang language.Language) (Worker, error)
