// Package fake provides a configurable in-process worker backend for
// contract tests against the registry, runner, and playground.
package fake

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/worker"
)

// RunFunc produces the reply for one run request.
type RunFunc func(ctx context.Context, id, code string) (worker.Reply, error)

// Echo replies with a result frame whose payload is the code itself.
func Echo(ctx context.Context, id, code string) (worker.Reply, error) {
	return worker.Reply{Type: worker.TypeResult, ID: id, Payload: code}, nil
}

// Hang blocks until the caller's context expires, imitating a worker
// that never answers.
func Hang(ctx context.Context, id, code string) (worker.Reply, error) {
	<-ctx.Done()
	return worker.Reply{}, ctx.Err()
}

// Backend builds fake workers. Zero value echoes every run instantly.
type Backend struct {
	mu        sync.Mutex
	initErr   error
	initDelay time.Duration
	run       RunFunc
	version   string

	created int32
}

func New() *Backend {
	return &Backend{}
}

// FailInit makes subsequent initializations fail with err (nil resets).
func (b *Backend) FailInit(err error) {
	b.mu.Lock()
	b.initErr = err
	b.mu.Unlock()
}

// InitDelay makes initialization take d before completing.
func (b *Backend) InitDelay(d time.Duration) {
	b.mu.Lock()
	b.initDelay = d
	b.mu.Unlock()
}

// OnRun installs the reply function used by workers created afterwards.
func (b *Backend) OnRun(fn RunFunc) {
	b.mu.Lock()
	b.run = fn
	b.mu.Unlock()
}

// Version sets the version reported by workers created afterwards.
func (b *Backend) Version(v string) {
	b.mu.Lock()
	b.version = v
	b.mu.Unlock()
}

// Created reports how many workers the backend has constructed.
func (b *Backend) Created() int {
	return int(atomic.LoadInt32(&b.created))
}

// Factory returns a worker.Factory backed by this fake.
func (b *Backend) Factory() worker.Factory {
	return func(ctx context.Context, lang language.Language) (worker.Worker, error) {
		b.mu.Lock()
		err := b.initErr
		delay := b.initDelay
		run := b.run
		version := b.version
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err != nil {
			return nil, err
		}

		if run == nil {
			run = Echo
		}
		if version == "" {
			version = "0.0.0-fake"
		}

		atomic.AddInt32(&b.created, 1)
		return &Worker{lang: lang, version: version, run: run, done: make(chan struct{})}, nil
	}
}

// Worker is a fake worker.Worker.
type Worker struct {
	lang    language.Language
	version string
	run     RunFunc

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func (w *Worker) Language() language.Language { return w.lang }

func (w *Worker) Version() string { return w.version }

func (w *Worker) Run(ctx context.Context, id, code string) (worker.Reply, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return worker.Reply{}, worker.ErrWorkerClosed
	}
	done := w.done
	w.mu.Unlock()

	type outcome struct {
		rep worker.Reply
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		rep, err := w.run(ctx, id, code)
		ch <- outcome{rep, err}
	}()

	select {
	case out := <-ch:
		return out.rep, out.err
	case <-done:
		return worker.Reply{}, worker.ErrWorkerClosed
	case <-ctx.Done():
		return worker.Reply{}, ctx.Err()
	}
}

func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.closed = true
		close(w.done)
	}
	return nil
}

// Closed reports whether Close has been called.
func (w *Worker) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
