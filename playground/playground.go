// Package playground is the UI-facing façade over the registry, runner,
// and history store: one serialized execution slot, a subscribable
// status snapshot, optional eager preloading, and teardown.
package playground

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runcell/runcell/history"
	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/registry"
	"github.com/runcell/runcell/runner"
)

// ErrExecutionInProgress rejects a RunCode call made while another is
// outstanding. The rejection is synchronous: no worker interaction
// happens.
var ErrExecutionInProgress = errors.New("execution in progress")

// Snapshot is what subscribers observe: the execution slot plus every
// runtime's status.
type Snapshot struct {
	Running  bool                                  `json:"running"`
	Runtimes map[language.Language]registry.Status `json:"runtimes"`
}

func (s Snapshot) equal(o Snapshot) bool {
	if s.Running != o.Running || len(s.Runtimes) != len(o.Runtimes) {
		return false
	}
	for lang, st := range s.Runtimes {
		if o.Runtimes[lang] != st {
			return false
		}
	}
	return true
}

// Playground wires the orchestration layer together for one UI scope.
type Playground struct {
	registry *registry.Registry
	runner   *runner.Runner
	history  *history.Store
	log      *logrus.Entry

	pollInterval time.Duration
	autoCleanup  bool
	preload      []language.Language

	mu        sync.Mutex
	running   bool
	listeners map[int]func(Snapshot)
	nextID    int
	last      Snapshot
	closed    bool

	stop chan struct{}
}

// Option configures a Playground.
type Option func(*Playground)

// WithPreload eagerly initializes the given languages at startup.
func WithPreload(langs ...language.Language) Option {
	return func(p *Playground) {
		p.preload = append(p.preload, langs...)
	}
}

// WithAutoCleanup controls whether Close also tears down every
// runtime. Defaults to true.
func WithAutoCleanup(cleanup bool) Option {
	return func(p *Playground) {
		p.autoCleanup = cleanup
	}
}

// WithPollInterval sets the cadence of the background status refresh
// that backs Subscribe. Zero disables polling; subscribers then only
// see event-driven updates. Defaults to 500ms.
func WithPollInterval(d time.Duration) Option {
	return func(p *Playground) {
		p.pollInterval = d
	}
}

// WithLogger sets the façade's logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Playground) {
		p.log = logger.WithField("component", "playground")
	}
}

// New assembles a Playground and starts its background refresh and any
// configured preloads.
func New(reg *registry.Registry, run *runner.Runner, hist *history.Store, opts ...Option) *Playground {
	p := &Playground{
		registry:     reg,
		runner:       run,
		history:      hist,
		log:          logrus.WithField("component", "playground"),
		pollInterval: 500 * time.Millisecond,
		autoCleanup:  true,
		listeners:    make(map[int]func(Snapshot)),
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, lang := range p.preload {
		lang := lang
		go func() {
			if err := p.registry.Preload(context.Background(), lang); err != nil {
				p.log.WithField("language", lang.String()).WithError(err).Warn("preload failed")
			}
			p.notify()
		}()
	}

	if p.pollInterval > 0 {
		go p.poll()
	}

	return p
}

// RunCode executes code and returns the finished record. Calls are
// serialized at the façade: a second call while one is outstanding is
// rejected with ErrExecutionInProgress.
func (p *Playground) RunCode(ctx context.Context, code string, lang language.Language) (history.Record, error) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return history.Record{}, ErrExecutionInProgress
	}
	p.running = true
	p.mu.Unlock()
	p.notify()

	rec := p.runner.Execute(ctx, code, lang)

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.notify()

	return rec, nil
}

// Running reports whether an execution is outstanding.
func (p *Playground) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// InitRuntime initializes a language's runtime, joining any in-flight
// attempt.
func (p *Playground) InitRuntime(ctx context.Context, lang language.Language) error {
	err := p.registry.Initialize(ctx, lang)
	p.notify()
	return err
}

// PreloadRuntime warms a language's runtime up.
func (p *Playground) PreloadRuntime(ctx context.Context, lang language.Language) error {
	err := p.registry.Preload(ctx, lang)
	p.notify()
	return err
}

// RuntimeStatus returns a snapshot of every runtime's status.
func (p *Playground) RuntimeStatus() map[language.Language]registry.Status {
	return p.registry.Status()
}

// History returns all retained execution records in submission order.
func (p *Playground) History() []history.Record {
	return p.history.All()
}

// HistoryFor returns the retained records for one language.
func (p *Playground) HistoryFor(lang language.Language) []history.Record {
	return p.history.ByLanguage(lang)
}

// ClearHistory drops every retained record.
func (p *Playground) ClearHistory() {
	p.history.Clear()
}

// ClearHistoryFor drops the retained records for one language.
func (p *Playground) ClearHistoryFor(lang language.Language) {
	p.history.ClearLanguage(lang)
}

// Cleanup tears down one language's runtime.
func (p *Playground) Cleanup(lang language.Language) error {
	err := p.registry.Cleanup(lang)
	p.notify()
	return err
}

// Subscribe registers a listener for snapshot changes. The listener is
// invoked immediately with the current snapshot, then on every change.
// The returned function cancels the subscription.
func (p *Playground) Subscribe(fn func(Snapshot)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	fn(p.Snapshot())

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

// Snapshot returns the current façade state.
func (p *Playground) Snapshot() Snapshot {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return Snapshot{
		Running:  running,
		Runtimes: p.registry.Status(),
	}
}

// Close stops the background refresh and, unless disabled, tears down
// every runtime. Idempotent.
func (p *Playground) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	close(p.stop)
	if p.autoCleanup {
		return p.registry.CleanupAll()
	}
	return nil
}

// notify delivers the current snapshot to subscribers if it changed
// since the last delivery. The snapshot and the compare-and-swap of
// p.last happen under one critical section so concurrent notifiers
// (state transitions racing the poll ticker) cannot both observe the
// same change and deliver it twice.
func (p *Playground) notify() {
	p.mu.Lock()
	snap := Snapshot{
		Running:  p.running,
		Runtimes: p.registry.Status(),
	}
	if snap.equal(p.last) {
		p.mu.Unlock()
		return
	}
	p.last = snap
	fns := make([]func(Snapshot), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// poll backs Subscribe with a periodic refresh so state changed by
// background loads still reaches subscribers promptly.
func (p *Playground) poll() {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.notify()
		case <-p.stop:
			return
		}
	}
}
