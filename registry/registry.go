// Package registry owns the per-language workers and drives each
// through its lifecycle: Uninitialized -> Loading -> Ready, or
// Loading -> Failed with caller-initiated retry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/worker"
)

var (
	// ErrShutdown rejects waiters whose initialization or execution
	// was cut short by a cleanup.
	ErrShutdown = errors.New("runtime torn down")

	// ErrNotReady is returned by Worker when the language has no live
	// worker.
	ErrNotReady = errors.New("runtime not initialized")
)

// State is a language runtime's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status is a point-in-time snapshot of one language's runtime. At most
// one of Loading/Ready is set; Error is set only after a failed load.
type Status struct {
	Loading bool   `json:"loading"`
	Ready   bool   `json:"ready"`
	Error   string `json:"error,omitempty"`
	Version string `json:"version,omitempty"`
}

// attempt is one in-flight initialization, shared by every caller that
// joins while it is loading. err is written before done is closed and
// read only after.
type attempt struct {
	done chan struct{}
	err  error
}

func (a *attempt) wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type langState struct {
	state   State
	err     string
	version string
	attempt *attempt
}

// Registry tracks worker instances and lifecycle state for a set of
// languages. All state lives on the Registry value; construct one per
// playground (or per test).
type Registry struct {
	factory worker.Factory
	langs   map[language.Language]bool
	log     *logrus.Entry

	mu      sync.Mutex
	workers map[language.Language]worker.Worker
	states  map[language.Language]*langState
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger lifecycle transitions are logged through.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Registry) {
		r.log = logger.WithField("component", "registry")
	}
}

// New creates a Registry for the given languages backed by factory.
func New(factory worker.Factory, langs []language.Language, opts ...Option) *Registry {
	r := &Registry{
		factory: factory,
		langs:   make(map[language.Language]bool, len(langs)),
		log:     logrus.WithField("component", "registry"),
		workers: make(map[language.Language]worker.Worker),
		states:  make(map[language.Language]*langState),
	}
	for _, l := range langs {
		r.langs[l] = true
		r.states[l] = &langState{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Languages returns the supported languages in a stable order.
func (r *Registry) Languages() []language.Language {
	out := make([]language.Language, 0, len(r.langs))
	for _, l := range language.All() {
		if r.langs[l] {
			out = append(out, l)
		}
	}
	return out
}

// Initialize brings the language's runtime up. Idempotent: a ready
// runtime returns immediately, a loading one is joined (never a second
// concurrent load), and a failed one is retried from scratch.
func (r *Registry) Initialize(ctx context.Context, lang language.Language) error {
	st, err := r.stateFor(lang)
	if err != nil {
		return err
	}

	r.mu.Lock()
	switch st.state {
	case StateReady:
		r.mu.Unlock()
		return nil
	case StateLoading:
		a := st.attempt
		r.mu.Unlock()
		return a.wait(ctx)
	}

	a := &attempt{done: make(chan struct{})}
	st.state = StateLoading
	st.err = ""
	st.attempt = a
	r.mu.Unlock()

	r.log.WithField("language", lang.String()).Info("initializing runtime")
	go r.load(lang, st, a)

	return a.wait(ctx)
}

// Preload is Initialize under a different intent: warm a runtime up
// without blocking a user action.
func (r *Registry) Preload(ctx context.Context, lang language.Language) error {
	return r.Initialize(ctx, lang)
}

// load runs one initialization attempt to completion. The attempt's
// outcome is published exactly once, by whoever clears st.attempt:
// load itself, or a concurrent Cleanup.
func (r *Registry) load(lang language.Language, st *langState, a *attempt) {
	w, err := r.factory(context.Background(), lang)

	r.mu.Lock()
	if st.attempt != a {
		// Cleaned up while loading; the cleanup already rejected the
		// waiters. Discard whatever the factory produced.
		r.mu.Unlock()
		if err == nil {
			w.Close()
		}
		return
	}
	st.attempt = nil

	if err != nil {
		st.state = StateFailed
		st.err = err.Error()
		a.err = fmt.Errorf("initialize %s: %w", lang, err)
		r.mu.Unlock()
		close(a.done)
		r.log.WithField("language", lang.String()).WithError(err).Error("runtime initialization failed")
		return
	}

	r.workers[lang] = w
	st.state = StateReady
	st.version = w.Version()
	r.mu.Unlock()
	close(a.done)
	r.log.WithFields(logrus.Fields{
		"language": lang.String(),
		"version":  w.Version(),
	}).Info("runtime ready")
}

// Worker returns the live worker for a ready language.
func (r *Registry) Worker(lang language.Language) (worker.Worker, error) {
	if _, err := r.stateFor(lang); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[lang]
	if !ok {
		return nil, fmt.Errorf("%s: %w", lang, ErrNotReady)
	}
	return w, nil
}

// Status returns a snapshot of every language's runtime status.
func (r *Registry) Status() map[language.Language]Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[language.Language]Status, len(r.states))
	for lang, st := range r.states {
		out[lang] = statusOf(st)
	}
	return out
}

// StatusOf returns a snapshot of one language's runtime status.
func (r *Registry) StatusOf(lang language.Language) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[lang]
	if !ok {
		return Status{}
	}
	return statusOf(st)
}

func statusOf(st *langState) Status {
	return Status{
		Loading: st.state == StateLoading,
		Ready:   st.state == StateReady,
		Error:   st.err,
		Version: st.version,
	}
}

// Cleanup terminates the language's worker and resets it to
// Uninitialized. Safe at any time: an in-flight initialization or
// execution observes a rejection, never a hang.
func (r *Registry) Cleanup(lang language.Language) error {
	st, err := r.stateFor(lang)
	if err != nil {
		return err
	}

	r.mu.Lock()
	w := r.workers[lang]
	delete(r.workers, lang)

	a := st.attempt
	st.attempt = nil
	st.state = StateUninitialized
	st.err = ""
	st.version = ""

	if a != nil {
		a.err = fmt.Errorf("initialize %s: %w", lang, ErrShutdown)
	}
	r.mu.Unlock()

	if a != nil {
		close(a.done)
	}

	var closeErr error
	if w != nil {
		closeErr = w.Close()
	}
	r.log.WithField("language", lang.String()).Info("runtime cleaned up")
	return closeErr
}

// CleanupAll tears down every runtime. Returns the first close error.
func (r *Registry) CleanupAll() error {
	var first error
	for _, lang := range r.Languages() {
		if err := r.Cleanup(lang); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Registry) stateFor(lang language.Language) (*langState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", worker.ErrUnknownLanguage, lang)
	}
	return st, nil
}
