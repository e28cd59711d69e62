package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/runcell/runcell/language"
)

// Engine owns the wazero runtime and compiled-module cache, and builds
// workers from language runtime descriptors.
type Engine struct {
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	runtimes map[language.Language]language.Runtime
	compiled map[language.Language]wazero.CompiledModule
	log      *logrus.Entry
	cfg      engineConfig

	mu     sync.RWMutex
	closed bool
}

type engineConfig struct {
	diskCache        bool
	cacheDir         string
	memoryLimitPages uint32
	initTimeout      time.Duration
	logger           logrus.FieldLogger
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		initTimeout: 30 * time.Second,
		logger:      logrus.StandardLogger(),
	}
}

// EngineOption configures the Engine at creation time.
type EngineOption func(*engineConfig)

// WithDiskCache enables the persistent compilation cache. Optionally
// provide a custom directory; otherwise ~/.cache/runcell is used.
func WithDiskCache(dir ...string) EngineOption {
	return func(c *engineConfig) {
		c.diskCache = true
		if len(dir) > 0 && dir[0] != "" {
			c.cacheDir = dir[0]
		}
	}
}

// WithMemoryLimit caps worker module memory. Each page is 64KB.
func WithMemoryLimit(pages uint32) EngineOption {
	return func(c *engineConfig) {
		c.memoryLimitPages = pages
	}
}

// WithInitTimeout bounds how long a worker may take to report ready.
func WithInitTimeout(d time.Duration) EngineOption {
	return func(c *engineConfig) {
		c.initTimeout = d
	}
}

// WithLogger sets the logger workers and the engine log through.
func WithLogger(logger logrus.FieldLogger) EngineOption {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// NewEngine creates an Engine hosting the given runtime descriptors.
func NewEngine(runtimes []language.Runtime, opts ...EngineOption) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx := context.Background()

	var cache wazero.CompilationCache
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(dir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if cache != nil {
		rtConfig = rtConfig.WithCompilationCache(cache)
	}
	if cfg.memoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.memoryLimitPages)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		if cache != nil {
			cache.Close(ctx)
		}
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	byLang := make(map[language.Language]language.Runtime, len(runtimes))
	for _, desc := range runtimes {
		byLang[desc.Language()] = desc
	}

	return &Engine{
		runtime:  rt,
		cache:    cache,
		runtimes: byLang,
		compiled: make(map[language.Language]wazero.CompiledModule),
		log:      cfg.logger.WithField("component", "engine"),
		cfg:      cfg,
	}, nil
}

// Languages returns the languages this engine has runtimes for.
func (e *Engine) Languages() []language.Language {
	langs := make([]language.Language, 0, len(e.runtimes))
	for _, l := range language.All() {
		if _, ok := e.runtimes[l]; ok {
			langs = append(langs, l)
		}
	}
	return langs
}

// Factory returns the worker factory backed by this engine.
func (e *Engine) Factory() Factory {
	return e.NewWorker
}

// NewWorker instantiates the language's module and waits for its ready
// reply. The returned worker is serving requests.
func (e *Engine) NewWorker(ctx context.Context, lang language.Language) (Worker, error) {
	desc, ok := e.runtimes[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLanguage, lang)
	}

	compiled, err := e.getCompiled(ctx, desc)
	if err != nil {
		return nil, err
	}

	w := &moduleWorker{
		lang:   lang,
		router: newRouter(),
		log:    e.log.WithField("language", lang.String()),
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.stdinReader, w.stdin = io.Pipe()

	moduleConfig := wazero.NewModuleConfig().
		WithStdout(&w.diag).
		WithStderr(w.router).
		WithStdin(w.stdinReader).
		WithArgs(desc.Args(desc.Bootstrap())...).
		WithName("")

	exited := make(chan error, 1)
	go func() {
		_, err := e.runtime.InstantiateModule(w.ctx, compiled, moduleConfig)
		w.markDead()
		exited <- err
	}()

	// The worker loop reads its first command before replying, so the
	// init request must be in flight before we wait for ready.
	go w.send(w.ctx, Request{Type: TypeInit, Language: lang.String()})

	select {
	case rep := <-w.router.Ready():
		w.version = rep.Version
		e.checkVersion(desc, rep.Version)
		return w, nil
	case err := <-exited:
		w.Close()
		if err != nil {
			return nil, fmt.Errorf("start %s worker: %w", lang, err)
		}
		return nil, fmt.Errorf("start %s worker: exited before ready", lang)
	case <-time.After(e.cfg.initTimeout):
		w.Close()
		return nil, fmt.Errorf("start %s worker: no ready reply within %v", lang, e.cfg.initTimeout)
	case <-ctx.Done():
		w.Close()
		return nil, ctx.Err()
	}
}

// checkVersion warns when the interpreter version falls outside the
// descriptor's constraint. Informational only; the worker stays up.
func (e *Engine) checkVersion(desc language.Runtime, version string) {
	want := desc.VersionConstraint()
	if want == "" || version == "" {
		return
	}
	constraint, err := semver.NewConstraint(want)
	if err != nil {
		return
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		e.log.WithField("language", desc.Language().String()).
			Warnf("runtime reported unparseable version %q", version)
		return
	}
	if !constraint.Check(v) {
		e.log.WithField("language", desc.Language().String()).
			Warnf("runtime version %s outside supported range %s", version, want)
	}
}

// getCompiled returns a cached compiled module, compiling if necessary.
func (e *Engine) getCompiled(ctx context.Context, desc language.Runtime) (wazero.CompiledModule, error) {
	lang := desc.Language()

	e.mu.RLock()
	if compiled, ok := e.compiled[lang]; ok {
		e.mu.RUnlock()
		return compiled, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrWorkerClosed
	}
	if compiled, ok := e.compiled[lang]; ok {
		return compiled, nil
	}

	module, err := desc.Module()
	if err != nil {
		return nil, err
	}

	compiled, err := e.runtime.CompileModule(ctx, module)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", lang, err)
	}

	e.compiled[lang] = compiled
	return compiled, nil
}

// Close releases the wazero runtime and compilation cache. Workers
// built by this engine must be closed first; closing the runtime tears
// down any that remain.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	ctx := context.Background()

	var errs []error
	if err := e.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.cache != nil {
		if err := e.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "runcell")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "runcell")
	}
	return filepath.Join(os.TempDir(), "runcell-cache")
}

// moduleWorker is a Worker backed by a live WASI module instance.
type moduleWorker struct {
	lang    language.Language
	version string
	log     *logrus.Entry

	ctx         context.Context
	cancel      context.CancelFunc
	stdin       *io.PipeWriter
	stdinReader *io.PipeReader
	router      *router
	diag        lockedBuffer

	writeMu sync.Mutex
	runMu   sync.Mutex

	mu     sync.Mutex
	closed bool
}

func (w *moduleWorker) Language() language.Language {
	return w.lang
}

func (w *moduleWorker) Version() string {
	return w.version
}

// Stdout returns whatever the interpreter wrote to its host stdout.
// Replies travel as stderr frames; stdout only carries diagnostic noise
// such as interpreter banners, kept here for troubleshooting.
func (w *moduleWorker) Stdout() string {
	return w.diag.String()
}

// Run dispatches code under a fresh correlation ID and awaits the
// matching reply. Runs on one worker are serialized; the correlation
// table still keys by ID so a reply can never be claimed by the wrong
// caller.
func (w *moduleWorker) Run(ctx context.Context, id, code string) (Reply, error) {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return Reply{}, ErrWorkerClosed
	}
	w.mu.Unlock()

	ch, err := w.router.register(id)
	if err != nil {
		return Reply{}, err
	}

	if err := w.send(ctx, Request{Type: TypeRun, ID: id, Language: w.lang.String(), Payload: code}); err != nil {
		w.router.cancel(id)
		return Reply{}, fmt.Errorf("dispatch run: %w", err)
	}

	select {
	case rep, ok := <-ch:
		if !ok {
			return Reply{}, ErrWorkerClosed
		}
		return rep, nil
	case <-ctx.Done():
		w.router.cancel(id)
		return Reply{}, ctx.Err()
	}
}

// send writes the request line to the worker's stdin without blocking
// past ctx. An interpreter stuck in user code never reads stdin, so the
// pipe write can stall indefinitely; the write runs in a goroutine and
// stays parked on writeMu until Close unblocks the pipe.
func (w *moduleWorker) send(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		w.writeMu.Lock()
		defer w.writeMu.Unlock()
		_, err := w.stdin.Write(append(data, '\n'))
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.ctx.Done():
		return ErrWorkerClosed
	}
}

// markDead is called when the module instance exits for any reason.
// Cancelling the worker context also releases any send parked on the
// now-readerless stdin pipe.
func (w *moduleWorker) markDead() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	w.router.closeAll()
}

// Close terminates the module and rejects all outstanding waits.
// Closing stdin delivers EOF to the worker loop; cancelling the module
// context force-stops an interpreter stuck in user code.
func (w *moduleWorker) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	w.stdinReader.Close()
	w.stdin.Close()
	w.cancel()
	w.router.closeAll()
	return nil
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
