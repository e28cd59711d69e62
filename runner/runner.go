// Package runner coordinates single code executions: it brings the
// target runtime up, dispatches the code under a timeout, and records
// the outcome in history. Failures of a run are data, not errors: the
// returned record's status encodes them.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/runcell/runcell/history"
	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/registry"
	"github.com/runcell/runcell/worker"
)

// DefaultTimeout bounds one execution, measured from dispatch.
const DefaultTimeout = 30 * time.Second

// Runner executes code against registry-managed runtimes.
type Runner struct {
	registry *registry.Registry
	history  *history.Store
	timeout  time.Duration
	recycle  bool
	log      *logrus.Entry
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout overrides the per-execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRecycleOnTimeout controls whether a timed-out run also tears the
// worker down so the next use reinitializes it. A timeout only cuts
// the caller's wait loose; the interpreter may still be spinning in
// user code, and recycling is the only way to reclaim it.
func WithRecycleOnTimeout(recycle bool) Option {
	return func(r *Runner) {
		r.recycle = recycle
	}
}

// WithLogger sets the logger executions are logged through.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(r *Runner) {
		r.log = logger.WithField("component", "runner")
	}
}

// New creates a Runner recording outcomes into hist.
func New(reg *registry.Registry, hist *history.Store, opts ...Option) *Runner {
	r := &Runner{
		registry: reg,
		history:  hist,
		timeout:  DefaultTimeout,
		recycle:  true,
		log:      logrus.WithField("component", "runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the per-execution timeout.
func (r *Runner) Timeout() time.Duration {
	return r.timeout
}

// Execute runs code under lang's runtime and returns the finished
// record. It never fails as a call: initialization errors, runtime
// errors, and timeouts all come back as a record with StatusError. The
// record is appended to history whatever the outcome.
func (r *Runner) Execute(ctx context.Context, code string, lang language.Language) history.Record {
	rec := history.Record{
		ID:          uuid.NewString(),
		Code:        code,
		Language:    lang,
		SubmittedAt: time.Now(),
		Status:      history.StatusPending,
	}
	start := time.Now()

	if err := r.registry.Initialize(ctx, lang); err != nil {
		return r.finish(rec, start, "", fmt.Sprintf("runtime initialization failed: %v", err))
	}

	w, err := r.registry.Worker(lang)
	if err != nil {
		return r.finish(rec, start, "", err.Error())
	}

	rec.Status = history.StatusRunning
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	reply, err := w.Run(runCtx, rec.ID, code)

	switch {
	case err == nil && reply.Type == worker.TypeResult:
		rec.Status = history.StatusSuccess
		rec.Output = reply.Payload
	case err == nil:
		rec.Status = history.StatusError
		rec.Output = reply.Payload
		rec.Error = reply.Error
		if rec.Error == "" {
			rec.Error = fmt.Sprintf("unexpected %s reply", reply.Type)
		}
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		rec.Status = history.StatusError
		rec.Error = fmt.Sprintf("execution timed out after %v", r.timeout)
		if r.recycle {
			r.log.WithField("language", lang.String()).Warn("recycling worker after timeout")
			r.registry.Cleanup(lang)
		}
	default:
		rec.Status = history.StatusError
		rec.Error = err.Error()
	}

	rec.ExecutionTime = time.Since(start)
	r.record(rec)
	return rec
}

func (r *Runner) finish(rec history.Record, start time.Time, output, errMsg string) history.Record {
	rec.Status = history.StatusError
	rec.Output = output
	rec.Error = errMsg
	rec.ExecutionTime = time.Since(start)
	r.record(rec)
	return rec
}

func (r *Runner) record(rec history.Record) {
	r.history.Append(rec)

	entry := r.log.WithFields(logrus.Fields{
		"id":       rec.ID,
		"language": rec.Language.String(),
		"status":   string(rec.Status),
		"elapsed":  rec.ExecutionTime,
	})
	if rec.Status == history.StatusError {
		entry.Debugf("execution failed: %s", rec.Error)
		return
	}
	entry.Debug("execution finished")
}
