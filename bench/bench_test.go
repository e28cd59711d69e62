// Package bench measures the orchestration overhead runcell adds on top
// of a language worker: registry lookup, correlation, history recording,
// and the playground façade. Workers are faked so the numbers isolate
// coordination cost from interpreter cost.
//
// Run with: go test -bench=. ./bench/
package bench

import (
	"context"
	"testing"

	"github.com/runcell/runcell/history"
	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/playground"
	"github.com/runcell/runcell/registry"
	"github.com/runcell/runcell/runner"
	"github.com/runcell/runcell/worker/fake"
)

func newRunner(b *testing.B) (*runner.Runner, *registry.Registry) {
	b.Helper()
	backend := fake.New()
	reg := registry.New(backend.Factory(), language.All())
	hist := history.NewStore(history.DefaultCapacity)
	return runner.New(reg, hist), reg
}

func BenchmarkExecute_ColdRegistry(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		run, reg := newRunner(b)
		run.Execute(ctx, "x=1", language.Python)
		reg.CleanupAll()
	}
}

func BenchmarkExecute_WarmRegistry(b *testing.B) {
	ctx := context.Background()
	run, reg := newRunner(b)
	defer reg.CleanupAll()

	// First run initializes the worker.
	run.Execute(ctx, "x=1", language.Python)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run.Execute(ctx, "x=1", language.Python)
	}
}

func BenchmarkExecute_AllLanguages(b *testing.B) {
	ctx := context.Background()
	run, reg := newRunner(b)
	defer reg.CleanupAll()

	for _, lang := range language.All() {
		run.Execute(ctx, "x=1", lang)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run.Execute(ctx, "x=1", language.All()[i%len(language.All())])
	}
}

func BenchmarkHistoryAppend(b *testing.B) {
	hist := history.NewStore(history.DefaultCapacity)
	rec := history.Record{ID: "bench", Code: "x=1", Language: language.Python}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		hist.Append(rec)
	}
}

func BenchmarkPlaygroundRunCode(b *testing.B) {
	ctx := context.Background()
	backend := fake.New()
	reg := registry.New(backend.Factory(), language.All())
	hist := history.NewStore(history.DefaultCapacity)
	run := runner.New(reg, hist)
	pg := playground.New(reg, run, hist)
	defer pg.Close()

	pg.RunCode(ctx, "x=1", language.Python)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pg.RunCode(ctx, "x=1", language.Python)
	}
}

func BenchmarkPlaygroundRunCode_WithSubscriber(b *testing.B) {
	ctx := context.Background()
	backend := fake.New()
	reg := registry.New(backend.Factory(), language.All())
	hist := history.NewStore(history.DefaultCapacity)
	run := runner.New(reg, hist)
	pg := playground.New(reg, run, hist)
	defer pg.Close()

	cancel := pg.Subscribe(func(playground.Snapshot) {})
	defer cancel()

	pg.RunCode(ctx, "x=1", language.Python)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pg.RunCode(ctx, "x=1", language.Python)
	}
}

func BenchmarkRegistryStatus(b *testing.B) {
	_, reg := newRunner(b)
	defer reg.CleanupAll()
	reg.Initialize(context.Background(), language.Python)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Status()
	}
}
