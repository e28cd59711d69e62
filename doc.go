// Package runcell orchestrates sandboxed language runtimes for an
// interactive code playground.
//
// # Overview
//
// runcell keeps one long-lived WebAssembly interpreter per language
// (Python, C++, JavaScript), initialized lazily on first use and reused
// across runs. Each run is correlated by a unique request ID, bounded by
// a timeout, and recorded in a capped execution history.
//
// # Basic Usage
//
//	engine, _ := worker.NewEngine([]language.Runtime{python.New(dir)})
//	defer engine.Close()
//
//	reg := registry.New(engine.Factory(), engine.Languages())
//	hist := history.NewStore(history.DefaultCapacity)
//	run := runner.New(reg, hist)
//
//	pg := playground.New(reg, run, hist)
//	defer pg.Close()
//
//	rec, _ := pg.RunCode(ctx, `print("hello")`, language.Python)
//	fmt.Println(rec.Output)
//
// Runtime status can be observed reactively:
//
//	cancel := pg.Subscribe(func(snap playground.Snapshot) {
//	    fmt.Println(snap.Runtimes)
//	})
//	defer cancel()
//
// See the [worker], [registry], [runner], [history], and [playground]
// packages for detailed API documentation.
package runcell
