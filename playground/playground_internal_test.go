package playground

import (
	"context"
	"sync"
	"testing"

	"github.com/runcell/runcell/history"
	"github.com/runcell/runcell/language"
	"github.com/runcell/runcell/registry"
	"github.com/runcell/runcell/runner"
	"github.com/runcell/runcell/worker/fake"
)

// A state transition observed by several notifiers at once must reach
// subscribers exactly once.
func TestNotifyDeliversEachChangeOnce(t *testing.T) {
	backend := fake.New()
	reg := registry.New(backend.Factory(), language.All())
	hist := history.NewStore(history.DefaultCapacity)
	run := runner.New(reg, hist)
	p := New(reg, run, hist, WithPollInterval(0), WithAutoCleanup(false))
	defer p.Close()

	var mu sync.Mutex
	var got []Snapshot
	cancel := p.Subscribe(func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	defer cancel()

	if err := reg.Initialize(context.Background(), language.Python); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.notify()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()

	// One delivery at Subscribe, then exactly one for the transition.
	if len(got) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(got))
	}
	if !got[1].Runtimes[language.Python].Ready {
		t.Errorf("delivered snapshot not ready: %+v", got[1].Runtimes[language.Python])
	}
}
