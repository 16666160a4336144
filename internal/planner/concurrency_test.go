package planner

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/n9te9/federation-core/internal/fedast"
)

// TestPlanConcurrentSafe hammers Plan from many goroutines against a single
// shared Metadata value and asserts every resulting plan is identical.
// Plan takes no locks and mutates no shared state, so this is expected to
// be clean under -race.
func TestPlanConcurrentSafe(t *testing.T) {
	md := buildMetadata(t)
	doc, err := fedast.ParseDocument(`query { user(id: "1") { id name reviews { body } } }`)
	if err != nil {
		t.Fatalf("parse operation: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	plans := make([]*Plan, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			plans[idx], errs[idx] = Plan(md, doc, nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}

	for i := 1; i < workers; i++ {
		if diff := cmp.Diff(plans[0], plans[i]); diff != "" {
			t.Fatalf("worker %d produced a different plan (-first +worker):\n%s", i, diff)
		}
	}
}
