package compose

import (
	"sync"
	"testing"

	"github.com/n9te9/federation-core/internal/ingest"
)

// TestComposeConcurrentSafe hammers Compose from many goroutines on
// independently-ingested copies of the same subgraphs and checks every
// run produces an identical Identity(). Compose holds no package-level
// mutable state, so this is expected to pass cleanly under -race.
func TestComposeConcurrentSafe(t *testing.T) {
	const workers = 32

	var wg sync.WaitGroup
	identities := make([]string, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			users := mustIngest(t, "users", usersSDL)
			reviews := mustIngest(t, "reviews", reviewsSDL)
			sg, errs := Compose([]*ingest.Subgraph{users, reviews})
			if len(errs) != 0 {
				t.Errorf("worker %d: unexpected errors: %v", idx, errs)
				return
			}
			identities[idx] = sg.Identity().String()
		}(i)
	}
	wg.Wait()

	first := identities[0]
	for i, id := range identities {
		if id != first {
			t.Fatalf("worker %d produced a different Identity: %s vs %s", i, id, first)
		}
	}
}
