package sources

import (
	"context"
	"sync"

	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/geo"
)

// runLocalityPool processes localities with a fixed number of workers. Each
// worker handles one locality at a time and returns its events over a
// channel; the caller's goroutine collects them, so workers never touch the
// combined slice. Cancellation drains the remaining localities without
// starting them.
func runLocalityPool(ctx context.Context, localities []geo.City, workers int, work func(ctx context.Context, locality geo.City) []event.Event) []event.Event {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(localities) {
		workers = len(localities)
	}
	if workers == 0 {
		return nil
	}

	jobs := make(chan geo.City)
	results := make(chan []event.Event)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for locality := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- work(ctx, locality)
			}
		}()
	}

	go func() {
		for _, locality := range localities {
			jobs <- locality
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var events []event.Event
	for batch := range results {
		events = append(events, batch...)
	}
	return events
}
