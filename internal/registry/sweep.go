package registry

import (
	"context"
	"time"
)

// StartSweeper runs the periodic stale-session sweep described in
// spec.md §4.1 (default: every 5 minutes, removing sessions idle past
// staleAfter) until ctx is canceled. Grounded on the ticker + background
// goroutine pattern in goadesign-goa-ai's runtime/registry.Manager
// (StartSync/StopSync/syncRegistry), generalized to the registry's own
// sweep operation.
func (r *Registry) StartSweeper(ctx context.Context, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(ctx, staleAfter, time.Now().UTC())
			case <-ctx.Done():
				return
			case <-r.done:
				return
			}
		}
	}()
}
