package logo

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Result pairs a website with the outcome of its resolution
type Result struct {
	Website string
	Logo    *Candidate
	Err     error
}

// ResolveAll resolves websites with at most workers resolutions in flight.
// Results are returned in input order.
func ResolveAll(ctx context.Context, r *Resolver, websites []string, workers int) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(websites))

	p := pool.New().WithMaxGoroutines(workers)
	for i, website := range websites {
		p.Go(func() {
			results[i].Website = website
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i].Logo, results[i].Err = r.Resolve(ctx, website)
		})
	}
	p.Wait()

	return results
}
