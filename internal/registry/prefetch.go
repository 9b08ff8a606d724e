package registry

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultPrefetchConcurrency = 4

// Prefetch queries every distinct name concurrently and returns the results
// keyed by normalized (lower-case) name. Queries for different names are
// independent; one failing only makes its own entry Unknown.
//
// Against a Client this also warms the per-run cache, so later
// ListPublishedVersions calls for the same names do no network I/O.
func Prefetch(ctx context.Context, oracle VersionOracle, names []string, concurrency int) map[string]Result {
	if concurrency <= 0 {
		concurrency = defaultPrefetchConcurrency
	}

	unique := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		key := normalizeName(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(unique))
	)
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, name := range unique {
		g.Go(func() error {
			res := oracle.ListPublishedVersions(ctx, name)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}
