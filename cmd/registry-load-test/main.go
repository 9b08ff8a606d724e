package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anvil-platform/releaseplan/internal/registry"
)

type sample struct {
	name    string
	state   registry.State
	latency time.Duration
}

func main() {
	var baseURL string
	var packages string
	var rounds int
	var rps float64
	var timeout time.Duration

	flag.StringVar(&baseURL, "registry", registry.DefaultBaseURL, "Registry base URL")
	flag.StringVar(&packages, "packages", "azure_core,azure_identity,azure_security_keyvault_secrets", "Comma separated package names to query")
	flag.IntVar(&rounds, "rounds", 5, "Number of cold-cache rounds")
	flag.Float64Var(&rps, "rps", 1, "Requests per second per round; 0 disables throttling")
	flag.DurationVar(&timeout, "timeout", registry.DefaultTimeout, "Per-request timeout")
	flag.Parse()

	names, err := parseArgs(packages, rounds)
	if err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	fmt.Printf("Starting registry load test: %d rounds x %d packages against %s\n", rounds, len(names), baseURL)

	var wg sync.WaitGroup
	start := time.Now()
	samples := make(chan sample, rounds*len(names))

	for i := 0; i < rounds; i++ {
		// Fresh client per round so every query misses the cache.
		client, err := registry.NewClient(registry.Options{
			BaseURL:           baseURL,
			Timeout:           timeout,
			RequestsPerSecond: rps,
			Burst:             len(names),
		})
		if err != nil {
			log.Fatalf("Error creating registry client: %v", err)
		}

		for _, name := range names {
			wg.Add(1)
			go func(round int, name string) {
				defer wg.Done()
				queryStart := time.Now()
				res := client.ListPublishedVersions(context.Background(), name)
				latency := time.Since(queryStart)
				if res.State == registry.StateUnknown {
					fmt.Printf("Round %d: %s unknown after %v: %v\n", round, name, latency, res.Err)
				}
				samples <- sample{name: name, state: res.State, latency: latency}
			}(i, name)
		}
	}

	wg.Wait()
	close(samples)
	totalDuration := time.Since(start)

	states := map[registry.State]int{}
	var latencies []time.Duration
	for s := range samples {
		states[s.state]++
		latencies = append(latencies, s.latency)
	}
	if len(latencies) == 0 {
		fmt.Printf("Load test completed in %v. No queries ran.\n", totalDuration)
		return
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	var total time.Duration
	for _, l := range latencies {
		total += l
	}
	p95 := latencies[(len(latencies)*95+99)/100-1]

	fmt.Printf("Load test completed in %v. Avg latency: %v, p95: %v\n", totalDuration, total/time.Duration(len(latencies)), p95)
	fmt.Printf("Outcomes: confirmed=%d not_found=%d unknown=%d\n",
		states[registry.StateConfirmed], states[registry.StateNotFound], states[registry.StateUnknown])
}

// parseArgs splits the package list and checks the round count.
func parseArgs(packages string, rounds int) ([]string, error) {
	if rounds < 1 {
		return nil, fmt.Errorf("-rounds must be at least 1, got %d", rounds)
	}
	var names []string
	for _, n := range strings.Split(packages, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no packages given")
	}
	return names, nil
}
