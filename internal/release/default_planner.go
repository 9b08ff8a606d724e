package release

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
	"github.com/anvil-platform/releaseplan/internal/artifact"
	"github.com/anvil-platform/releaseplan/internal/metrics"
	"github.com/anvil-platform/releaseplan/internal/registry"
)

// DefaultPlanner is the planner wired into the CLI.
//
// For each candidate it widens the validation scope to the candidate's
// transitive dependents and builds the release descriptor from the
// candidate's artifact. A failing candidate is recorded in its entry and the
// batch continues.
type DefaultPlanner struct {
	Source    artifact.Source
	Extractor *artifact.Extractor
	// Concurrency bounds parallel registry prefetches.
	Concurrency int
}

var _ Planner = (*DefaultPlanner)(nil)

func NewDefault(source artifact.Source, extractor *artifact.Extractor, concurrency int) *DefaultPlanner {
	return &DefaultPlanner{
		Source:      source,
		Extractor:   extractor,
		Concurrency: concurrency,
	}
}

func (p *DefaultPlanner) Plan(ctx context.Context, in Input) (Plan, error) {
	if in.Graph == nil {
		return Plan{}, ErrNoGraph
	}
	start := time.Now()
	defer func() { metrics.PlanDuration.Observe(time.Since(start).Seconds()) }()

	logger := log.FromContext(ctx)
	candidates := normalizeCandidates(in.Candidates)
	logger.Info("planning release", "candidates", len(candidates), "packages", in.Graph.Len())

	// Warm the per-run registry cache; descriptors are then built in order.
	if p.Extractor != nil && p.Extractor.Oracle != nil {
		registry.Prefetch(ctx, p.Extractor.Oracle, candidates, p.Concurrency)
	}

	plan := Plan{Entries: make([]Entry, 0, len(candidates))}
	for _, candidate := range candidates {
		entry := p.planCandidate(ctx, in, candidate)
		plan.Entries = append(plan.Entries, entry)
	}

	logger.Info("release plan ready", "deployable", len(plan.Deployable()), "failed", countFailed(plan))
	return plan, nil
}

func (p *DefaultPlanner) planCandidate(ctx context.Context, in Input, candidate string) Entry {
	logger := log.FromContext(ctx).WithValues("candidate", candidate)
	ctx = log.IntoContext(ctx, logger)

	if _, ok := in.Graph.Get(candidate); !ok {
		logger.Info("candidate not in workspace graph; impact set is empty")
	}
	impacted := sets.List(in.Graph.TransitiveDependents(candidate))
	metrics.ImpactSetSize.Observe(float64(len(impacted)))

	entry := Entry{Candidate: candidate, Impacted: impacted}
	descriptor, err := p.describe(ctx, candidate)
	if err != nil {
		logger.Error(err, "unable to build release descriptor")
		metrics.ReleaseDescriptorsTotal.WithLabelValues("error").Inc()
		entry.Err = err
		return entry
	}

	metrics.ReleaseDescriptorsTotal.WithLabelValues(descriptorResult(descriptor.Deployable)).Inc()
	logger.Info("release descriptor built", "version", descriptor.Version, "deployable", descriptor.Deployable.String(), "impacted", len(impacted))
	entry.Descriptor = descriptor
	return entry
}

func (p *DefaultPlanner) describe(ctx context.Context, candidate string) (*v1alpha1.ReleaseDescriptor, error) {
	if p.Source == nil || p.Extractor == nil {
		return nil, fmt.Errorf("release planner is missing an artifact source or extractor")
	}
	pair, err := p.Source.Fetch(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("fetch artifact: %w", err)
	}
	descriptor, err := p.Extractor.BuildReleaseDescriptor(ctx, pair)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(descriptor.PackageID, candidate) {
		return nil, fmt.Errorf("%w: artifact declares %q", ErrPackageMismatch, descriptor.PackageID)
	}
	return descriptor, nil
}

func normalizeCandidates(raw []string) []string {
	set := sets.New[string]()
	for _, c := range raw {
		if c = strings.TrimSpace(c); c != "" {
			set.Insert(c)
		}
	}
	return sets.List(set)
}

func descriptorResult(d v1alpha1.Deployability) string {
	switch d {
	case v1alpha1.DeployabilityDeployable:
		return "deployable"
	case v1alpha1.DeployabilityPublished:
		return "published"
	default:
		return "unknown"
	}
}

func countFailed(plan Plan) int {
	n := 0
	for _, e := range plan.Entries {
		if e.Err != nil {
			n++
		}
	}
	return n
}
