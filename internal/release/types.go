package release

import (
	"encoding/json"
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
	"github.com/anvil-platform/releaseplan/internal/graph"
)

// Input is the view of the run the planner operates on.
type Input struct {
	// Candidates are the changed packages proposed for release.
	Candidates []string
	// Graph is the workspace graph built for this run.
	Graph *graph.Graph
}

// Plan is the batch result. Entries are sorted by candidate name and hold
// either a descriptor or an error, never both.
type Plan struct {
	Entries []Entry `json:"entries"`
}

// Entry is one candidate's outcome.
type Entry struct {
	Candidate  string
	Descriptor *v1alpha1.ReleaseDescriptor
	Err        error
	// Impacted lists every package that transitively depends on the
	// candidate, sorted. Computed even when the descriptor failed.
	Impacted []string
}

func (e Entry) MarshalJSON() ([]byte, error) {
	out := struct {
		Candidate  string                      `json:"candidate"`
		Descriptor *v1alpha1.ReleaseDescriptor `json:"descriptor,omitempty"`
		Error      string                      `json:"error,omitempty"`
		Impacted   []string                    `json:"impacted"`
	}{
		Candidate:  e.Candidate,
		Descriptor: e.Descriptor,
		Impacted:   e.Impacted,
	}
	if e.Err != nil {
		out.Error = e.Err.Error()
	}
	if out.Impacted == nil {
		out.Impacted = []string{}
	}
	return json.Marshal(out)
}

// Entry returns the entry for candidate.
func (p Plan) Entry(candidate string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.Candidate == candidate {
			return e, true
		}
	}
	return Entry{}, false
}

// Deployable lists candidates whose descriptor is confirmed deployable.
func (p Plan) Deployable() []string {
	var out []string
	for _, e := range p.Entries {
		if e.Descriptor != nil && e.Descriptor.Deployable == v1alpha1.DeployabilityDeployable {
			out = append(out, e.Candidate)
		}
	}
	return out
}

// Err aggregates the per-candidate failures, or returns nil.
func (p Plan) Err() error {
	var errs []error
	for _, e := range p.Entries {
		if e.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Candidate, e.Err))
		}
	}
	return utilerrors.NewAggregate(errs)
}
