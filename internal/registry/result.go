package registry

import (
	"slices"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
	"github.com/anvil-platform/releaseplan/internal/semver"
)

type State int

const (
	StateUnknown State = iota
	StateNotFound
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateConfirmed:
		return "confirmed"
	case StateNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the answer to one version query.
type Result struct {
	State State
	// Versions is sorted ascending by semver precedence. Only set when State
	// is StateConfirmed.
	Versions []string
	// Err explains an Unknown result.
	Err error
}

func Confirmed(versions []string) Result {
	return Result{State: StateConfirmed, Versions: semver.Sort(versions)}
}

func NotFound() Result {
	return Result{State: StateNotFound}
}

func Unknown(err error) Result {
	return Result{State: StateUnknown, Err: err}
}

// Contains reports whether version is among the confirmed versions.
func (r Result) Contains(version string) bool {
	for _, v := range r.Versions {
		if semver.Equal(v, version) {
			return true
		}
	}
	return false
}

// Latest returns the highest confirmed version, or "".
func (r Result) Latest() string {
	if r.State != StateConfirmed || len(r.Versions) == 0 {
		return ""
	}
	return r.Versions[len(r.Versions)-1]
}

// Deployability maps the result onto the release decision for version.
func (r Result) Deployability(version string) v1alpha1.Deployability {
	switch r.State {
	case StateNotFound:
		return v1alpha1.DeployabilityDeployable
	case StateConfirmed:
		if r.Contains(version) {
			return v1alpha1.DeployabilityPublished
		}
		return v1alpha1.DeployabilityDeployable
	default:
		return v1alpha1.DeployabilityUnknown
	}
}

func (r Result) clone() Result {
	r.Versions = slices.Clone(r.Versions)
	return r
}
