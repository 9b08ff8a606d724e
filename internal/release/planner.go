package release

import "context"

// Planner computes a release Plan for a set of candidate packages.
type Planner interface {
	Plan(ctx context.Context, in Input) (Plan, error)
}
