package release

import "errors"

var (
	// ErrNoGraph is returned when Plan is called without a workspace graph.
	ErrNoGraph = errors.New("release planner requires a workspace graph")

	// ErrPackageMismatch is recorded when an artifact declares a different
	// package than the candidate it was fetched for.
	ErrPackageMismatch = errors.New("artifact package does not match candidate")
)
