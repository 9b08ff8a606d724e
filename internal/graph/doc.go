// Package graph models the workspace as a dependency graph between packages.
//
// A Graph is built once per run from manifests, and the reverse-dependency
// index is populated during construction. After New returns the graph is
// read-only and safe for concurrent readers.
//
// Impact analysis walks dependents edges breadth-first with a visited set, so
// malformed input containing cycles still terminates.
package graph
