package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/releaseplan/api/v1alpha1"
	"github.com/anvil-platform/releaseplan/internal/workspace"
)

// ErrPackageNotFound is returned by lookups that require the package to exist.
var ErrPackageNotFound = errors.New("package not found in workspace graph")

// Node is one workspace package. Dependencies are outgoing edges; dependents
// are incoming edges filled in by the reverse-dependency index.
type Node struct {
	Manifest v1alpha1.PackageManifest

	dependencies []*Node
	dependents   []*Node
}

func (n *Node) Name() string {
	return n.Manifest.Name
}

// Dependencies returns the workspace packages n depends on, in declaration order.
func (n *Node) Dependencies() []*Node {
	return n.dependencies
}

// Dependents returns the workspace packages that depend on n.
func (n *Node) Dependents() []*Node {
	return n.dependents
}

// Edge records that From depends on To.
type Edge struct {
	From string
	To   string
}

type Graph struct {
	nodes map[string]*Node
	edges []Edge
}

// New builds the graph from manifests and indexes reverse edges.
//
// Dependencies on names that are not workspace packages are ignored, as are
// self-dependencies. A repeated package name keeps its first manifest.
func New(manifests []v1alpha1.PackageManifest) *Graph {
	g := &Graph{nodes: make(map[string]*Node, len(manifests))}
	order := make([]*Node, 0, len(manifests))
	for _, m := range manifests {
		if _, ok := g.nodes[m.Name]; ok {
			continue
		}
		n := &Node{Manifest: m}
		g.nodes[m.Name] = n
		order = append(order, n)
	}

	for _, n := range order {
		seen := make(map[string]struct{}, len(n.Manifest.Dependencies))
		for _, dep := range n.Manifest.Dependencies {
			if dep == n.Name() {
				continue
			}
			target, ok := g.nodes[dep]
			if !ok {
				continue
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			n.dependencies = append(n.dependencies, target)
			g.edges = append(g.edges, Edge{From: n.Name(), To: dep})
		}
	}

	g.index()
	return g
}

// index appends every edge's source to its target's dependents. It runs once,
// from New.
func (g *Graph) index() {
	for _, e := range g.edges {
		from, to := g.nodes[e.From], g.nodes[e.To]
		to.dependents = append(to.dependents, from)
	}
}

// Build loads manifests from src and returns their graph.
//
// When the metadata cannot be obtained the failure is logged and an empty
// graph is returned together with the *workspace.ConfigurationError, so the
// caller decides whether the run can continue.
func Build(ctx context.Context, src workspace.MetadataSource, scope string) (*Graph, error) {
	logger := log.FromContext(ctx)

	manifests, err := workspace.Load(ctx, src, scope)
	if err != nil {
		logger.Error(err, "unable to load workspace metadata; continuing with empty graph", "scope", scope)
		return New(nil), err
	}

	g := New(manifests)
	logger.V(1).Info("built workspace graph", "scope", scope, "packages", g.Len(), "edges", len(g.edges))
	return g, nil
}

// Get returns the node for name.
func (g *Graph) Get(name string) (*Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Lookup is Get for callers that treat an unknown name as an error.
func (g *Graph) Lookup(name string) (*Node, error) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPackageNotFound, name)
	}
	return n, nil
}

// Len returns the number of packages in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Names returns all package names in ascending order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Edges returns a copy of the dependency edges in construction order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}
