package graph

import (
	"k8s.io/apimachinery/pkg/util/sets"
)

// TransitiveDependents returns the names of every package that depends on root
// directly or indirectly. Root itself is never included, even when the input
// contains a cycle back to it. An unknown root yields an empty set.
//
// Each node is added and expanded at most once; the result is recomputed on
// every call.
func (g *Graph) TransitiveDependents(root string) sets.Set[string] {
	result := sets.New[string]()

	start, ok := g.nodes[root]
	if !ok {
		return result
	}

	visited := sets.New[string](root)
	queue := make([]*Node, 0, len(start.dependents))
	for _, d := range start.dependents {
		if visited.Has(d.Name()) {
			continue
		}
		visited.Insert(d.Name())
		queue = append(queue, d)
	}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		result.Insert(n.Name())

		for _, d := range n.dependents {
			if visited.Has(d.Name()) {
				continue // cycle or already queued
			}
			visited.Insert(d.Name())
			queue = append(queue, d)
		}
	}
	return result
}

// ImpactedNodes is TransitiveDependents resolved to nodes, sorted by name.
func (g *Graph) ImpactedNodes(root string) []*Node {
	names := sets.List(g.TransitiveDependents(root))
	nodes := make([]*Node, 0, len(names))
	for _, name := range names {
		nodes = append(nodes, g.nodes[name])
	}
	return nodes
}
