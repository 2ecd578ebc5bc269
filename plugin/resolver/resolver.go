// Package resolver builds a dependency graph from plugin manifests, detects
// cycles, computes a safe load order, and answers dependency-satisfaction
// queries. Resolution is a pure function of its input: no side effects, no
// shared state.
package resolver

import (
	"sort"

	"github.com/cardwise/cardflow/plugin"
	"github.com/cardwise/cardflow/plugin/version"
)

// Result is the outcome of resolving a batch of manifests.
type Result struct {
	// LoadOrder places every dependency before each of its dependents. When
	// cycles exist it covers only the acyclic portion of the graph.
	LoadOrder []string
	// HasCycles reports whether any dependency cycle was found.
	HasCycles bool
	// Cycles holds one id sequence per detected loop.
	Cycles [][]string
	// Missing holds referenced dependency ids absent from the input.
	Missing []string
}

// dfs colors for cycle detection.
const (
	white = iota // unvisited
	gray         // in progress
	black        // done
)

// Resolve builds the dependency graph for the given manifests. Ids are
// iterated in sorted order so the output is deterministic for a given input
// set. Edges to missing dependencies are excluded from ordering and cycle
// analysis; an absent node cannot participate in a cycle.
func Resolve(manifests map[string]*plugin.Manifest) *Result {
	ids := make([]string, 0, len(manifests))
	for id := range manifests {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// dependsOn maps each id to its present dependencies, dependents is the
	// reverse: an edge dependency -> dependent means "must load first".
	dependsOn := make(map[string][]string, len(ids))
	dependents := make(map[string][]string, len(ids))
	missingSet := make(map[string]struct{})

	for _, id := range ids {
		for _, dep := range manifests[id].Dependencies.Plugins {
			if _, ok := manifests[dep.ID]; !ok {
				missingSet[dep.ID] = struct{}{}
				continue
			}
			dependsOn[id] = append(dependsOn[id], dep.ID)
			dependents[dep.ID] = append(dependents[dep.ID], id)
		}
	}

	res := &Result{Missing: setToSorted(missingSet)}
	res.Cycles = findCycles(ids, dependsOn)
	res.HasCycles = len(res.Cycles) > 0
	res.LoadOrder = loadOrder(ids, dependsOn, dependents)
	return res
}

// findCycles runs a three-color depth-first traversal over the dependency
// edges. Reaching a gray node closes a loop; the path segment from that node
// back to itself is reported as one cycle.
func findCycles(ids []string, dependsOn map[string][]string) [][]string {
	colors := make(map[string]int, len(ids))
	var stack []string
	var cycles [][]string

	var visit func(id string)
	visit = func(id string) {
		colors[id] = gray
		stack = append(stack, id)

		for _, dep := range dependsOn[id] {
			switch colors[dep] {
			case white:
				visit(dep)
			case gray:
				// Closed a loop: report the stack segment starting at dep.
				for i, n := range stack {
					if n == dep {
						cycle := make([]string, len(stack)-i)
						copy(cycle, stack[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
	}

	for _, id := range ids {
		if colors[id] == white {
			visit(id)
		}
	}
	return cycles
}

// loadOrder computes a topological order with Kahn's algorithm. Ties are
// broken by sorted id order. Nodes trapped in or behind a cycle never reach
// in-degree zero and are simply left out.
func loadOrder(ids []string, dependsOn, dependents map[string][]string) []string {
	inDegree := make(map[string]int, len(ids))
	for _, id := range ids {
		inDegree[id] = len(dependsOn[id])
	}

	queue := make([]string, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]string, 0, len(ids))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, dependent := range dependents[id] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	return order
}

// CheckDependencies reports whether every non-optional dependency is present
// in available and its installed version satisfies the declared range. An
// empty range accepts any version; a malformed range or version satisfies
// nothing.
func CheckDependencies(deps []plugin.Dependency, available map[string]*plugin.Manifest) bool {
	for _, dep := range deps {
		if dep.Optional {
			continue
		}
		m, ok := available[dep.ID]
		if !ok {
			return false
		}
		if dep.VersionRange == "" {
			continue
		}
		ok, err := version.IsCompatible(m.Version, dep.VersionRange)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

func setToSorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
