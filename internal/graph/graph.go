// Package graph orders named nodes by their dependencies.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrCycle   = errors.New("dependency cycle")
	ErrUnknown = errors.New("unknown dependency")
)

// TopoSort orders nodes so that every node comes after all of its
// dependencies. Among nodes that are ready at the same time, the one listed
// first in `nodes` wins, so the result is deterministic.
func TopoSort(nodes []string, deps map[string][]string) ([]string, error) {
	index := make(map[string]int, len(nodes))
	for i, name := range nodes {
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("duplicate node %q", name)
		}
		index[name] = i
	}

	dependents := make(map[string][]string) // node -> nodes that depend on it
	inDegree := make(map[string]int)        // node -> dependency count

	for _, name := range nodes {
		seen := make(map[string]bool)
		for _, dep := range deps[name] {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("%w: %q depends on %q", ErrUnknown, name, dep)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	var ready []string
	for _, name := range nodes {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	sorted := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		u := ready[0]
		ready = ready[1:]
		sorted = append(sorted, u)

		for _, v := range dependents[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				ready = append(ready, v)
			}
		}
		slices.SortFunc(ready, func(a, b string) int { return index[a] - index[b] })
	}

	// check cycles
	if len(sorted) != len(nodes) {
		var cycleNodes []string
		for _, name := range nodes {
			if inDegree[name] > 0 {
				cycleNodes = append(cycleNodes, name)
			}
		}
		return nil, fmt.Errorf("%w between %s", ErrCycle, strings.Join(cycleNodes, ", "))
	}

	return sorted, nil
}

// Closure returns `roots` plus everything they transitively depend on, in the
// order given by `nodes`.
func Closure(nodes []string, deps map[string][]string, roots ...string) []string {
	want := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if want[name] {
			return
		}
		want[name] = true
		for _, dep := range deps[name] {
			visit(dep)
		}
	}
	for _, r := range roots {
		visit(r)
	}

	var out []string
	for _, name := range nodes {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}
