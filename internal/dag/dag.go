// Package dag orders pipeline steps by their declared dependencies.
// It supports cycle detection, deterministic topological sorting, and
// downstream-impact queries for watch mode.
package dag

import (
	"fmt"
	"sort"
)

// Graph is a directed acyclic graph of step names. An edge from a to b
// means b needs a, so a must run first.
type Graph struct {
	nodes      map[string]bool
	dependents map[string][]string // step -> steps that need it
	needs      map[string][]string // step -> steps it needs
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:      make(map[string]bool),
		dependents: make(map[string][]string),
		needs:      make(map[string][]string),
	}
}

// AddNode registers a step name. Adding the same name twice is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodes[name] {
		return
	}
	g.nodes[name] = true
	g.dependents[name] = []string{}
	g.needs[name] = []string{}
}

// AddEdge records that dependent needs dep. Both steps must already be
// registered, and a step cannot need itself.
func (g *Graph) AddEdge(dep, dependent string) error {
	if !g.nodes[dep] {
		return fmt.Errorf("unknown step %q", dep)
	}
	if !g.nodes[dependent] {
		return fmt.Errorf("unknown step %q", dependent)
	}
	if dep == dependent {
		return fmt.Errorf("step %q cannot need itself", dep)
	}

	if !contains(g.dependents[dep], dependent) {
		g.dependents[dep] = append(g.dependents[dep], dependent)
	}
	if !contains(g.needs[dependent], dep) {
		g.needs[dependent] = append(g.needs[dependent], dep)
	}
	return nil
}

// HasNode reports whether the step is registered.
func (g *Graph) HasNode(name string) bool {
	return g.nodes[name]
}

// Nodes returns all step names in lexical order.
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeCount returns the number of steps.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of need edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, deps := range g.needs {
		count += len(deps)
	}
	return count
}

// Needs returns the steps the given step needs, sorted.
func (g *Graph) Needs(name string) []string {
	out := append([]string(nil), g.needs[name]...)
	sort.Strings(out)
	return out
}

// Dependents returns the steps that need the given step, sorted.
func (g *Graph) Dependents(name string) []string {
	out := append([]string(nil), g.dependents[name]...)
	sort.Strings(out)
	return out
}

// HasCycle reports whether the graph contains a cycle, along with one
// cycle path for error reporting.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cyclePath []string

	var dfs func(name string) bool
	dfs = func(name string) bool {
		visited[name] = true
		onStack[name] = true

		for _, next := range g.dependents[name] {
			if !visited[next] {
				cameFrom[next] = name
				if dfs(next) {
					return true
				}
			} else if onStack[next] {
				cyclePath = []string{next}
				for curr := name; curr != next; curr = cameFrom[curr] {
					cyclePath = append([]string{curr}, cyclePath...)
				}
				cyclePath = append([]string{next}, cyclePath...)
				return true
			}
		}

		onStack[name] = false
		return false
	}

	for _, name := range g.Nodes() {
		if !visited[name] {
			if dfs(name) {
				return true, cyclePath
			}
		}
	}
	return false, nil
}

// Sort returns step names in execution order: every step appears after
// everything it needs. Ties break lexically, so the order is stable
// across runs. Returns an error if the graph contains a cycle.
func (g *Graph) Sort() ([]string, error) {
	if cyclic, path := g.HasCycle(); cyclic {
		return nil, fmt.Errorf("dependency cycle: %v", path)
	}

	visited := make(map[string]bool)
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, dep := range g.Needs(name) {
			visit(dep)
		}
		order = append(order, name)
	}

	for _, name := range g.Nodes() {
		visit(name)
	}
	return order, nil
}

// Affected returns the changed steps plus every transitive dependent,
// sorted. Unknown names are ignored.
func (g *Graph) Affected(changed []string) []string {
	affected := make(map[string]bool)

	var mark func(name string)
	mark = func(name string) {
		if affected[name] {
			return
		}
		affected[name] = true
		for _, next := range g.dependents[name] {
			mark(next)
		}
	}

	for _, name := range changed {
		if g.nodes[name] {
			mark(name)
		}
	}

	out := make([]string, 0, len(affected))
	for name := range affected {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Roots returns steps that need nothing, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for name := range g.nodes {
		if len(g.needs[name]) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Subgraph returns a new graph limited to the given steps, keeping only
// edges between included steps.
func (g *Graph) Subgraph(names []string) *Graph {
	sub := NewGraph()
	included := make(map[string]bool)

	for _, name := range names {
		if g.nodes[name] {
			included[name] = true
			sub.AddNode(name)
		}
	}

	for name := range included {
		for _, next := range g.dependents[name] {
			if included[next] {
				_ = sub.AddEdge(name, next)
			}
		}
	}
	return sub
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
