package dag

import (
	"testing"
)

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := NewGraph()

	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	// backend needs frontend
	if err := g.AddEdge("frontend", "backend"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}
	// docs needs backend
	if err := g.AddEdge("backend", "docs"); err != nil {
		t.Errorf("failed to add edge: %v", err)
	}

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
}

func TestGraph_AddEdge_UnknownStep(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")

	if err := g.AddEdge("frontend", "nonexistent"); err == nil {
		t.Error("expected error for unknown dependent")
	}
	if err := g.AddEdge("nonexistent", "frontend"); err == nil {
		t.Error("expected error for unknown dependency")
	}
}

func TestGraph_AddEdge_SelfNeed(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")

	if err := g.AddEdge("frontend", "frontend"); err == nil {
		t.Error("expected error for step needing itself")
	}
}

func TestGraph_NeedsAndDependents(t *testing.T) {
	g := NewGraph()
	g.AddNode("assets")
	g.AddNode("frontend")
	g.AddNode("backend")

	// frontend needs assets, backend needs both
	g.AddEdge("assets", "frontend")
	g.AddEdge("assets", "backend")
	g.AddEdge("frontend", "backend")

	needs := g.Needs("backend")
	if len(needs) != 2 {
		t.Errorf("expected backend to need 2 steps, got %d", len(needs))
	}

	dependents := g.Dependents("assets")
	if len(dependents) != 2 {
		t.Errorf("expected assets to have 2 dependents, got %d", len(dependents))
	}
}

func TestGraph_HasCycle_NoCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")

	g.AddEdge("frontend", "backend")
	g.AddEdge("backend", "docs")

	cyclic, path := g.HasCycle()
	if cyclic {
		t.Errorf("expected no cycle, but found: %v", path)
	}
}

func TestGraph_HasCycle_WithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")

	g.AddEdge("frontend", "backend")
	g.AddEdge("backend", "docs")
	g.AddEdge("docs", "frontend") // closes the loop

	cyclic, path := g.HasCycle()
	if !cyclic {
		t.Error("expected cycle to be detected")
	}
	if len(path) == 0 {
		t.Error("expected cycle path to be non-empty")
	}
}

func TestGraph_Sort_Chain(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")

	// backend needs frontend, docs needs backend
	g.AddEdge("frontend", "backend")
	g.AddEdge("backend", "docs")

	order, err := g.Sort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}

	if len(order) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(order))
	}

	positions := make(map[string]int)
	for i, name := range order {
		positions[name] = i
	}

	if positions["frontend"] >= positions["backend"] {
		t.Error("frontend should come before backend")
	}
	if positions["backend"] >= positions["docs"] {
		t.Error("backend should come before docs")
	}
}

func TestGraph_Sort_Diamond(t *testing.T) {
	// Diamond: api and web both need proto, bundle needs both
	g := NewGraph()
	g.AddNode("proto")
	g.AddNode("api")
	g.AddNode("web")
	g.AddNode("bundle")

	g.AddEdge("proto", "api")
	g.AddEdge("proto", "web")
	g.AddEdge("api", "bundle")
	g.AddEdge("web", "bundle")

	order, err := g.Sort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}

	positions := make(map[string]int)
	for i, name := range order {
		positions[name] = i
	}

	if positions["proto"] != 0 {
		t.Error("proto should be first")
	}
	if positions["bundle"] != 3 {
		t.Error("bundle should be last")
	}
}

func TestGraph_Sort_Deterministic(t *testing.T) {
	build := func() *Graph {
		g := NewGraph()
		g.AddNode("zeta")
		g.AddNode("alpha")
		g.AddNode("mid")
		g.AddEdge("alpha", "mid")
		return g
	}

	first, err := build().Sort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := build().Sort()
		if err != nil {
			t.Fatalf("failed to sort: %v", err)
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("order changed between runs: %v vs %v", first, again)
			}
		}
	}
}

func TestGraph_Sort_WithCycle(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")

	g.AddEdge("frontend", "backend")
	g.AddEdge("backend", "frontend")

	if _, err := g.Sort(); err == nil {
		t.Error("expected error for cyclic graph")
	}
}

func TestGraph_Affected(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")
	g.AddNode("tools")

	// backend needs frontend, docs needs backend, tools is independent
	g.AddEdge("frontend", "backend")
	g.AddEdge("backend", "docs")

	affected := g.Affected([]string{"frontend"})
	if len(affected) != 3 {
		t.Errorf("expected 3 affected steps, got %d: %v", len(affected), affected)
	}

	set := make(map[string]bool)
	for _, name := range affected {
		set[name] = true
	}
	if !set["frontend"] || !set["backend"] || !set["docs"] {
		t.Error("expected frontend, backend, docs to be affected")
	}
	if set["tools"] {
		t.Error("tools should not be affected")
	}
}

func TestGraph_Affected_UnknownIgnored(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")

	affected := g.Affected([]string{"frontend", "ghost"})
	if len(affected) != 1 || affected[0] != "frontend" {
		t.Errorf("expected only frontend, got %v", affected)
	}
}

func TestGraph_Roots(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")

	g.AddEdge("frontend", "docs")
	g.AddEdge("backend", "docs")

	roots := g.Roots()
	if len(roots) != 2 {
		t.Errorf("expected 2 roots, got %d", len(roots))
	}
}

func TestGraph_Subgraph(t *testing.T) {
	g := NewGraph()
	g.AddNode("assets")
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("docs")

	g.AddEdge("assets", "frontend")
	g.AddEdge("frontend", "backend")
	g.AddEdge("backend", "docs")

	sub := g.Subgraph([]string{"frontend", "backend"})

	if sub.NodeCount() != 2 {
		t.Errorf("expected 2 nodes, got %d", sub.NodeCount())
	}
	if sub.EdgeCount() != 1 {
		t.Errorf("expected 1 edge, got %d", sub.EdgeCount())
	}

	dependents := sub.Dependents("frontend")
	if len(dependents) != 1 || dependents[0] != "backend" {
		t.Error("expected edge from frontend to backend")
	}
}

func TestGraph_DisconnectedComponents(t *testing.T) {
	g := NewGraph()
	// Two independent chains
	g.AddNode("frontend")
	g.AddNode("backend")
	g.AddNode("cli")
	g.AddNode("docs")

	g.AddEdge("frontend", "backend")
	g.AddEdge("cli", "docs")

	order, err := g.Sort()
	if err != nil {
		t.Fatalf("failed to sort: %v", err)
	}
	if len(order) != 4 {
		t.Errorf("expected 4 steps, got %d", len(order))
	}

	positions := make(map[string]int)
	for i, name := range order {
		positions[name] = i
	}
	if positions["frontend"] >= positions["backend"] {
		t.Error("frontend should come before backend")
	}
	if positions["cli"] >= positions["docs"] {
		t.Error("cli should come before docs")
	}
}

func TestGraph_DuplicateEdges(t *testing.T) {
	g := NewGraph()
	g.AddNode("frontend")
	g.AddNode("backend")

	g.AddEdge("frontend", "backend")
	g.AddEdge("frontend", "backend")

	if g.EdgeCount() != 1 {
		t.Errorf("expected 1 edge (no duplicates), got %d", g.EdgeCount())
	}
}
