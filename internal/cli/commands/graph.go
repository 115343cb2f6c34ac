package commands

import (
	"fmt"
	"strings"

	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the step dependency graph",
		Long: `Show each step's dependencies and the resulting execution order.

Steps always execute strictly one at a time; the graph only determines
the order.`,
		Example: `  # Show the dependency graph
  liftoff graph

  # Graph as JSON
  liftoff graph --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGraph(cmd)
		},
	}

	return cmd
}

func runGraph(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	doc, err := buildGraphOutput(eng)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(doc)
	}
	return graphText(r, doc)
}

func buildGraphOutput(eng *engine.Engine) (*output.GraphOutput, error) {
	graph := eng.GetGraph()

	order, err := graph.Sort()
	if err != nil {
		return nil, fmt.Errorf("failed to sort steps: %w", err)
	}

	doc := &output.GraphOutput{
		Order: order,
		Summary: output.GraphSummary{
			Steps: graph.NodeCount(),
			Edges: graph.EdgeCount(),
			Roots: len(graph.Roots()),
		},
	}
	for _, name := range graph.Nodes() {
		doc.Nodes = append(doc.Nodes, output.GraphNode{
			Name:  name,
			Needs: graph.Needs(name),
		})
	}

	return doc, nil
}

// graphText renders the graph as indented text. Markdown gets the same
// shape; it is already plain.
func graphText(r *output.Renderer, doc *output.GraphOutput) error {
	styles := r.Styles()

	r.Println(styles.Header1.Render("Step dependency graph"))
	for _, node := range doc.Nodes {
		r.Printf("  %s\n", node.Name)
		if len(node.Needs) > 0 {
			r.Printf("    needs: %s\n", styles.Muted.Render(strings.Join(node.Needs, ", ")))
		}
	}

	r.Println("")
	r.Printf("Execution order: %s\n", strings.Join(doc.Order, " -> "))
	r.Printf("Total: %d steps, %d dependencies\n", doc.Summary.Steps, doc.Summary.Edges)

	return nil
}
