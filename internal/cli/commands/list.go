package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/liftoff-dev/liftoff/internal/state"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the resolved pipeline steps",
		Long: `List every resolved build step in execution order, with its directory,
entrypoint, dependencies, and the status of its most recent run.

Output adapts to environment:
  - Terminal: Styled, colored output
  - Piped/Scripted: Markdown format

Use --output to override: auto, text, markdown, json`,
		Example: `  # List the pipeline (auto-detect output format)
  liftoff list

  # List steps as JSON
  liftoff list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	doc, err := buildListOutput(eng)
	if err != nil {
		return err
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(doc)
	case output.ModeMarkdown:
		return listMarkdown(r, doc)
	default:
		return listText(r, doc, eng.GetProjectRoot())
	}
}

// buildListOutput resolves the pipeline in execution order and joins in
// each step's most recent result.
func buildListOutput(eng *engine.Engine) (*output.ListOutput, error) {
	graph := eng.GetGraph()

	order, err := graph.Sort()
	if err != nil {
		return nil, fmt.Errorf("failed to sort steps: %w", err)
	}

	lastStatus := lastStepResults(eng)

	doc := &output.ListOutput{
		Summary: output.ListSummary{
			Steps: graph.NodeCount(),
			Edges: graph.EdgeCount(),
		},
	}

	for _, name := range order {
		step, ok := eng.GetStep(name)
		if !ok {
			continue
		}
		info := output.StepInfo{
			Name:       step.Name,
			Dir:        step.Dir,
			Entrypoint: step.Entrypoint,
			Needs:      step.Needs,
		}
		if sr, ok := lastStatus[name]; ok {
			info.LastStatus = string(sr.Status)
			info.LastMS = sr.Duration.Milliseconds()
		}
		doc.Steps = append(doc.Steps, info)
	}

	if launch := eng.GetLaunch(); launch != nil {
		doc.Launch = &output.LaunchInfo{
			Target:  launch.Target,
			Args:    launch.Args,
			Dir:     launch.Dir,
			Elevate: launch.Elevate,
		}
	}

	return doc, nil
}

// lastStepResults returns the step runs of the latest run in the active
// environment, keyed by step name. Missing history yields an empty map.
func lastStepResults(eng *engine.Engine) map[string]*state.StepRun {
	results := make(map[string]*state.StepRun)

	run, err := eng.GetStateStore().GetLatestRun(eng.GetEnvironment())
	if err != nil || run == nil {
		return results
	}

	stepRuns, err := eng.GetStateStore().GetStepRunsForRun(run.ID)
	if err != nil {
		return results
	}
	for _, sr := range stepRuns {
		results[sr.Name] = sr
	}
	return results
}

// listText outputs the pipeline in styled text format.
func listText(r *output.Renderer, doc *output.ListOutput, projectRoot string) error {
	styles := r.Styles()

	r.Println(styles.Header1.Render(fmt.Sprintf("Pipeline (%d steps)", doc.Summary.Steps)))

	for i, step := range doc.Steps {
		dir := step.Dir
		if rel, err := filepath.Rel(projectRoot, dir); err == nil && !strings.HasPrefix(rel, "..") {
			dir = rel
		}

		line := fmt.Sprintf("  %2d. %-12s %s", i+1, step.Name, styles.Muted.Render(dir+"/"+filepath.Base(step.Entrypoint)))
		if len(step.Needs) > 0 {
			line += styles.Muted.Render(" <- " + strings.Join(step.Needs, ", "))
		}
		r.Println(line)

		if step.LastStatus != "" {
			detail := ""
			if step.LastMS > 0 {
				detail = (time.Duration(step.LastMS) * time.Millisecond).String()
			}
			r.StatusLine("last run: "+step.LastStatus, step.LastStatus, detail)
		}
	}

	if doc.Launch != nil {
		r.Println("")
		r.Println(styles.Header2.Render("Launch target"))
		elevated := ""
		if doc.Launch.Elevate {
			elevated = " " + styles.Warning.Render("[elevated]")
		}
		r.Printf("  %s%s\n", doc.Launch.Target, elevated)
	}

	return nil
}

// listMarkdown outputs the pipeline in markdown format.
func listMarkdown(r *output.Renderer, doc *output.ListOutput) error {
	r.Println(output.FormatHeader(1, fmt.Sprintf("Pipeline (%d steps)", doc.Summary.Steps)))
	r.Println("")

	for _, step := range doc.Steps {
		detail := step.Dir + " " + step.Entrypoint
		if len(step.Needs) > 0 {
			detail += " (needs: " + strings.Join(step.Needs, ", ") + ")"
		}
		if step.LastStatus != "" {
			detail += ", last run " + step.LastStatus
		}
		r.Println(output.FormatKeyValue(step.Name, detail))
	}

	if doc.Launch != nil {
		r.Println("")
		r.Println(output.FormatHeader(2, "Launch target"))
		detail := doc.Launch.Target
		if doc.Launch.Elevate {
			detail += " (elevated)"
		}
		r.Println(output.FormatKeyValue("target", detail))
	}

	return nil
}
