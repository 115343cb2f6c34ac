package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/state"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs",
		Long: `Show recent pipeline runs from the state store, newest first,
including each run's steps with status, exit code, and duration.`,
		Example: `  # Show the last 10 runs
  liftoff history

  # Show the last 50 runs as JSON
  liftoff history --limit 50 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of runs to show")

	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cmdCtx.Engine.GetStateStore()
	r := cmdCtx.Renderer

	runs, err := store.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	doc := output.HistoryOutput{Runs: []output.HistoryRun{}}
	for _, run := range runs {
		hr := output.HistoryRun{
			ID:          run.ID,
			Environment: run.Environment,
			Status:      string(run.Status),
			StartedAt:   run.StartedAt.UTC().Format(time.RFC3339),
			Error:       run.Error,
		}
		if run.CompletedAt != nil {
			hr.DurationMS = run.CompletedAt.Sub(run.StartedAt).Milliseconds()
		}

		stepRuns, err := store.GetStepRunsForRun(run.ID)
		if err != nil {
			return fmt.Errorf("failed to load steps for run %s: %w", run.ID, err)
		}
		for _, sr := range stepRuns {
			hr.Steps = append(hr.Steps, output.HistoryStep{
				Name:       sr.Name,
				Kind:       string(sr.Kind),
				Status:     string(sr.Status),
				Args:       sr.Args,
				ExitCode:   sr.ExitCode,
				DurationMS: sr.Duration.Milliseconds(),
				Error:      sr.Error,
			})
		}
		doc.Runs = append(doc.Runs, hr)
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(doc)
	}
	return historyTable(r, doc)
}

// historyTable renders runs as a table, one row per run with a compact
// per-step summary. Markdown mode renders the same table as a markdown
// table.
func historyTable(r *output.Renderer, doc output.HistoryOutput) error {
	if len(doc.Runs) == 0 {
		r.Println("No runs recorded yet. Run 'liftoff build' or 'liftoff up' first.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Writer())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"RUN", "ENV", "STATUS", "STARTED", "DURATION", "STEPS"})

	for _, run := range doc.Runs {
		t.AppendRow(table.Row{
			shortID(run.ID),
			run.Environment,
			run.Status,
			run.StartedAt,
			formatMS(run.DurationMS),
			stepSummary(run.Steps),
		})
	}

	if r.EffectiveMode() == output.ModeMarkdown {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	r.Printf("(%d runs)\n", len(doc.Runs))

	return nil
}

// shortID abbreviates a run UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMS(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).String()
}

// stepSummary compresses a run's steps into "name:status" pairs, with
// failed steps carrying their exit code.
func stepSummary(steps []output.HistoryStep) string {
	out := ""
	for i, s := range steps {
		if i > 0 {
			out += ", "
		}
		out += s.Name + ":" + s.Status
		if s.Status == string(state.StepStatusFailed) && s.ExitCode > 0 {
			out += fmt.Sprintf("(%d)", s.ExitCode)
		}
	}
	return out
}
