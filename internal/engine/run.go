package engine

// run.go - pipeline orchestration for build runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liftoff-dev/liftoff/internal/state"
)

// Event names streamed during a run, in execution order: run_start, then
// a step_start/step_complete pair per step, then run_complete.
const (
	EventRunStart     = "run_start"
	EventStepStart    = "step_start"
	EventStepComplete = "step_complete"
	EventRunComplete  = "run_complete"
)

// RunEvent describes one moment of run progress.
type RunEvent struct {
	Event     string   `json:"event"`
	Timestamp string   `json:"timestamp"`
	RunID     string   `json:"run_id,omitempty"`
	Steps     []string `json:"steps,omitempty"`
	Step      string   `json:"step,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Status    string   `json:"status,omitempty"`
	Args      []string `json:"args,omitempty"`
	ExitCode  int      `json:"exit_code,omitempty"`

	// DurationMS is set on step_complete.
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`

	// run_complete totals
	TotalSteps int   `json:"total_steps,omitempty"`
	Successful int   `json:"successful,omitempty"`
	Failed     int   `json:"failed,omitempty"`
	Skipped    int   `json:"skipped,omitempty"`
	TotalMS    int64 `json:"total_ms,omitempty"`
}

// RunOptions controls a single pipeline run.
type RunOptions struct {
	// Args are forwarded verbatim to every build entrypoint.
	Args []string
	// Only limits the run to the named steps.
	Only []string
	// Downstream additionally includes transitive dependents of Only.
	Downstream bool
	// KeepGoing continues independent steps after a failure instead of
	// skipping everything that remains.
	KeepGoing bool
	// Launch executes the launch target once all steps succeed.
	Launch bool
	// Events receives progress events when non-nil.
	Events func(RunEvent)
}

// plannedStep holds a step with its pending history record.
type plannedStep struct {
	step    Step
	stepRun *state.StepRun
}

// runTotals accumulates per-status counts for the run summary.
type runTotals struct {
	successful int
	failed     int
	skipped    int
}

// Run executes the pipeline in dependency order. Each step's entrypoint
// receives opts.Args verbatim. The first failure skips every remaining
// step unless opts.KeepGoing is set, in which case only steps downstream
// of a failure are skipped. With opts.Launch the launch target runs once
// after the build, with its own configured arguments only.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*state.Run, error) {
	e.logger.Info("starting run", "environment", e.environment, "args", opts.Args)

	if opts.Launch && e.launch == nil {
		return nil, fmt.Errorf("no launch target configured")
	}

	order, err := e.planOrder(opts)
	if err != nil {
		return nil, err
	}

	run, err := e.store.CreateRun(e.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	e.logger.Debug("created run", "run_id", run.ID, "steps", order)

	events := func(ev RunEvent) {
		ev.RunID = run.ID
		emit(opts.Events, ev)
	}
	events(RunEvent{Event: EventRunStart, Steps: order, Args: opts.Args})

	planned, launchRun, err := e.recordPending(run.ID, order, opts)
	if err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
		run, _ = e.store.GetRun(run.ID)
		return run, err
	}

	start := time.Now()
	var totals runTotals

	runErr := e.executeSteps(ctx, opts, planned, &totals, events)

	if launchRun != nil {
		if runErr != nil {
			msg := "skipped: build failed"
			_ = e.store.FinishStepRun(launchRun.ID, state.StepStatusSkipped, 0, msg)
			totals.skipped++
			events(RunEvent{Event: EventStepComplete, Step: launchStepName, Kind: string(state.StepKindLaunch),
				Status: string(state.StepStatusSkipped), Error: msg})
		} else if launchErr := e.runLaunchStep(ctx, launchRun, &totals, events); launchErr != nil {
			runErr = launchErr
		}
	}

	if runErr != nil {
		e.logger.Info("run failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		e.logger.Info("run completed", "run_id", run.ID,
			"successful", totals.successful, "skipped", totals.skipped)
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	ev := RunEvent{
		Event:      EventRunComplete,
		TotalSteps: totals.successful + totals.failed + totals.skipped,
		Successful: totals.successful,
		Failed:     totals.failed,
		Skipped:    totals.skipped,
		TotalMS:    time.Since(start).Milliseconds(),
	}
	if runErr != nil {
		ev.Status = string(state.RunStatusFailed)
		ev.Error = runErr.Error()
	} else {
		ev.Status = string(state.RunStatusCompleted)
	}
	events(ev)

	run, _ = e.store.GetRun(run.ID)
	return run, runErr
}

// planOrder resolves the execution order for this run, honoring the
// Only/Downstream selection.
func (e *Engine) planOrder(opts RunOptions) ([]string, error) {
	if len(opts.Only) == 0 {
		return e.graph.Sort()
	}

	for _, name := range opts.Only {
		if !e.graph.HasNode(name) {
			return nil, fmt.Errorf("unknown step %q", name)
		}
	}

	selected := opts.Only
	if opts.Downstream {
		selected = e.graph.Affected(opts.Only)
	}

	return e.graph.Subgraph(selected).Sort()
}

// recordPending registers a pending history row for every planned step,
// plus one for the launch target when requested.
func (e *Engine) recordPending(runID string, order []string, opts RunOptions) ([]plannedStep, *state.StepRun, error) {
	planned := make([]plannedStep, 0, len(order))
	for _, name := range order {
		sr, err := e.store.RecordStepRun(runID, name, state.StepKindBuild, opts.Args)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to record step %s: %w", name, err)
		}
		planned = append(planned, plannedStep{step: e.steps[name], stepRun: sr})
	}

	var launchRun *state.StepRun
	if opts.Launch {
		sr, err := e.store.RecordStepRun(runID, launchStepName, state.StepKindLaunch, e.launch.Args)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to record launch step: %w", err)
		}
		launchRun = sr
	}

	return planned, launchRun, nil
}

// executeSteps runs all planned steps in order.
func (e *Engine) executeSteps(ctx context.Context, opts RunOptions, planned []plannedStep, totals *runTotals, events func(RunEvent)) error {
	var failures []error
	blocked := make(map[string]string) // step -> failed step it descends from

	for i, p := range planned {
		if origin := e.blockedBy(p.step, blocked); origin != "" {
			blocked[p.step.Name] = origin
			e.skipStep(p, origin, totals, events)
			continue
		}

		_ = e.store.StartStepRun(p.stepRun.ID)
		events(RunEvent{Event: EventStepStart, Step: p.step.Name, Kind: string(state.StepKindBuild), Args: opts.Args})
		e.logger.Info("building step", "step", p.step.Name, "dir", p.step.Dir, "args", opts.Args)

		start := time.Now()
		err := e.execCommand(ctx, command{
			step: p.step.Name,
			bin:  resolveEntrypoint(p.step.Entrypoint, p.step.Dir),
			args: opts.Args,
			dir:  p.step.Dir,
		})
		executionMS := time.Since(start).Milliseconds()

		if err != nil {
			exitCode := -1
			var stepErr *StepError
			if errors.As(err, &stepErr) {
				exitCode = stepErr.ExitCode
			}

			e.logger.Error("step failed", "step", p.step.Name, "exit_code", exitCode, "exec_ms", executionMS)
			_ = e.store.FinishStepRun(p.stepRun.ID, state.StepStatusFailed, exitCode, err.Error())
			totals.failed++
			blocked[p.step.Name] = p.step.Name
			failures = append(failures, err)
			events(RunEvent{Event: EventStepComplete, Step: p.step.Name, Kind: string(state.StepKindBuild),
				Status: string(state.StepStatusFailed), ExitCode: exitCode, DurationMS: executionMS, Error: err.Error()})

			if opts.KeepGoing {
				continue
			}

			// Mark remaining steps as skipped
			for j := i + 1; j < len(planned); j++ {
				e.skipStep(planned[j], p.step.Name, totals, events)
			}

			return err
		}

		e.logger.Info("step succeeded", "step", p.step.Name, "exec_ms", executionMS)
		_ = e.store.FinishStepRun(p.stepRun.ID, state.StepStatusSuccess, 0, "")
		totals.successful++
		events(RunEvent{Event: EventStepComplete, Step: p.step.Name, Kind: string(state.StepKindBuild),
			Status: string(state.StepStatusSuccess), DurationMS: executionMS})
	}

	if len(failures) == 1 {
		return failures[0]
	}
	return errors.Join(failures...)
}

// skipStep records p as skipped because the named upstream step failed.
func (e *Engine) skipStep(p plannedStep, failedStep string, totals *runTotals, events func(RunEvent)) {
	msg := fmt.Sprintf("skipped: upstream step %s failed", failedStep)
	_ = e.store.FinishStepRun(p.stepRun.ID, state.StepStatusSkipped, 0, msg)
	totals.skipped++
	events(RunEvent{Event: EventStepComplete, Step: p.step.Name, Kind: string(state.StepKindBuild),
		Status: string(state.StepStatusSkipped), Error: msg})
}

// blockedBy returns the failed step s descends from, or "" when every
// need completed. Skipped steps propagate their origin, so transitive
// dependents resolve to the step that actually failed.
func (e *Engine) blockedBy(s Step, blocked map[string]string) string {
	for _, need := range e.graph.Needs(s.Name) {
		if origin, ok := blocked[need]; ok {
			return origin
		}
	}
	return ""
}

// emit delivers ev to the sink, stamping the time.
func emit(sink func(RunEvent), ev RunEvent) {
	if sink == nil {
		return
	}
	ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	sink(ev)
}
