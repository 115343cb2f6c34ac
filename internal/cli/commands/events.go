package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/liftoff-dev/liftoff/internal/state"
)

// textRunEvents renders run progress as human-readable status lines in
// a fixed order: one "Building <step>..." line per step, a completion
// line once every build finished, then the launch line when a target
// starts. target names the launch binary for the launch line.
func textRunEvents(r *output.Renderer, target string) func(engine.RunEvent) {
	sawBuild := false
	sawLaunch := false

	return func(ev engine.RunEvent) {
		switch ev.Event {
		case engine.EventRunStart:
			sawBuild = false
			sawLaunch = false

		case engine.EventStepStart:
			if ev.Kind == string(state.StepKindLaunch) {
				sawLaunch = true
				if sawBuild {
					r.Success("Build complete")
				}
				r.Printf("Launching %s...\n", target)
				return
			}
			sawBuild = true
			r.Printf("Building %s...\n", ev.Step)

		case engine.EventStepComplete:
			detail := ""
			if ev.DurationMS > 0 {
				detail = (time.Duration(ev.DurationMS) * time.Millisecond).String()
			}
			if ev.Status == string(state.StepStatusFailed) {
				if ev.Error != "" {
					detail = ev.Error
				}
				r.StatusLine(ev.Step, ev.Status, detail)
				return
			}
			if ev.Status == string(state.StepStatusSkipped) {
				r.StatusLine(ev.Step, ev.Status, ev.Error)
				return
			}
			r.StatusLine(ev.Step, ev.Status, detail)

		case engine.EventRunComplete:
			if ev.Status == string(state.RunStatusFailed) {
				r.Error(fmt.Sprintf("Run failed: %d failed, %d skipped of %d steps",
					ev.Failed, ev.Skipped, ev.TotalSteps))
				return
			}
			if sawLaunch {
				r.Success(fmt.Sprintf("Run complete (%d steps in %s)",
					ev.TotalSteps, (time.Duration(ev.TotalMS) * time.Millisecond).String()))
				return
			}
			r.Success(fmt.Sprintf("Build complete (%d steps in %s)",
				ev.TotalSteps, (time.Duration(ev.TotalMS) * time.Millisecond).String()))
		}
	}
}

// jsonRunEvents streams run progress as one JSON document per line,
// suitable for CI consumption.
func jsonRunEvents(w io.Writer) func(engine.RunEvent) {
	enc := json.NewEncoder(w)
	return func(ev engine.RunEvent) {
		_ = enc.Encode(toOutputEvent(ev))
	}
}

// toOutputEvent maps an engine event onto the public output payload.
func toOutputEvent(ev engine.RunEvent) output.RunEvent {
	return output.RunEvent{
		Event:      ev.Event,
		Timestamp:  ev.Timestamp,
		RunID:      ev.RunID,
		Steps:      ev.Steps,
		Step:       ev.Step,
		Kind:       ev.Kind,
		Status:     ev.Status,
		Args:       ev.Args,
		ExitCode:   ev.ExitCode,
		DurationMS: ev.DurationMS,
		Error:      ev.Error,
		TotalSteps: ev.TotalSteps,
		Successful: ev.Successful,
		Failed:     ev.Failed,
		Skipped:    ev.Skipped,
		TotalMS:    ev.TotalMS,
	}
}
