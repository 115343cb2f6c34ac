package engine

// launch.go - execution and supervision of the launch target

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/liftoff-dev/liftoff/internal/state"
)

// launchStepName is the history name for the launch step.
const launchStepName = "launch"

// defaultStopGrace is how long a launch target gets to exit after
// SIGTERM before the process group is killed.
const defaultStopGrace = 5 * time.Second

// Launch executes the launch target in the foreground without building
// anything first, recording a run with a single launch step. The call
// blocks until the target exits or ctx is cancelled.
func (e *Engine) Launch(ctx context.Context, events func(RunEvent)) (*state.Run, error) {
	if e.launch == nil {
		return nil, fmt.Errorf("no launch target configured")
	}

	e.logger.Info("starting launch-only run", "environment", e.environment)

	run, err := e.store.CreateRun(e.environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	wrapped := func(ev RunEvent) {
		ev.RunID = run.ID
		emit(events, ev)
	}
	wrapped(RunEvent{Event: EventRunStart, Steps: []string{launchStepName}})

	launchRun, err := e.store.RecordStepRun(run.ID, launchStepName, state.StepKindLaunch, e.launch.Args)
	if err != nil {
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, err.Error())
		run, _ = e.store.GetRun(run.ID)
		return run, fmt.Errorf("failed to record launch step: %w", err)
	}

	var totals runTotals
	runErr := e.runLaunchStep(ctx, launchRun, &totals, wrapped)

	if runErr != nil {
		e.logger.Info("launch failed", "run_id", run.ID, "error", runErr.Error())
		_ = e.store.CompleteRun(run.ID, state.RunStatusFailed, runErr.Error())
	} else {
		e.logger.Info("launch completed", "run_id", run.ID)
		_ = e.store.CompleteRun(run.ID, state.RunStatusCompleted, "")
	}

	run, _ = e.store.GetRun(run.ID)
	return run, runErr
}

// runLaunchStep executes the launch target in the foreground and records
// the outcome under the given pending step row.
func (e *Engine) runLaunchStep(ctx context.Context, launchRun *state.StepRun, totals *runTotals, events func(RunEvent)) error {
	_ = e.store.StartStepRun(launchRun.ID)
	events(RunEvent{Event: EventStepStart, Step: launchStepName, Kind: string(state.StepKindLaunch), Args: e.launch.Args})

	bin, args, err := e.launchCommand()
	if err != nil {
		_ = e.store.FinishStepRun(launchRun.ID, state.StepStatusFailed, -1, err.Error())
		totals.failed++
		events(RunEvent{Event: EventStepComplete, Step: launchStepName, Kind: string(state.StepKindLaunch),
			Status: string(state.StepStatusFailed), ExitCode: -1, Error: err.Error()})
		return err
	}

	e.logLaunch(bin, args)

	start := time.Now()
	err = e.execCommand(ctx, command{
		step:      launchStepName,
		bin:       bin,
		args:      args,
		dir:       e.launch.Dir,
		stdin:     e.stdin,
		stopGrace: defaultStopGrace,
	})
	executionMS := time.Since(start).Milliseconds()

	if err != nil {
		exitCode := -1
		var stepErr *StepError
		if errors.As(err, &stepErr) {
			exitCode = stepErr.ExitCode
		}

		e.logger.Error("launch target failed", "target", e.launch.Target, "exit_code", exitCode)
		_ = e.store.FinishStepRun(launchRun.ID, state.StepStatusFailed, exitCode, err.Error())
		totals.failed++
		events(RunEvent{Event: EventStepComplete, Step: launchStepName, Kind: string(state.StepKindLaunch),
			Status: string(state.StepStatusFailed), ExitCode: exitCode, DurationMS: executionMS, Error: err.Error()})
		return err
	}

	_ = e.store.FinishStepRun(launchRun.ID, state.StepStatusSuccess, 0, "")
	totals.successful++
	events(RunEvent{Event: EventStepComplete, Step: launchStepName, Kind: string(state.StepKindLaunch),
		Status: string(state.StepStatusSuccess), DurationMS: executionMS})
	return nil
}

// launchCommand resolves the argv for the launch target, prefixing sudo
// when elevation is enabled. Elevation is never implied; it only
// happens when explicitly configured.
func (e *Engine) launchCommand() (string, []string, error) {
	l := e.launch
	if !l.Elevate {
		return l.Target, l.Args, nil
	}

	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return "", nil, fmt.Errorf("elevation requested but sudo not found: %w", err)
	}

	args := append([]string{"--", l.Target}, l.Args...)
	return sudo, args, nil
}

// logLaunch records the exact argv about to run. Elevated launches are
// always called out explicitly.
func (e *Engine) logLaunch(bin string, args []string) {
	argv := strings.Join(append([]string{bin}, args...), " ")
	if e.launch.Elevate {
		e.logger.Info("launching with elevated privileges", "command", argv)
	} else {
		e.logger.Info("launching", "command", argv)
	}
}

// Supervisor keeps the launch target running across rebuilds. Start and
// Stop may be called repeatedly; Stop delivers SIGTERM to the target's
// process group and escalates to SIGKILL after a grace period.
type Supervisor struct {
	engine *Engine

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
}

// NewSupervisor creates a supervisor for the engine's launch target.
func NewSupervisor(e *Engine) *Supervisor {
	return &Supervisor{engine: e}
}

// Start launches the target without waiting for it to exit. A target
// already running is stopped first.
func (s *Supervisor) Start(ctx context.Context) error {
	if s.engine.launch == nil {
		return fmt.Errorf("no launch target configured")
	}

	if err := s.Stop(); err != nil {
		return err
	}

	bin, args, err := s.engine.launchCommand()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := exec.Command(bin, args...)
	cmd.Dir = s.engine.launch.Dir
	cmd.Stdout = s.engine.stdout
	cmd.Stderr = s.engine.stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	s.engine.logLaunch(bin, args)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", bin, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
		close(done)
	}()

	s.cmd = cmd
	s.done = done

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-done:
		}
	}()

	return nil
}

// Stop terminates the running target, if any, and waits for it to exit.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd, s.done = nil, nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	s.engine.logger.Debug("stopping launch target", "pid", cmd.Process.Pid)
	killProcessGroup(cmd.Process.Pid, syscall.SIGTERM)

	select {
	case <-done:
	case <-time.After(defaultStopGrace):
		s.engine.logger.Warn("launch target did not stop in time, killing", "pid", cmd.Process.Pid)
		killProcessGroup(cmd.Process.Pid, syscall.SIGKILL)
		<-done
	}

	return nil
}

// Running reports whether the target is currently alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}
