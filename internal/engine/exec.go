package engine

// exec.go - subprocess execution for build entrypoints and the launch target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// StepError reports a step whose command exited with a non-zero status.
// The exit code is carried so the orchestrator's own exit status can
// mirror the failing command.
type StepError struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *StepError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("step %s failed with exit code %d", e.Step, e.ExitCode)
	}
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// command bundles everything needed to execute one subprocess.
type command struct {
	step string
	bin  string
	args []string
	dir  string

	// stdin is attached to the child, nil for no input.
	stdin io.Reader
	// stopGrace, when positive, delivers SIGTERM on cancellation and
	// waits this long before escalating to SIGKILL. Zero kills the
	// process group immediately.
	stopGrace time.Duration
}

// resolveEntrypoint makes a step entrypoint absolute. Relative
// entrypoints resolve against the step directory; exec would otherwise
// look them up against the orchestrator's working directory, which
// never changes.
func resolveEntrypoint(entry, dir string) string {
	if filepath.IsAbs(entry) {
		return entry
	}
	return filepath.Join(dir, entry)
}

// execCommand runs a subprocess in its own process group and waits for
// it. The child inherits the orchestrator's environment unmodified and
// runs with c.dir as its working directory. On context cancellation the
// whole process group is terminated.
func (e *Engine) execCommand(ctx context.Context, c command) error {
	cmd := exec.Command(c.bin, c.args...)
	cmd.Dir = c.dir
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmd.Stdin = c.stdin

	// Own process group so cancellation reaches the entire process tree,
	// not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", c.bin, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		e.stopProcessGroup(cmd.Process.Pid, c.stopGrace, done)
		return fmt.Errorf("cancelled: %w", ctx.Err())
	case err = <-done:
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &StepError{Step: c.step, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return fmt.Errorf("failed to execute %s: %w", c.bin, err)
	}

	return nil
}

// stopProcessGroup terminates pid's process group. With a grace period
// the group first receives SIGTERM and is only killed once the period
// elapses without the process exiting.
func (e *Engine) stopProcessGroup(pid int, grace time.Duration, done <-chan error) {
	if grace <= 0 {
		killProcessGroup(pid, syscall.SIGKILL)
		<-done
		return
	}

	killProcessGroup(pid, syscall.SIGTERM)
	select {
	case <-done:
	case <-time.After(grace):
		e.logger.Warn("process did not stop in time, killing", "pid", pid)
		killProcessGroup(pid, syscall.SIGKILL)
		<-done
	}
}

// killProcessGroup delivers sig to every process in pid's group.
func killProcessGroup(pid int, sig syscall.Signal) {
	_ = syscall.Kill(-pid, sig)
}
