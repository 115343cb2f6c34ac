package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liftoff-dev/liftoff/internal/state"
)

// launchProject extends the two-step pipeline with a server binary that
// records its invocation like the build scripts do.
func launchProject(t *testing.T) (Config, string) {
	t.Helper()

	cfg, callLog := twoStepProject(t)
	target := filepath.Join(cfg.ProjectRoot, "target", "release", "server")
	writeScript(t, target, fmt.Sprintf(`echo "server|$(pwd)|$*" >> %q`, callLog))

	cfg.Launch = &LaunchSpec{
		Target: target,
		Dir:    cfg.ProjectRoot,
	}
	return cfg, callLog
}

func TestRun_WithLaunch(t *testing.T) {
	cfg, callLog := launchProject(t)
	e := newTestEngine(t, cfg)

	run, err := e.Run(context.Background(), RunOptions{Args: []string{"--release"}, Launch: true})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if run.Status != state.RunStatusCompleted {
		t.Errorf("run status = %q, want completed", run.Status)
	}

	calls := readCalls(t, callLog)
	if len(calls) != 3 {
		t.Fatalf("got %d invocations, want 3: %v", len(calls), calls)
	}
	if !strings.HasPrefix(calls[0], "frontend|") || !strings.HasPrefix(calls[1], "backend|") {
		t.Errorf("builds out of order: %v", calls)
	}

	// The target runs last, from its own dir, with no forwarded args.
	want := "server|" + cfg.ProjectRoot + "|"
	if calls[2] != want {
		t.Errorf("launch call = %q, want %q", calls[2], want)
	}

	stepRuns, err := e.store.GetStepRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("GetStepRunsForRun failed: %v", err)
	}
	if len(stepRuns) != 3 {
		t.Fatalf("got %d step runs, want 3", len(stepRuns))
	}
	last := stepRuns[2]
	if last.Kind != state.StepKindLaunch || last.Status != state.StepStatusSuccess {
		t.Errorf("launch step = %s/%s, want launch/success", last.Kind, last.Status)
	}
}

func TestRun_LaunchSkippedOnBuildFailure(t *testing.T) {
	cfg, callLog := launchProject(t)
	writeScript(t, filepath.Join(cfg.ProjectRoot, "frontend", "build.sh"), "exit 2")

	e := newTestEngine(t, cfg)

	run, err := e.Run(context.Background(), RunOptions{Launch: true})
	if err == nil {
		t.Fatal("Run() should fail when a build fails")
	}

	for _, c := range readCalls(t, callLog) {
		if strings.HasPrefix(c, "server|") {
			t.Fatalf("launch target ran despite the failed build: %v", c)
		}
	}

	stepRuns, err := e.store.GetStepRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("GetStepRunsForRun failed: %v", err)
	}
	var launchRun *state.StepRun
	for _, sr := range stepRuns {
		if sr.Kind == state.StepKindLaunch {
			launchRun = sr
		}
	}
	if launchRun == nil {
		t.Fatal("no launch step recorded")
	}
	if launchRun.Status != state.StepStatusSkipped {
		t.Errorf("launch status = %q, want skipped", launchRun.Status)
	}
	if !strings.Contains(launchRun.Error, "build failed") {
		t.Errorf("launch skip reason = %q, want mention of the failed build", launchRun.Error)
	}
}

func TestRun_LaunchNotConfigured(t *testing.T) {
	cfg, _ := twoStepProject(t)
	e := newTestEngine(t, cfg)

	_, err := e.Run(context.Background(), RunOptions{Launch: true})
	if err == nil {
		t.Fatal("Run() should fail without a launch target")
	}
	if !strings.Contains(err.Error(), "no launch target configured") {
		t.Errorf("error = %q, want mention of missing launch target", err)
	}
}

func TestLaunch_Standalone(t *testing.T) {
	cfg, callLog := launchProject(t)
	e := newTestEngine(t, cfg)

	run, err := e.Launch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Launch() failed: %v", err)
	}
	if run.Status != state.RunStatusCompleted {
		t.Errorf("run status = %q, want completed", run.Status)
	}

	calls := readCalls(t, callLog)
	if len(calls) != 1 || !strings.HasPrefix(calls[0], "server|") {
		t.Errorf("calls = %v, want only the launch target", calls)
	}

	stepRuns, err := e.store.GetStepRunsForRun(run.ID)
	if err != nil {
		t.Fatalf("GetStepRunsForRun failed: %v", err)
	}
	if len(stepRuns) != 1 || stepRuns[0].Kind != state.StepKindLaunch {
		t.Fatalf("step runs = %v, want a single launch step", stepRuns)
	}
}

func TestLaunch_TargetExitCode(t *testing.T) {
	cfg, _ := launchProject(t)
	writeScript(t, cfg.Launch.Target, "exit 7")

	e := newTestEngine(t, cfg)

	run, err := e.Launch(context.Background(), nil)
	if err == nil {
		t.Fatal("Launch() should fail when the target exits non-zero")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error = %v, want *StepError", err)
	}
	if stepErr.ExitCode != 7 {
		t.Errorf("exit code = %d, want 7", stepErr.ExitCode)
	}
	if run.Status != state.RunStatusFailed {
		t.Errorf("run status = %q, want failed", run.Status)
	}
}

func TestLaunch_Elevated(t *testing.T) {
	cfg, callLog := launchProject(t)
	cfg.Launch.Elevate = true

	// Shadow sudo with a recording stub that execs the real command.
	binDir := t.TempDir()
	writeScript(t, filepath.Join(binDir, "sudo"),
		fmt.Sprintf(`echo "sudo|$*" >> %q
[ "$1" = "--" ] && shift
exec "$@"`, callLog))
	t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))

	e := newTestEngine(t, cfg)

	if _, err := e.Launch(context.Background(), nil); err != nil {
		t.Fatalf("Launch() failed: %v", err)
	}

	calls := readCalls(t, callLog)
	if len(calls) != 2 {
		t.Fatalf("got %d invocations, want 2: %v", len(calls), calls)
	}
	if want := "sudo|-- " + cfg.Launch.Target; calls[0] != want {
		t.Errorf("sudo call = %q, want %q", calls[0], want)
	}
	if !strings.HasPrefix(calls[1], "server|") {
		t.Errorf("target call = %q, want the server invocation", calls[1])
	}
}

func TestLaunch_ElevatedWithoutSudo(t *testing.T) {
	cfg, _ := launchProject(t)
	cfg.Launch.Elevate = true

	// An empty PATH makes the sudo lookup fail.
	t.Setenv("PATH", t.TempDir())

	e := newTestEngine(t, cfg)

	_, err := e.Launch(context.Background(), nil)
	if err == nil {
		t.Fatal("Launch() should fail when sudo is unavailable")
	}
	if !strings.Contains(err.Error(), "sudo not found") {
		t.Errorf("error = %q, want mention of missing sudo", err)
	}
}

func TestSupervisor_StartStop(t *testing.T) {
	cfg, callLog := launchProject(t)
	writeScript(t, cfg.Launch.Target,
		fmt.Sprintf(`trap 'exit 0' TERM
echo "started|$$" >> %q
while true; do sleep 0.1; done`, callLog))

	e := newTestEngine(t, cfg)
	sup := NewSupervisor(e)

	if sup.Running() {
		t.Fatal("supervisor should not be running before Start")
	}

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return len(readCalls(t, callLog)) >= 1
	})
	if !sup.Running() {
		t.Error("supervisor should report running")
	}

	if err := sup.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if sup.Running() {
		t.Error("supervisor should not report running after Stop")
	}
}

func TestSupervisor_StartReplacesPrevious(t *testing.T) {
	cfg, callLog := launchProject(t)
	writeScript(t, cfg.Launch.Target,
		fmt.Sprintf(`trap 'exit 0' TERM
echo "started|$$" >> %q
while true; do sleep 0.1; done`, callLog))

	e := newTestEngine(t, cfg)
	sup := NewSupervisor(e)

	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("first Start() failed: %v", err)
	}
	if err := sup.Start(context.Background()); err != nil {
		t.Fatalf("second Start() failed: %v", err)
	}
	t.Cleanup(func() { _ = sup.Stop() })

	waitFor(t, 5*time.Second, func() bool {
		return len(readCalls(t, callLog)) >= 2
	})
	if !sup.Running() {
		t.Error("supervisor should report running after restart")
	}
}

func TestSupervisor_StopWithoutStart(t *testing.T) {
	cfg, _ := launchProject(t)
	e := newTestEngine(t, cfg)

	sup := NewSupervisor(e)
	if err := sup.Stop(); err != nil {
		t.Errorf("Stop() without Start failed: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
