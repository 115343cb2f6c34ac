package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveEntrypoint(t *testing.T) {
	tests := []struct {
		entry    string
		dir      string
		expected string
	}{
		{"./build.sh", "/proj/frontend", "/proj/frontend/build.sh"},
		{"build.sh", "/proj/frontend", "/proj/frontend/build.sh"},
		{"scripts/build.sh", "/proj", "/proj/scripts/build.sh"},
		{"/usr/local/bin/make-all", "/proj", "/usr/local/bin/make-all"},
	}

	for _, tc := range tests {
		got := resolveEntrypoint(tc.entry, tc.dir)
		if got != tc.expected {
			t.Errorf("resolveEntrypoint(%q, %q) = %q, want %q", tc.entry, tc.dir, got, tc.expected)
		}
	}
}

func TestStepError(t *testing.T) {
	inner := errors.New("exit status 3")
	err := &StepError{Step: "frontend", ExitCode: 3, Err: inner}

	if !strings.Contains(err.Error(), "frontend") || !strings.Contains(err.Error(), "3") {
		t.Errorf("Error() = %q, want step name and exit code", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("Unwrap should expose the underlying error")
	}

	wrapped := fmt.Errorf("run failed: %w", err)
	var stepErr *StepError
	if !errors.As(wrapped, &stepErr) {
		t.Fatal("errors.As should find the StepError through wrapping")
	}
	if stepErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", stepErr.ExitCode)
	}
}

func TestExecCommand_CapturesOutput(t *testing.T) {
	root := t.TempDir()
	script := filepath.Join(root, "frontend", "build.sh")
	writeScript(t, script, `echo "out line"
echo "err line" >&2`)

	var stdout, stderr bytes.Buffer
	cfg := Config{
		ProjectRoot: root,
		StatePath:   ":memory:",
		Steps: []Step{
			{Name: "frontend", Dir: filepath.Join(root, "frontend"), Entrypoint: "./build.sh"},
		},
		Stdout: &stdout,
		Stderr: &stderr,
	}
	e := newTestEngine(t, cfg)

	if _, err := e.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if !strings.Contains(stdout.String(), "out line") {
		t.Errorf("stdout = %q, want the script's output", stdout.String())
	}
	if !strings.Contains(stderr.String(), "err line") {
		t.Errorf("stderr = %q, want the script's error output", stderr.String())
	}
}

func TestExecCommand_MissingEntrypoint(t *testing.T) {
	root := t.TempDir()
	cfg := Config{
		ProjectRoot: root,
		StatePath:   ":memory:",
		Steps: []Step{
			{Name: "frontend", Dir: root, Entrypoint: "./does-not-exist.sh"},
		},
	}
	e := newTestEngine(t, cfg)

	_, err := e.Run(context.Background(), RunOptions{})
	if err == nil {
		t.Fatal("Run() should fail when the entrypoint is missing")
	}
	if !strings.Contains(err.Error(), "failed to start") {
		t.Errorf("error = %q, want a start failure", err)
	}
}
