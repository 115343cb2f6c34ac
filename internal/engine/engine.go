// Package engine runs the build pipeline. It resolves step dependencies,
// executes each build entrypoint in topological order, and hands off to
// the launch target once every step has succeeded.
package engine

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/liftoff-dev/liftoff/internal/dag"
	"github.com/liftoff-dev/liftoff/internal/state"
)

// Step is a resolved build step ready for execution.
type Step struct {
	// Name identifies the step in status lines, logs, and history.
	Name string
	// Dir is the absolute directory the entrypoint runs in. The
	// orchestrator's own working directory never changes.
	Dir string
	// Entrypoint is the command to execute. Relative paths resolve
	// against Dir.
	Entrypoint string
	// Needs lists the steps that must succeed before this one runs.
	Needs []string
}

// LaunchSpec describes the binary executed after a successful build.
type LaunchSpec struct {
	// Target is the path of the binary to execute.
	Target string
	// Args are passed to the target verbatim. Build arguments are never
	// forwarded to the target.
	Args []string
	// Dir is the working directory for the target.
	Dir string
	// Elevate runs the target through sudo. Off unless explicitly
	// enabled in configuration or by flag.
	Elevate bool
}

// Config holds engine configuration.
type Config struct {
	// ProjectRoot is the absolute project root directory.
	ProjectRoot string
	// StatePath is the path to the SQLite state database.
	StatePath string
	// Environment is the current environment (dev, staging, prod).
	Environment string
	// Steps are the configured build steps. When empty the engine falls
	// back to discovering the conventional frontend/backend layout
	// under ProjectRoot.
	Steps []Step
	// Launch is the optional launch target.
	Launch *LaunchSpec
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
	// Stdout and Stderr receive subprocess output. They default to
	// os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	// Stdin is attached to the launch target. Defaults to os.Stdin.
	// Build entrypoints never read from it.
	Stdin io.Reader
}

// Engine orchestrates step execution and records run history.
type Engine struct {
	logger *slog.Logger
	store  state.Store

	projectRoot string
	environment string
	steps       map[string]Step
	launch      *LaunchSpec
	graph       *dag.Graph

	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

// New creates a new engine. It opens the state store, resolves the step
// set (configured or discovered), and validates the dependency graph.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	logger.Debug("initializing engine", "project_root", cfg.ProjectRoot, "environment", cfg.Environment)

	store := state.NewSQLiteStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}

	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate state store: %w", err)
	}

	env := cfg.Environment
	if env == "" {
		env = "dev"
	}

	steps := cfg.Steps
	if len(steps) == 0 {
		discovered, err := DiscoverSteps(cfg.ProjectRoot)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		names := make([]string, len(discovered))
		for i, s := range discovered {
			names[i] = s.Name
		}
		logger.Info("discovered pipeline steps", "steps", names)
		steps = discovered
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	stdin := cfg.Stdin
	if stdin == nil {
		stdin = os.Stdin
	}

	e := &Engine{
		logger:      logger,
		store:       store,
		projectRoot: cfg.ProjectRoot,
		environment: env,
		launch:      cfg.Launch,
		stdout:      stdout,
		stderr:      stderr,
		stdin:       stdin,
	}

	if err := e.buildGraph(steps); err != nil {
		_ = store.Close()
		return nil, err
	}

	return e, nil
}

// buildGraph indexes the steps and wires their needs into the DAG.
func (e *Engine) buildGraph(steps []Step) error {
	e.steps = make(map[string]Step, len(steps))
	e.graph = dag.NewGraph()

	for _, s := range steps {
		if s.Name == "" {
			return fmt.Errorf("step with empty name")
		}
		if _, dup := e.steps[s.Name]; dup {
			return fmt.Errorf("duplicate step %q", s.Name)
		}
		e.steps[s.Name] = s
		e.graph.AddNode(s.Name)
	}

	for _, s := range steps {
		for _, need := range s.Needs {
			if err := e.graph.AddEdge(need, s.Name); err != nil {
				return fmt.Errorf("failed to add dependency %s -> %s: %w", need, s.Name, err)
			}
		}
	}

	if hasCycle, cyclePath := e.graph.HasCycle(); hasCycle {
		return fmt.Errorf("circular step dependency: %v", cyclePath)
	}

	return nil
}

// Close releases the state store.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// --- Getters (public accessors) ---

// GetGraph returns the step dependency graph.
func (e *Engine) GetGraph() *dag.Graph {
	return e.graph
}

// GetSteps returns all resolved steps sorted by name.
func (e *Engine) GetSteps() []Step {
	steps := make([]Step, 0, len(e.steps))
	for _, s := range e.steps {
		steps = append(steps, s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Name < steps[j].Name })
	return steps
}

// GetStep returns the named step.
func (e *Engine) GetStep(name string) (Step, bool) {
	s, ok := e.steps[name]
	return s, ok
}

// GetLaunch returns the launch target, nil when none is configured.
func (e *Engine) GetLaunch() *LaunchSpec {
	return e.launch
}

// GetStateStore returns the state store.
func (e *Engine) GetStateStore() state.Store {
	return e.store
}

// GetEnvironment returns the active environment name.
func (e *Engine) GetEnvironment() string {
	return e.environment
}

// GetProjectRoot returns the absolute project root.
func (e *Engine) GetProjectRoot() string {
	return e.projectRoot
}
