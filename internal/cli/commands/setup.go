package commands

import (
	"log/slog"
	"os"

	"github.com/liftoff-dev/liftoff/internal/cli/config"
	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Overrides run against a copy of the loaded configuration before the
// engine is built, so flags like --elevate never leak between commands.
// Returns the context and a cleanup function that must be called
// (typically via defer).
func NewCommandContext(cmd *cobra.Command, overrides ...func(*config.Config)) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	local := *cfg
	for _, override := range overrides {
		override(&local)
	}

	eng, err := createEngine(&local, logger)
	if err != nil {
		return nil, nil, err
	}

	mode := output.Mode(local.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cleanup := func() {
		_ = eng.Close()
	}

	return &CommandContext{
		Cfg:      &local,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an
// engine. Useful for commands that don't need the state store.
func NewCommandContextWithoutEngine(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// Helper functions shared across commands

// getConfig returns the current configuration. It uses
// config.GetCurrentConfig() if available, otherwise falls back to
// environment variables.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}

	// Fallback: read from environment with defaults
	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}

	return &config.Config{
		ProjectRoot:  getEnvOrDefault("LIFTOFF_PROJECT_DIR", cwd),
		StatePath:    getEnvOrDefault("LIFTOFF_STATE_PATH", config.DefaultStateFile),
		Environment:  getEnvOrDefault("LIFTOFF_ENVIRONMENT", config.DefaultEnv),
		Verbose:      os.Getenv("LIFTOFF_VERBOSE") == "true",
		OutputFormat: os.Getenv("LIFTOFF_OUTPUT"),
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// createEngine builds an engine from the configuration. Configured
// steps are passed through; with none, the engine falls back to
// discovering the conventional frontend/backend layout.
func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	steps := make([]engine.Step, 0, len(cfg.Steps))
	for _, s := range cfg.Steps {
		steps = append(steps, engine.Step{
			Name:       s.Name,
			Dir:        s.Dir,
			Entrypoint: s.Entrypoint,
			Needs:      s.Needs,
		})
	}

	var launch *engine.LaunchSpec
	if cfg.Launch != nil {
		launch = &engine.LaunchSpec{
			Target:  cfg.Launch.Target,
			Args:    cfg.Launch.Args,
			Dir:     cfg.Launch.Dir,
			Elevate: cfg.Launch.Elevate,
		}
	}

	return engine.New(engine.Config{
		ProjectRoot: cfg.ProjectRoot,
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Steps:       steps,
		Launch:      launch,
		Logger:      logger,
	})
}

// forwardedArgs returns the build arguments to pass through to every
// build entrypoint: everything after --, verbatim. Without a -- all
// positional arguments are forwarded.
func forwardedArgs(cmd *cobra.Command, args []string) []string {
	if at := cmd.ArgsLenAtDash(); at >= 0 {
		return args[at:]
	}
	return args
}
