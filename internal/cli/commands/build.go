package commands

import (
	"strings"

	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Only       string
	Downstream bool
	KeepGoing  bool
	JSONOutput bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}

	cmd := &cobra.Command{
		Use:   "build [-- build-args...]",
		Short: "Run build steps without launching",
		Long: `Execute build steps in dependency order, without launching the target.

By default every step runs. Use --only to build a subset, and --downstream
to also rebuild the steps that depend on it. Arguments after -- are
forwarded verbatim to every build entrypoint.`,
		Example: `  # Build all steps
  liftoff build

  # Forward arguments to the build scripts
  liftoff build -- --release

  # Build a single step and its dependents
  liftoff build --only frontend --downstream

  # Stream progress as JSON lines for CI
  liftoff build --json`,
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, opts, forwardedArgs(cmd, args))
		},
	}

	cmd.Flags().StringVar(&opts.Only, "only", "", "Comma-separated list of steps to build")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", false, "Include downstream dependents when using --only")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue independent steps after a failure")
	cmd.Flags().BoolVar(&opts.JSONOutput, "json", false, "Output as JSON lines for progress tracking")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions, buildArgs []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	var only []string
	if opts.Only != "" {
		for _, name := range strings.Split(opts.Only, ",") {
			only = append(only, strings.TrimSpace(name))
		}
	}

	events := textRunEvents(r, "")
	if opts.JSONOutput || r.EffectiveMode() == output.ModeJSON {
		events = jsonRunEvents(r.Writer())
	}

	_, err = eng.Run(cmd.Context(), engine.RunOptions{
		Args:       buildArgs,
		Only:       only,
		Downstream: opts.Downstream,
		KeepGoing:  opts.KeepGoing,
		Events:     events,
	})
	return err
}
