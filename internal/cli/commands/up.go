package commands

import (
	"fmt"

	"github.com/liftoff-dev/liftoff/internal/cli/config"
	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/spf13/cobra"
)

// UpOptions holds options for the up command.
type UpOptions struct {
	Elevate   bool
	KeepGoing bool
	SkipBuild bool
}

// NewUpCommand creates the up command.
func NewUpCommand() *cobra.Command {
	opts := &UpOptions{}

	cmd := &cobra.Command{
		Use:   "up [-- build-args...]",
		Short: "Build every step, then launch the target",
		Long: `Run all build steps in dependency order, then launch the configured target.

Arguments after -- are forwarded verbatim to every build entrypoint; the
launch target never receives them. The target runs in the foreground until
it exits or liftoff is interrupted.

Privilege elevation is off by default. Pass --elevate (or set
launch.elevate in liftoff.yaml) to run the target through sudo; the full
command line is logged before execution.`,
		Example: `  # Build everything, then launch
  liftoff up

  # Forward a release flag to both build scripts
  liftoff up -- --release

  # Launch with elevated privileges
  liftoff up --elevate

  # Keep building independent steps after a failure
  liftoff up --keep-going`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUp(cmd, opts, forwardedArgs(cmd, args))
		},
	}

	cmd.Flags().BoolVar(&opts.Elevate, "elevate", false, "Run the launch target with elevated privileges (sudo)")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "Continue independent steps after a failure")
	cmd.Flags().BoolVar(&opts.SkipBuild, "skip-build", false, "Launch without building first")

	return cmd
}

func runUp(cmd *cobra.Command, opts *UpOptions, buildArgs []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd, func(c *config.Config) {
		if opts.Elevate && c.Launch != nil {
			c.Launch.Elevate = true
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	eng := cmdCtx.Engine
	r := cmdCtx.Renderer

	launch := eng.GetLaunch()
	if launch == nil {
		return fmt.Errorf("no launch target configured; set launch.target in liftoff.yaml or use 'liftoff build'")
	}
	if err := cmdCtx.Cfg.ValidateDirectories(); err != nil {
		return err
	}

	events := textRunEvents(r, launch.Target)
	if r.EffectiveMode() == output.ModeJSON {
		events = jsonRunEvents(r.Writer())
	}

	if opts.SkipBuild {
		_, err = eng.Launch(cmd.Context(), events)
		return err
	}

	_, err = eng.Run(cmd.Context(), engine.RunOptions{
		Args:      buildArgs,
		KeepGoing: opts.KeepGoing,
		Launch:    true,
		Events:    events,
	})
	return err
}
