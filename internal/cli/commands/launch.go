package commands

import (
	"fmt"

	"github.com/liftoff-dev/liftoff/internal/cli/config"
	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewLaunchCommand creates the launch command.
func NewLaunchCommand() *cobra.Command {
	var elevate bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch the target without building",
		Long: `Start the configured launch target in the foreground, skipping all builds.

The target receives only its configured arguments (none by default) and
runs until it exits or liftoff is interrupted. Privilege elevation is off
unless --elevate is passed or launch.elevate is set in liftoff.yaml.`,
		Example: `  # Launch the configured target
  liftoff launch

  # Launch with elevated privileges
  liftoff launch --elevate`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd, func(c *config.Config) {
				if elevate && c.Launch != nil {
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
				return fmt.Errorf("no launch target configured; set launch.target in liftoff.yaml")
			}

			events := textRunEvents(r, launch.Target)
			if r.EffectiveMode() == output.ModeJSON {
				events = jsonRunEvents(r.Writer())
			}

			_, err = eng.Launch(cmd.Context(), events)
			return err
		},
	}

	cmd.Flags().BoolVar(&elevate, "elevate", false, "Run the launch target with elevated privileges (sudo)")

	return cmd
}
