package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new liftoff project",
		Long: `Initialize a new liftoff project with a default configuration file.

This creates a liftoff.yaml describing the conventional frontend/backend
pipeline. Use --example to also scaffold the two subprojects with stub
build scripts and a demo launch target, giving a working pipeline out of
the box.`,
		Example: `  # Initialize in the current directory
  liftoff init

  # Initialize with working stub build scripts
  liftoff init --example

  # Initialize in a new directory
  liftoff init my-project --example

  # Overwrite an existing configuration
  liftoff init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			cfg := getConfig()
			mode := output.Mode(cfg.OutputFormat)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

			if example {
				return runInitExample(r, dir, force)
			}
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")
	cmd.Flags().BoolVar(&example, "example", false, "Create working stub build scripts and a demo launch target")

	return cmd
}

const initialConfig = `# liftoff configuration
# Each step runs its entrypoint inside its directory, in dependency order.

steps:
  - name: frontend
  - name: backend
    needs: [frontend]

# Uncomment to launch a binary after a successful build:
# launch:
#   target: backend/bin/server
#   # elevate: true   # run through sudo (logged, off by default)

# watch:
#   debounce: 400ms
#   ignore: [node_modules, target]
`

const exampleConfig = `# liftoff configuration (generated by liftoff init --example)

steps:
  - name: frontend
  - name: backend
    needs: [frontend]

launch:
  target: backend/bin/server
  elevate: false

watch:
  debounce: 400ms
  ignore: [node_modules, target, bin]
`

// exampleBuildScript produces artifacts so the demo pipeline has
// something observable to do.
const exampleBuildScript = `#!/bin/sh
# Demo build entrypoint. Arguments from 'liftoff build -- ...' arrive here.
echo "building %s with args: $*"
mkdir -p bin
printf '#!/bin/sh\necho "%s server running (ctrl-c to stop)"\nsleep 2\n' > bin/server
chmod +x bin/server
`

// runInit writes the starter configuration file.
func runInit(r *output.Renderer, dir string, force bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	cfgPath := filepath.Join(dir, "liftoff.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	if err := os.WriteFile(cfgPath, []byte(initialConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}

	r.Success("Created " + cfgPath)
	r.Println("")
	r.Println("Next steps:")
	r.Println("  1. Create frontend/build.sh and backend/build.sh (executable)")
	r.Println("  2. Run 'liftoff build' to build, 'liftoff up' to build and launch")

	return nil
}

// runInitExample writes the configuration plus stub frontend/backend
// subprojects whose build scripts produce a runnable demo server.
func runInitExample(r *output.Renderer, dir string, force bool) error {
	cfgPath := filepath.Join(dir, "liftoff.yaml")
	if _, err := os.Stat(cfgPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", cfgPath)
	}

	for _, sub := range []string{"frontend", "backend"} {
		subDir := filepath.Join(dir, sub)
		if err := os.MkdirAll(subDir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", subDir, err)
		}
		script := filepath.Join(subDir, "build.sh")
		if err := os.WriteFile(script, []byte(fmt.Sprintf(exampleBuildScript, sub, sub)), 0o755); err != nil {
			return fmt.Errorf("failed to write %s: %w", script, err)
		}
		r.Success("Created " + script)
	}

	if err := os.WriteFile(cfgPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfgPath, err)
	}
	r.Success("Created " + cfgPath)

	r.Println("")
	r.Println("Try it:")
	if dir != "." {
		r.Printf("  cd %s\n", dir)
	}
	r.Println("  liftoff up -- --release")

	return nil
}
