package commands

import (
	"fmt"

	"github.com/liftoff-dev/liftoff/internal/cli/config"
	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the fully merged configuration: defaults, liftoff.yaml, LIFTOFF_*
environment variables, and flags, in ascending precedence. Paths are shown
resolved against the project root.`,
		Example: `  # Show the effective configuration
  liftoff config

  # As JSON
  liftoff config --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd)
		},
	}

	return cmd
}

func runConfig(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	doc := effectiveConfig(cfg)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(doc)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	if used := config.GetConfigFileUsed(); used != "" {
		r.Println(r.Styles().Muted.Render("# " + used))
	}
	r.Printf("%s", data)
	return nil
}

// effectiveConfig shapes the loaded config for display. yaml.Node
// ordering follows struct order, so the output reads top-down the way
// liftoff.yaml is written.
func effectiveConfig(cfg *config.Config) any {
	type stepDoc struct {
		Name       string   `yaml:"name" json:"name"`
		Dir        string   `yaml:"dir" json:"dir"`
		Entrypoint string   `yaml:"entrypoint" json:"entrypoint"`
		Needs      []string `yaml:"needs,omitempty" json:"needs,omitempty"`
	}
	type launchDoc struct {
		Target  string   `yaml:"target" json:"target"`
		Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
		Dir     string   `yaml:"dir,omitempty" json:"dir,omitempty"`
		Elevate bool     `yaml:"elevate" json:"elevate"`
	}
	type watchDoc struct {
		Debounce string   `yaml:"debounce" json:"debounce"`
		Ignore   []string `yaml:"ignore,omitempty" json:"ignore,omitempty"`
		Serve    string   `yaml:"serve,omitempty" json:"serve,omitempty"`
	}
	type doc struct {
		ProjectRoot string     `yaml:"project_root" json:"project_root"`
		StatePath   string     `yaml:"state_path" json:"state_path"`
		Environment string     `yaml:"environment" json:"environment"`
		Output      string     `yaml:"output" json:"output"`
		Steps       []stepDoc  `yaml:"steps,omitempty" json:"steps,omitempty"`
		Launch      *launchDoc `yaml:"launch,omitempty" json:"launch,omitempty"`
		Watch       watchDoc   `yaml:"watch" json:"watch"`
	}

	d := doc{
		ProjectRoot: cfg.ProjectRoot,
		StatePath:   cfg.StatePath,
		Environment: cfg.Environment,
		Output:      cfg.OutputFormat,
		Watch: watchDoc{
			Debounce: cfg.Watch.Debounce.String(),
			Ignore:   cfg.Watch.Ignore,
			Serve:    cfg.Watch.Serve,
		},
	}
	for _, s := range cfg.Steps {
		d.Steps = append(d.Steps, stepDoc(s))
	}
	if cfg.Launch != nil {
		d.Launch = &launchDoc{
			Target:  cfg.Launch.Target,
			Args:    cfg.Launch.Args,
			Dir:     cfg.Launch.Dir,
			Elevate: cfg.Launch.Elevate,
		}
	}
	return d
}
