package config

import (
	"fmt"
	"os"
)

// Validate checks that the configuration is structurally sound:
// step names unique and non-empty, needs referencing known steps,
// output format recognized. Filesystem checks live in
// ValidateDirectories so help and list commands work anywhere.
func (c *Config) Validate() error {
	switch c.OutputFormat {
	case "", "auto", "text", "markdown", "json":
	default:
		return fmt.Errorf("invalid output format %q (want auto, text, markdown, or json)", c.OutputFormat)
	}

	seen := make(map[string]bool, len(c.Steps))
	for _, step := range c.Steps {
		if step.Name == "" {
			return fmt.Errorf("step without a name in configuration")
		}
		if seen[step.Name] {
			return fmt.Errorf("duplicate step name %q", step.Name)
		}
		seen[step.Name] = true
	}

	for _, step := range c.Steps {
		for _, need := range step.Needs {
			if !seen[need] {
				return fmt.Errorf("step %q needs unknown step %q", step.Name, need)
			}
		}
	}

	if c.Launch != nil && c.Launch.Target == "" {
		return fmt.Errorf("launch section present but launch.target is empty")
	}

	return nil
}

// ValidateDirectories checks that every configured step directory
// exists. Called by commands that are about to execute steps.
func (c *Config) ValidateDirectories() error {
	for _, step := range c.Steps {
		if _, err := os.Stat(step.Dir); os.IsNotExist(err) {
			return fmt.Errorf("step %q directory does not exist: %s\nHint: create the directory or adjust its dir in liftoff.yaml", step.Name, step.Dir)
		}
	}
	return nil
}
