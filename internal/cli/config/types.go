// Package config loads liftoff configuration from defaults, the
// project file, LIFTOFF_* environment variables, and command-line
// flags, in that order of precedence.
package config

import (
	"time"
)

// Default configuration values.
const (
	DefaultStateFile  = ".liftoff/state.db"
	DefaultEnv        = "dev"
	DefaultOutput     = "auto" // TTY=text, non-TTY=markdown
	DefaultEntrypoint = "./build.sh"
	DefaultDebounce   = 400 * time.Millisecond
)

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is inferred, never read from the file.
	ProjectRoot string `koanf:"-"`

	StatePath    string `koanf:"state_path"`
	Environment  string `koanf:"environment"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	Steps  []StepConfig  `koanf:"steps"`
	Launch *LaunchConfig `koanf:"launch"`
	Watch  WatchConfig   `koanf:"watch"`

	Environments map[string]EnvConfig `koanf:"environments"`
}

// StepConfig describes one build step. Dir defaults to the step name,
// Entrypoint to ./build.sh inside that directory.
type StepConfig struct {
	Name       string   `koanf:"name"`
	Dir        string   `koanf:"dir"`
	Entrypoint string   `koanf:"entrypoint"`
	Needs      []string `koanf:"needs"`
}

// LaunchConfig describes the binary started after a successful build.
// Elevate is off unless explicitly enabled.
type LaunchConfig struct {
	Target  string   `koanf:"target"`
	Args    []string `koanf:"args"`
	Dir     string   `koanf:"dir"`
	Elevate bool     `koanf:"elevate"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Debounce time.Duration `koanf:"debounce"`
	Ignore   []string      `koanf:"ignore"`
	Serve    string        `koanf:"serve"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	StatePath string        `koanf:"state_path"`
	Launch    *LaunchConfig `koanf:"launch"`
}

// MergeLaunchConfig merges two launch configs, with override taking
// precedence field by field. Elevate merges with OR so an environment
// can turn elevation on but never silently off.
func MergeLaunchConfig(base, override *LaunchConfig) *LaunchConfig {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	merged := &LaunchConfig{
		Target:  base.Target,
		Args:    append([]string(nil), base.Args...),
		Dir:     base.Dir,
		Elevate: base.Elevate || override.Elevate,
	}
	if override.Target != "" {
		merged.Target = override.Target
	}
	if override.Args != nil {
		merged.Args = append([]string(nil), override.Args...)
	}
	if override.Dir != "" {
		merged.Dir = override.Dir
	}
	return merged
}
