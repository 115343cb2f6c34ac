package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store the logger in context.
// This key is shared with root.go via both using the same type.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search
// for a project file.
const maxUpwardSearchLevels = 10

var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// findConfigFile finds the config file to use.
// Priority: explicit path > liftoff.yaml > liftoff.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat("liftoff.yaml"); err == nil {
		return "liftoff.yaml"
	}
	if _, err := os.Stat("liftoff.yml"); err == nil {
		return "liftoff.yml"
	}
	return ""
}

// configExistsIn checks if a liftoff config file exists in the directory.
func configExistsIn(dir string) bool {
	for _, name := range []string{"liftoff.yaml", "liftoff.yml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// findProjectRootUpward searches upward from startDir for a liftoff
// config file. Returns empty string if not found within
// maxUpwardSearchLevels.
func findProjectRootUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if configExistsIn(dir) {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// inferProjectRoot determines the project root.
// Priority:
//  1. Explicit --project-dir flag
//  2. Search upward from CWD for liftoff.yaml
//  3. Current working directory
func inferProjectRoot(flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("project-dir") {
		if projectDir, _ := flags.GetString("project-dir"); projectDir != "" {
			abs, err := filepath.Abs(projectDir)
			if err == nil {
				return abs
			}
			return filepath.Clean(projectDir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		if root := findProjectRootUpward(cwd); root != "" {
			return root
		}
	}

	cwd, _ := os.Getwd()
	if cwd == "" {
		cwd = "."
	}
	return cwd
}

// resolvePathRelativeTo resolves a path against baseDir unless it is
// empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and
// flags. Precedence (highest to lowest): flags > env vars > config
// file > defaults.
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	projectRoot := inferProjectRoot(flags)

	// Paths given as flags are relative to the invocation CWD, not the
	// project root. Capture them as absolute before resolution.
	var flagStatePath string
	if flags != nil && flags.Changed("state") {
		if v, _ := flags.GetString("state"); v != "" {
			if v == ":memory:" {
				flagStatePath = v
			} else {
				flagStatePath, _ = filepath.Abs(v)
			}
		}
	}

	// An explicit config file anchors the project root unless
	// --project-dir said otherwise.
	if cfgFile != "" && (flags == nil || !flags.Changed("project-dir")) {
		if absPath, err := filepath.Abs(cfgFile); err == nil {
			projectRoot = filepath.Dir(absPath)
		}
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"state_path":     DefaultStateFile,
		"environment":    DefaultEnv,
		"verbose":        false,
		"output":         DefaultOutput,
		"watch.debounce": DefaultDebounce.String(),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file from the project root
	if cfgFile == "" {
		for _, name := range []string{"liftoff.yaml", "liftoff.yml"} {
			candidate := filepath.Join(projectRoot, name)
			if _, err := os.Stat(candidate); err == nil {
				cfgFile = candidate
				break
			}
		}
	}
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Environment variables: LIFTOFF_STATE_PATH -> state_path
	if err := k.Load(env.Provider("LIFTOFF_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LIFTOFF_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")

			switch key {
			case "state":
				// The CLI uses --state for brevity; config uses state_path
				return "state_path", posflag.FlagVal(flags, f)
			case "env":
				return "environment", posflag.FlagVal(flags, f)
			case "project_dir", "config":
				// Consumed above, not config keys
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	cfg.ProjectRoot = projectRoot

	if flagStatePath != "" {
		cfg.StatePath = flagStatePath
	} else {
		cfg.StatePath = resolvePathRelativeTo(cfg.StatePath, projectRoot)
	}

	// Environment-specific overrides
	if cfg.Environment != "" && cfg.Environments != nil {
		if envCfg, ok := cfg.Environments[cfg.Environment]; ok {
			if envCfg.StatePath != "" && flagStatePath == "" {
				cfg.StatePath = resolvePathRelativeTo(envCfg.StatePath, projectRoot)
			}
			if envCfg.Launch != nil {
				cfg.Launch = MergeLaunchConfig(cfg.Launch, envCfg.Launch)
			}
		}
	}

	applyStepDefaults(&cfg)
	applyLaunchDefaults(&cfg)

	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = DefaultDebounce
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

// applyStepDefaults fills in step dir and entrypoint defaults and
// resolves dirs against the project root.
func applyStepDefaults(cfg *Config) {
	for i := range cfg.Steps {
		step := &cfg.Steps[i]
		if step.Dir == "" {
			step.Dir = step.Name
		}
		step.Dir = resolvePathRelativeTo(step.Dir, cfg.ProjectRoot)
		if step.Entrypoint == "" {
			step.Entrypoint = DefaultEntrypoint
		}
	}
}

// applyLaunchDefaults resolves launch paths against the project root.
func applyLaunchDefaults(cfg *Config) {
	if cfg.Launch == nil {
		return
	}
	cfg.Launch.Target = resolvePathRelativeTo(cfg.Launch.Target, cfg.ProjectRoot)
	if cfg.Launch.Dir == "" {
		cfg.Launch.Dir = cfg.ProjectRoot
	} else {
		cfg.Launch.Dir = resolvePathRelativeTo(cfg.Launch.Dir, cfg.ProjectRoot)
	}
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// Available after LoadConfig has been called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Discard logger as safe fallback
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
