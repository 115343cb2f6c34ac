// Package main provides the liftoff CLI.
package main

import (
	"errors"
	"os"

	"github.com/liftoff-dev/liftoff/internal/cli"
	"github.com/liftoff-dev/liftoff/internal/engine"
)

// main mirrors a failing subprocess's exit code so callers and CI see
// the same status the build script or launch target produced.
func main() {
	if err := cli.Execute(); err != nil {
		var stepErr *engine.StepError
		if errors.As(err, &stepErr) && stepErr.ExitCode > 0 {
			os.Exit(stepErr.ExitCode)
		}
		os.Exit(1)
	}
}
