package engine

// discovery.go - conventional step layout detection

import (
	"fmt"
	"os"
	"path/filepath"
)

// conventionalEntrypoint is the build script looked for inside each
// conventional step directory.
const conventionalEntrypoint = "./build.sh"

// conventionalSteps is the fallback layout used when no steps are
// configured: a frontend build followed by a backend build.
var conventionalSteps = []string{"frontend", "backend"}

// DiscoverSteps scans root for the conventional pipeline layout. Each
// conventional directory containing an executable build.sh becomes a
// step, and every later step needs all earlier ones, keeping the
// frontend-then-backend order.
func DiscoverSteps(root string) ([]Step, error) {
	var steps []Step
	var prior []string

	for _, name := range conventionalSteps {
		dir := filepath.Join(root, name)
		script := filepath.Join(dir, "build.sh")

		info, err := os.Stat(script)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to inspect %s: %w", script, err)
		}
		if info.IsDir() || info.Mode()&0o111 == 0 {
			continue
		}

		steps = append(steps, Step{
			Name:       name,
			Dir:        dir,
			Entrypoint: conventionalEntrypoint,
			Needs:      append([]string(nil), prior...),
		})
		prior = append(prior, name)
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps configured and no conventional frontend/ or backend/ layout found in %s", root)
	}

	return steps, nil
}
