package commands

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/liftoff-dev/liftoff/internal/cli/config"
	"github.com/liftoff-dev/liftoff/internal/cli/output"
	"github.com/liftoff-dev/liftoff/internal/dag"
	"github.com/liftoff-dev/liftoff/internal/engine"
	"github.com/spf13/cobra"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run a project health check",
		Long: `Analyze the project for problems that would break a build or launch.

The doctor command checks:
- Pipeline: steps resolve, the dependency graph is acyclic, every build
  entrypoint exists and is executable
- Launch: the target exists and is executable, sudo is available when
  elevation is configured
- State: the run history location is writable

It reports a health score (0-100) and actionable recommendations.`,
		Example: `  # Run health check
  liftoff doctor

  # Output as JSON
  liftoff doctor --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}

	return cmd
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Checks          []HealthCheck `json:"checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	Name    string   `json:"name"`
	Group   string   `json:"group"`
	Status  string   `json:"status"` // "pass", "warn", "error"
	Details []string `json:"details,omitempty"`
}

// checkFunc inspects one aspect of the project. Checks run in
// registration order and never abort the report.
type checkFunc func(*doctorContext) HealthCheck

// doctorContext carries everything the checks inspect.
type doctorContext struct {
	cfg   *config.Config
	steps []engine.Step
}

// doctorChecks is the check registry, in report order.
var doctorChecks = []checkFunc{
	checkStepsResolve,
	checkGraphAcyclic,
	checkEntrypoints,
	checkLaunchTarget,
	checkElevation,
	checkStateWritable,
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutEngine(cmd)
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	dctx := &doctorContext{cfg: cfg, steps: resolveDoctorSteps(cfg)}

	doc := DoctorOutput{Score: 100}
	for _, check := range doctorChecks {
		result := check(dctx)
		doc.Checks = append(doc.Checks, result)
		switch result.Status {
		case "error":
			doc.Score -= 25
			doc.IssueCount++
		case "warn":
			doc.Score -= 10
			doc.IssueCount++
		}
		doc.Recommendations = append(doc.Recommendations, recommendations(result)...)
	}
	if doc.Score < 0 {
		doc.Score = 0
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(doc)
	}
	return doctorText(r, doc)
}

// resolveDoctorSteps mirrors the engine's step resolution without
// requiring a working project: configured steps win, otherwise the
// conventional layout is probed and an empty set is reported as-is.
func resolveDoctorSteps(cfg *config.Config) []engine.Step {
	if len(cfg.Steps) > 0 {
		steps := make([]engine.Step, 0, len(cfg.Steps))
		for _, s := range cfg.Steps {
			steps = append(steps, engine.Step{
				Name:       s.Name,
				Dir:        s.Dir,
				Entrypoint: s.Entrypoint,
				Needs:      s.Needs,
			})
		}
		return steps
	}

	discovered, err := engine.DiscoverSteps(cfg.ProjectRoot)
	if err != nil {
		return nil
	}
	return discovered
}

func checkStepsResolve(dctx *doctorContext) HealthCheck {
	c := HealthCheck{Name: "steps resolve", Group: "pipeline", Status: "pass"}
	if len(dctx.steps) == 0 {
		c.Status = "error"
		c.Details = append(c.Details,
			"no steps configured and no conventional frontend/ or backend/ layout found")
	} else {
		c.Details = append(c.Details, fmt.Sprintf("%d steps resolved", len(dctx.steps)))
	}
	return c
}

func checkGraphAcyclic(dctx *doctorContext) HealthCheck {
	c := HealthCheck{Name: "dependency graph acyclic", Group: "pipeline", Status: "pass"}

	g := dag.NewGraph()
	for _, s := range dctx.steps {
		g.AddNode(s.Name)
	}
	for _, s := range dctx.steps {
		for _, need := range s.Needs {
			if err := g.AddEdge(need, s.Name); err != nil {
				c.Status = "error"
				c.Details = append(c.Details, err.Error())
				return c
			}
		}
	}
	if hasCycle, path := g.HasCycle(); hasCycle {
		c.Status = "error"
		c.Details = append(c.Details, fmt.Sprintf("cycle: %v", path))
	}
	return c
}

func checkEntrypoints(dctx *doctorContext) HealthCheck {
	c := HealthCheck{Name: "build entrypoints executable", Group: "pipeline", Status: "pass"}
	for _, s := range dctx.steps {
		entry := s.Entrypoint
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(s.Dir, entry)
		}
		info, err := os.Stat(entry)
		if err != nil {
			c.Status = "error"
			c.Details = append(c.Details, fmt.Sprintf("step %s: %s not found", s.Name, entry))
			continue
		}
		if info.IsDir() || info.Mode()&0o111 == 0 {
			c.Status = "error"
			c.Details = append(c.Details, fmt.Sprintf("step %s: %s is not executable", s.Name, entry))
		}
	}
	return c
}

func checkLaunchTarget(dctx *doctorContext) HealthCheck {
	c := HealthCheck{Name: "launch target", Group: "launch", Status: "pass"}
	launch := dctx.cfg.Launch
	if launch == nil {
		c.Status = "warn"
		c.Details = append(c.Details, "no launch target configured; 'liftoff up' will refuse")
		return c
	}

	info, err := os.Stat(launch.Target)
	if err != nil {
		// Builds usually produce the target, so absence is a warning,
		// not an error.
		c.Status = "warn"
		c.Details = append(c.Details, fmt.Sprintf("%s not found (is it built yet?)", launch.Target))
		return c
	}
	if info.IsDir() || info.Mode()&0o111 == 0 {
		c.Status = "error"
		c.Details = append(c.Details, fmt.Sprintf("%s is not executable", launch.Target))
	}
	return c
}

func checkElevation(dctx *doctorContext) HealthCheck {
	c := HealthCheck{Name: "privilege elevation", Group: "launch", Status: "pass"}
	launch := dctx.cfg.Launch
	if launch == nil || !launch.Elevate {
		c.Details = append(c.Details, "elevation not configured")
		return c
	}
	if _, err := exec.LookPath("sudo"); err != nil {
		c.Status = "error"
		c.Details = append(c.Details, "launch.elevate is set but sudo is not on PATH")
		return c
	}
	c.Details = append(c.Details, "launch.elevate is set; the full command line is logged at launch")
	return c
}

func checkStateWritable(dctx *doctorContext) HealthCheck {
	c := HealthCheck{Name: "state store writable", Group: "state", Status: "pass"}
	if dctx.cfg.StatePath == ":memory:" {
		c.Details = append(c.Details, "in-memory state store")
		return c
	}

	dir := filepath.Dir(dctx.cfg.StatePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.Status = "error"
		c.Details = append(c.Details, fmt.Sprintf("cannot create %s: %v", dir, err))
		return c
	}

	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		c.Status = "error"
		c.Details = append(c.Details, fmt.Sprintf("%s is not writable: %v", dir, err))
		return c
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return c
}

// recommendations derives actionable hints from a failed check.
func recommendations(c HealthCheck) []string {
	if c.Status == "pass" {
		return nil
	}
	var recs []string
	switch c.Name {
	case "steps resolve":
		recs = append(recs, "Add a steps section to liftoff.yaml or create frontend/build.sh and backend/build.sh")
	case "build entrypoints executable":
		recs = append(recs, "chmod +x the build entrypoints listed above")
	case "launch target":
		recs = append(recs, "Run 'liftoff build' to produce the launch target, or fix launch.target in liftoff.yaml")
	case "privilege elevation":
		recs = append(recs, "Install sudo or unset launch.elevate")
	}
	return recs
}

// doctorText renders the report grouped by check category.
func doctorText(r *output.Renderer, doc DoctorOutput) error {
	styles := r.Styles()
	title := cases.Title(language.English)

	r.Println(styles.Header1.Render("Project health"))

	group := ""
	for _, c := range doc.Checks {
		if c.Group != group {
			group = c.Group
			r.Println("")
			r.Println(styles.Header2.Render(title.String(group)))
		}
		detail := ""
		if len(c.Details) > 0 {
			detail = c.Details[0]
		}
		status := "success"
		switch c.Status {
		case "warn":
			status = "skipped"
		case "error":
			status = "failed"
		}
		r.StatusLine(c.Name, status, detail)
		for i, d := range c.Details {
			if i == 0 {
				continue
			}
			r.Printf("      %s\n", styles.Muted.Render(d))
		}
	}

	r.Println("")
	r.Printf("Score: %d/100\n", doc.Score)

	if len(doc.Recommendations) > 0 {
		r.Println("")
		r.Println(styles.Header2.Render("Recommendations"))
		for _, rec := range doc.Recommendations {
			r.Printf("  - %s\n", rec)
		}
	}

	return nil
}
