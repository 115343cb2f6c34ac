package output

// RunEvent is a single JSON line emitted during --json runs.
type RunEvent struct {
	Event     string   `json:"event"` // run_start, step_start, step_complete, run_complete
	Timestamp string   `json:"timestamp"`
	RunID     string   `json:"run_id,omitempty"`
	Steps     []string `json:"steps,omitempty"`
	Step      string   `json:"step,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Status    string   `json:"status,omitempty"`
	Args      []string `json:"args,omitempty"`
	ExitCode  int      `json:"exit_code,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
	Error     string   `json:"error,omitempty"`

	// run_complete totals
	TotalSteps int   `json:"total_steps,omitempty"`
	Successful int   `json:"successful,omitempty"`
	Failed     int   `json:"failed,omitempty"`
	Skipped    int   `json:"skipped,omitempty"`
	TotalMS    int64 `json:"total_ms,omitempty"`
}

// ListOutput is the JSON output for the list command.
type ListOutput struct {
	Steps   []StepInfo  `json:"steps"`
	Launch  *LaunchInfo `json:"launch,omitempty"`
	Summary ListSummary `json:"summary"`
}

// StepInfo describes one resolved pipeline step.
type StepInfo struct {
	Name       string   `json:"name"`
	Dir        string   `json:"dir"`
	Entrypoint string   `json:"entrypoint"`
	Needs      []string `json:"needs,omitempty"`
	LastStatus string   `json:"last_status,omitempty"`
	LastMS     int64    `json:"last_duration_ms,omitempty"`
}

// LaunchInfo describes the configured launch target.
type LaunchInfo struct {
	Target  string   `json:"target"`
	Args    []string `json:"args,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	Elevate bool     `json:"elevate"`
}

// ListSummary contains pipeline-level counts.
type ListSummary struct {
	Steps int `json:"steps"`
	Edges int `json:"edges"`
}

// GraphOutput is the JSON output for the graph command.
type GraphOutput struct {
	Nodes   []GraphNode  `json:"nodes"`
	Order   []string     `json:"order"`
	Summary GraphSummary `json:"summary"`
}

// GraphNode is one step with its declared needs.
type GraphNode struct {
	Name  string   `json:"name"`
	Needs []string `json:"needs,omitempty"`
}

// GraphSummary contains graph-level counts.
type GraphSummary struct {
	Steps int `json:"steps"`
	Edges int `json:"edges"`
	Roots int `json:"roots"`
}

// HistoryOutput is the JSON output for the history command.
type HistoryOutput struct {
	Runs []HistoryRun `json:"runs"`
}

// HistoryRun is one recorded run with its steps.
type HistoryRun struct {
	ID          string        `json:"id"`
	Environment string        `json:"environment"`
	Status      string        `json:"status"`
	StartedAt   string        `json:"started_at"`
	DurationMS  int64         `json:"duration_ms,omitempty"`
	Error       string        `json:"error,omitempty"`
	Steps       []HistoryStep `json:"steps,omitempty"`
}

// HistoryStep is one recorded step within a run.
type HistoryStep struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	Status     string   `json:"status"`
	Args       []string `json:"args,omitempty"`
	ExitCode   int      `json:"exit_code"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}
