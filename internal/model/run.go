package model

import "time"

// RunStatus tracks a company run through the pipeline stages.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusAcquiring  RunStatus = "acquiring"
	RunStatusFields     RunStatus = "fields"
	RunStatusSupreme    RunStatus = "supreme"
	RunStatusUploading  RunStatus = "uploading"
	RunStatusReporting  RunStatus = "reporting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusSkipped    RunStatus = "skipped"
	RunStatusFailed     RunStatus = "failed"
)

// Run is one company's pass through the pipeline.
type Run struct {
	ID         string     `json:"id"`
	CompanyKey string     `json:"company_key"`
	Status     RunStatus  `json:"status"`
	Result     *RunResult `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RunResult summarizes a completed (or skipped) company run.
type RunResult struct {
	Documents  int    `json:"documents"`
	Uploaded   int    `json:"uploaded"`
	Failed     int    `json:"failed"`
	ReportPath string `json:"report_path,omitempty"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// PhaseStatus is the terminal state of a pipeline phase.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
)

// RunPhase is one stage execution within a run.
type RunPhase struct {
	ID        string      `json:"id"`
	RunID     string      `json:"run_id"`
	Name      string      `json:"name"`
	Status    PhaseStatus `json:"status"`
	StartedAt time.Time   `json:"started_at"`
}

// PhaseResult carries a phase's outcome back to the store.
type PhaseResult struct {
	Name     string         `json:"name"`
	Status   PhaseStatus    `json:"status"`
	Duration int64          `json:"duration_ms"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
