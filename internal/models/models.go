package models

import "time"

// RunStatus values stored in the history database.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one command execution, live or historical.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Cwd        string     `json:"cwd,omitempty"`
	Cols       int        `json:"cols"`
	Rows       int        `json:"rows"`
	PID        *int       `json:"pid,omitempty"`
	Status     string     `json:"status"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	Cancelled  bool       `json:"cancelled"`
	TimedOut   bool       `json:"timed_out"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunResult is the structured completion report of one run.
type RunResult struct {
	ExitCode  *int `json:"exit_code"`
	Cancelled bool `json:"cancelled"`
	TimedOut  bool `json:"timed_out"`
}

// StartRequest is the API payload to launch a run.
type StartRequest struct {
	Command   string            `json:"command"`
	Cwd       string            `json:"cwd,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	TimeoutMs int               `json:"timeout_ms,omitempty"`
	Cols      uint16            `json:"cols,omitempty"`
	Rows      uint16            `json:"rows,omitempty"`
}

// ShellStatus reports availability of a shell binary.
type ShellStatus struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Path      string `json:"path,omitempty"`
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	Status string        `json:"status"`
	Shells []ShellStatus `json:"shells"`
}
