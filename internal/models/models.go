package models

import "time"

type Terminal struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Shell     string    `json:"shell"`
	WorkDir   string    `json:"work_dir"`
	Rows      uint16    `json:"rows"`
	Cols      uint16    `json:"cols"`
	StartedAt time.Time `json:"started_at"`
	Exited    bool      `json:"exited"`
	ExitCode  *int      `json:"exit_code"`
}

// History statuses.
const (
	StatusRunning = "running"
	StatusExited  = "exited"
	StatusKilled  = "killed"
)

type HistoryRecord struct {
	Seq        int64      `json:"seq"`
	TerminalID string     `json:"terminal_id"`
	Shell      string     `json:"shell"`
	WorkDir    string     `json:"work_dir"`
	PID        int        `json:"pid"`
	Status     string     `json:"status"`
	ExitCode   *int       `json:"exit_code"`
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at"`
}

type SpawnRequest struct {
	ID   string `json:"id"`
	Cwd  string `json:"cwd"`
	Rows uint16 `json:"rows"`
	Cols uint16 `json:"cols"`
}

type ShellStatus struct {
	Shell string `json:"shell"`
	Path  string `json:"path,omitempty"`
	Found bool   `json:"found"`
	PTY   bool   `json:"pty"`
}

type SidecarStatus struct {
	Enabled bool   `json:"enabled"`
	Command string `json:"command,omitempty"`
	Running bool   `json:"running"`
}

type HealthResponse struct {
	Status    string        `json:"status"`
	Shell     ShellStatus   `json:"shell"`
	Sidecar   SidecarStatus `json:"sidecar"`
	Terminals int           `json:"terminals"`
}
