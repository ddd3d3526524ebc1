package ws

import "github.com/peterje/ptyhost/internal/models"

// Commands a client may send.
const (
	CommandSpawn  = "spawn"
	CommandWrite  = "write"
	CommandResize = "resize"
	CommandKill   = "kill"
	CommandList   = "list"
)

// Request is a client command frame. Only the fields its command needs are
// read.
type Request struct {
	ID        string `json:"id"`
	Command   string `json:"command"`
	SessionID string `json:"session_id,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
	Rows      uint16 `json:"rows,omitempty"`
	Cols      uint16 `json:"cols,omitempty"`
	Data      string `json:"data,omitempty"`
}

// Reply answers the Request with the same ID. Spawn and list fill Sessions.
type Reply struct {
	ID       string            `json:"id"`
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
	Sessions []models.Terminal `json:"sessions,omitempty"`
}
