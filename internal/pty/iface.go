package pty

import "github.com/peterje/ptyhost/internal/models"

// EventSink receives session events. Delivery is fire-and-forget: Emit must
// not block, and an implementation may drop events a consumer is too slow to
// take. Nothing is buffered for consumers that attach later.
type EventSink interface {
	Emit(event string, payload any)
}

// Registry manages PTY session lifecycles.
type Registry interface {
	Spawn(id, workDir string, rows, cols uint16) (models.Terminal, error)
	Write(id string, data []byte) error
	Resize(id string, rows, cols uint16) error
	Kill(id string) error
	KillAll()
	List() []models.Terminal
	Info(id string) (models.Terminal, error)
	Done(id string) (<-chan struct{}, error)
}

// DataPayload is the payload of a data event.
type DataPayload struct {
	Data string `json:"data"`
}

// DataEventName returns the name of the data event for session id.
func DataEventName(namespace, id string) string {
	return namespace + ":data:" + id
}

// ExitEventName returns the name of the exit event for session id.
func ExitEventName(namespace, id string) string {
	return namespace + ":exit:" + id
}

type discardSink struct{}

func (discardSink) Emit(string, any) {}

var _ Registry = (*Manager)(nil)
