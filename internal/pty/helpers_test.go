package pty

import (
	"strings"
	"sync"
	"testing"
	"time"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond
)

type recordedEvent struct {
	name    string
	payload any
}

// recordingSink keeps every event in arrival order.
type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingSink) Emit(name string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{name: name, payload: payload})
}

func (r *recordingSink) snapshot() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}

// output concatenates the payloads of every event called name.
func (r *recordingSink) output(name string) string {
	var sb strings.Builder
	for _, ev := range r.snapshot() {
		if ev.name != name {
			continue
		}
		if p, ok := ev.payload.(DataPayload); ok {
			sb.WriteString(p.Data)
		}
	}
	return sb.String()
}

func (r *recordingSink) count(name string) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.name == name {
			n++
		}
	}
	return n
}

// lastFor returns the name of the last event whose name ends in ":"+id.
func (r *recordingSink) lastFor(id string) string {
	last := ""
	for _, ev := range r.snapshot() {
		if strings.HasSuffix(ev.name, ":"+id) {
			last = ev.name
		}
	}
	return last
}

func requirePTY(t *testing.T) {
	t.Helper()
	if err := Probe(); err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
}

func shEnv(key string) string {
	if key == "SHELL" {
		return "/bin/sh"
	}
	return ""
}

func newTestManager(t *testing.T, opts ...Option) (*Manager, *recordingSink) {
	t.Helper()
	requirePTY(t)
	sink := &recordingSink{}
	m := NewManager(sink, append([]Option{WithEnv(shEnv)}, opts...)...)
	t.Cleanup(m.KillAll)
	return m, sink
}
