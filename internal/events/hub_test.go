package events

import (
	"fmt"
	"testing"

	"github.com/peterje/ptyhost/internal/monitoring"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEmitReachesAllSubscribersInOrder(t *testing.T) {
	h := NewHub(nil)
	a, unsubA := h.Subscribe(nil)
	defer unsubA()
	b, unsubB := h.Subscribe(nil)
	defer unsubB()

	h.Emit("pty:data:1", "x")
	h.Emit("pty:exit:1", nil)

	for _, ch := range []<-chan Event{a, b} {
		got := drain(ch)
		require.Len(t, got, 2)
		assert.Equal(t, "pty:data:1", got[0].Name)
		assert.Equal(t, "x", got[0].Payload)
		assert.Equal(t, "pty:exit:1", got[1].Name)
	}
}

func TestFilter(t *testing.T) {
	h := NewHub(nil)
	ch, unsub := h.Subscribe(Names("pty:data:a", "pty:exit:a"))
	defer unsub()

	h.Emit("pty:data:b", "no")
	h.Emit("pty:data:a", "yes")
	h.Emit("pty:exit:b", nil)

	got := drain(ch)
	require.Len(t, got, 1)
	assert.Equal(t, "yes", got[0].Payload)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	m := monitoring.NewMetrics()
	h := NewHub(m)
	ch, unsub := h.Subscribe(nil)
	defer unsub()

	for i := 0; i < subscriberBuffer+10; i++ {
		h.Emit("pty:data:1", fmt.Sprint(i))
	}

	got := drain(ch)
	assert.Len(t, got, subscriberBuffer)
	assert.Equal(t, "0", got[0].Payload)
	assert.Equal(t, 10.0, testutil.ToFloat64(m.EventsDropped))
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(nil)
	ch, unsub := h.Subscribe(nil)
	assert.Equal(t, 1, h.Len())

	unsub()
	unsub()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Zero(t, h.Len())

	assert.NotPanics(t, func() { h.Emit("pty:data:1", "late") })
}

func TestLateSubscriberGetsNoReplay(t *testing.T) {
	h := NewHub(nil)
	h.Emit("pty:data:1", "early")

	ch, unsub := h.Subscribe(nil)
	defer unsub()
	assert.Empty(t, drain(ch))
}

func TestClose(t *testing.T) {
	h := NewHub(nil)
	ch, unsub := h.Subscribe(nil)

	h.Close()
	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, unsub)

	late, _ := h.Subscribe(nil)
	_, ok = <-late
	assert.False(t, ok)
}
