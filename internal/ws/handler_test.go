package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/peterje/ptyhost/internal/events"
	"github.com/peterje/ptyhost/internal/host"
	"github.com/peterje/ptyhost/internal/monitoring"
	"github.com/peterje/ptyhost/internal/pty"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame is either a Reply or a pushed event.
type frame struct {
	Reply
	Event   string         `json:"event"`
	Payload map[string]any `json:"payload"`
}

type testServer struct {
	url     string
	metrics *monitoring.Metrics
	hub     *events.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	if err := pty.Probe(); err != nil {
		t.Skipf("pty unavailable: %v", err)
	}

	metrics := monitoring.NewMetrics()
	hub := events.NewHub(metrics)
	mgr := pty.NewManager(hub, pty.WithEnv(func(key string) string {
		if key == "SHELL" {
			return "/bin/sh"
		}
		return ""
	}))
	h := host.New(mgr, host.WithMetrics(metrics))
	srv := httptest.NewServer(NewHandler(h, hub, "pty", metrics, nil))
	t.Cleanup(func() {
		srv.Close()
		h.Shutdown(context.Background())
		hub.Close()
	})
	return &testServer{url: "ws" + strings.TrimPrefix(srv.URL, "http"), metrics: metrics, hub: hub}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(s.url+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// call sends req and returns its reply, collecting any events read on the way.
func call(t *testing.T, c *websocket.Conn, req Request, seen *[]frame) Reply {
	t.Helper()
	require.NoError(t, c.WriteJSON(req))
	for {
		f := next(t, c)
		if f.Event != "" {
			if seen != nil {
				*seen = append(*seen, f)
			}
			continue
		}
		require.Equal(t, req.ID, f.ID)
		return f.Reply
	}
}

func next(t *testing.T, c *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, c.ReadJSON(&f))
	return f
}

// waitOutput reads events until the data for session contains want.
func waitOutput(t *testing.T, c *websocket.Conn, seen []frame, session, want string) {
	t.Helper()
	var out strings.Builder
	check := func(f frame) bool {
		if f.Event == "pty:data:"+session {
			out.WriteString(f.Payload["data"].(string))
		}
		return strings.Contains(out.String(), want)
	}
	for _, f := range seen {
		if check(f) {
			return
		}
	}
	for {
		if check(next(t, c)) {
			return
		}
	}
}

func TestSpawnWriteStreamsOutput(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	var seen []frame
	reply := call(t, c, Request{ID: "1", Command: CommandSpawn, SessionID: "a", Rows: 24, Cols: 80}, &seen)
	require.True(t, reply.OK, reply.Error)
	require.Len(t, reply.Sessions, 1)
	assert.Equal(t, "a", reply.Sessions[0].ID)

	reply = call(t, c, Request{ID: "2", Command: CommandWrite, SessionID: "a", Data: "echo $((40+2))\n"}, &seen)
	require.True(t, reply.OK, reply.Error)

	waitOutput(t, c, seen, "a", "42")
}

func TestKillPushesExitEvent(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	var seen []frame
	require.True(t, call(t, c, Request{ID: "1", Command: CommandSpawn, SessionID: "k", Rows: 24, Cols: 80}, &seen).OK)
	require.True(t, call(t, c, Request{ID: "2", Command: CommandKill, SessionID: "k"}, &seen).OK)

	for _, f := range seen {
		if f.Event == "pty:exit:k" {
			return
		}
	}
	for {
		if next(t, c).Event == "pty:exit:k" {
			return
		}
	}
}

func TestSessionFilter(t *testing.T) {
	s := newTestServer(t)
	all := s.dial(t, "")
	onlyB := s.dial(t, "?session=b")

	require.True(t, call(t, all, Request{ID: "1", Command: CommandSpawn, SessionID: "a", Rows: 24, Cols: 80}, nil).OK)
	require.True(t, call(t, all, Request{ID: "2", Command: CommandSpawn, SessionID: "b", Rows: 24, Cols: 80}, nil).OK)
	require.True(t, call(t, all, Request{ID: "3", Command: CommandWrite, SessionID: "a", Data: "echo aaa\n"}, nil).OK)
	require.True(t, call(t, all, Request{ID: "4", Command: CommandWrite, SessionID: "b", Data: "echo $((100+23))\n"}, nil).OK)

	var seen []frame
	for {
		f := next(t, onlyB)
		seen = append(seen, f)
		if f.Event == "pty:data:b" && strings.Contains(f.Payload["data"].(string), "123") {
			break
		}
	}
	for _, f := range seen {
		assert.True(t, strings.HasSuffix(f.Event, ":b"), f.Event)
	}
}

func TestCommandErrors(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	reply := call(t, c, Request{ID: "1", Command: CommandWrite, SessionID: "nope", Data: "x"}, nil)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "not found")

	reply = call(t, c, Request{ID: "2", Command: CommandResize, SessionID: "nope", Rows: 1, Cols: 1}, nil)
	assert.False(t, reply.OK)

	reply = call(t, c, Request{ID: "3", Command: CommandSpawn, SessionID: "z", Rows: 0, Cols: 0}, nil)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "size")

	reply = call(t, c, Request{ID: "4", Command: "reboot"}, nil)
	assert.False(t, reply.OK)
	assert.Contains(t, reply.Error, "unknown command")

	// Kill of an unknown id still succeeds.
	assert.True(t, call(t, c, Request{ID: "5", Command: CommandKill, SessionID: "nope"}, nil).OK)
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"command":`)))
	f := next(t, c)
	assert.False(t, f.OK)
	assert.Equal(t, "invalid JSON", f.Error)

	reply := call(t, c, Request{ID: "1", Command: CommandList}, nil)
	assert.True(t, reply.OK)
}

func TestListAndMetrics(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t, "")

	reply := call(t, c, Request{ID: "1", Command: CommandList}, nil)
	require.True(t, reply.OK)
	assert.Empty(t, reply.Sessions)

	require.True(t, call(t, c, Request{ID: "2", Command: CommandSpawn, SessionID: "m", Rows: 24, Cols: 80}, nil).OK)
	reply = call(t, c, Request{ID: "3", Command: CommandList}, nil)
	require.Len(t, reply.Sessions, 1)
	assert.Equal(t, "m", reply.Sessions[0].ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.WSConnections))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.metrics.WSMessages.WithLabelValues("in")))
	assert.Equal(t, 1, s.hub.Len())

	c.Close()
	require.Eventually(t, func() bool {
		return s.hub.Len() == 0 && testutil.ToFloat64(s.metrics.WSConnections) == 0
	}, 5*time.Second, 10*time.Millisecond)
}
