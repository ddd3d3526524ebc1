package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/peterje/ptyhost/internal/events"
	"github.com/peterje/ptyhost/internal/host"
	"github.com/peterje/ptyhost/internal/models"
	"github.com/peterje/ptyhost/internal/monitoring"
	"github.com/peterje/ptyhost/internal/pty"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler bridges one websocket connection to the host: text frames carry
// JSON commands in, replies and session events go out.
type Handler struct {
	host      *host.Host
	hub       *events.Hub
	namespace string
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

func NewHandler(h *host.Host, hub *events.Hub, namespace string, metrics *monitoring.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{host: h, hub: hub, namespace: namespace, metrics: metrics, logger: logger}
}

// conn serialises writes; gorilla allows only one concurrent writer.
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	metrics *monitoring.Metrics
}

func (c *conn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		return err
	}
	c.metrics.RecordWSMessage("out")
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Subscribe first so nothing emitted after the handshake is missed.
	eventsCh, unsub := h.hub.Subscribe(h.filter(r.URL.Query()["session"]))

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		unsub()
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	clientID := uuid.New().String()[:8]
	log := h.logger.With(zap.String("client", clientID))
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	c := &conn{ws: ws, metrics: h.metrics}
	log.Info("client connected", zap.Strings("sessions", r.URL.Query()["session"]))

	// Session events -> client
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range eventsCh {
			if err := c.send(ev); err != nil {
				log.Debug("event send failed", zap.Error(err))
				return
			}
		}
	}()

	// Client commands -> host
	for {
		_, msg, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read failed", zap.Error(err))
			}
			break
		}
		h.metrics.RecordWSMessage("in")

		var reply Reply
		var req Request
		if err := json.Unmarshal(msg, &req); err != nil {
			log.Debug("bad frame", zap.Error(err))
			reply = Reply{Error: "invalid JSON"}
		} else {
			reply = h.dispatch(r, req)
		}
		if err := c.send(reply); err != nil {
			log.Debug("reply send failed", zap.Error(err))
			break
		}
	}

	unsub()
	wg.Wait()
	log.Info("client disconnected")
}

// filter restricts pushed events to the given session ids. No ids means
// every event.
func (h *Handler) filter(sessions []string) events.Filter {
	if len(sessions) == 0 {
		return nil
	}
	names := make([]string, 0, 2*len(sessions))
	for _, id := range sessions {
		names = append(names, pty.DataEventName(h.namespace, id), pty.ExitEventName(h.namespace, id))
	}
	return events.Names(names...)
}

func (h *Handler) dispatch(r *http.Request, req Request) Reply {
	reply := Reply{ID: req.ID}

	var err error
	switch req.Command {
	case CommandSpawn:
		var t models.Terminal
		t, err = h.host.Spawn(r.Context(), models.SpawnRequest{
			ID:   req.SessionID,
			Cwd:  req.Cwd,
			Rows: req.Rows,
			Cols: req.Cols,
		})
		if err == nil {
			reply.Sessions = []models.Terminal{t}
		}
	case CommandWrite:
		err = h.host.Write(req.SessionID, []byte(req.Data))
	case CommandResize:
		err = h.host.Resize(req.SessionID, req.Rows, req.Cols)
	case CommandKill:
		err = h.host.Kill(r.Context(), req.SessionID)
	case CommandList:
		reply.Sessions = h.host.List()
	default:
		err = fmt.Errorf("unknown command %q", req.Command)
	}

	if err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	return reply
}
