package server

import (
	"net/http"

	"github.com/peterje/ptyhost/internal/api"
	"github.com/peterje/ptyhost/internal/events"
	"github.com/peterje/ptyhost/internal/host"
	"github.com/peterje/ptyhost/internal/models"
	"github.com/peterje/ptyhost/internal/monitoring"
	"github.com/peterje/ptyhost/internal/ws"
	"go.uber.org/zap"
)

type Server struct {
	mux       *http.ServeMux
	host      *host.Host
	hub       *events.Hub
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	shell     models.ShellStatus
	namespace string
}

func New(h *host.Host, hub *events.Hub, shell models.ShellStatus, namespace string, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mux:       http.NewServeMux(),
		host:      h,
		hub:       hub,
		metrics:   metrics,
		logger:    logger,
		shell:     shell,
		namespace: namespace,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server wrapped in request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.logger, recoveryMiddleware(s.logger, s))
}

func (s *Server) routes() {
	terminals := api.NewTerminalsHandler(s.host, s.logger.Named("api"))
	wsHandler := ws.NewHandler(s.host, s.hub, s.namespace, s.metrics, s.logger.Named("ws"))

	// Health
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Terminals
	s.mux.HandleFunc("GET /api/terminals", terminals.HandleList)
	s.mux.HandleFunc("POST /api/terminals", terminals.HandleCreate)
	s.mux.HandleFunc("GET /api/terminals/{id}", terminals.HandleGet)
	s.mux.HandleFunc("POST /api/terminals/{id}/input", terminals.HandleInput)
	s.mux.HandleFunc("POST /api/terminals/{id}/resize", terminals.HandleResize)
	s.mux.HandleFunc("DELETE /api/terminals/{id}", terminals.HandleDelete)
	s.mux.HandleFunc("GET /api/history", terminals.HandleHistory)

	// WebSocket
	s.mux.Handle("GET /ws", wsHandler)

	// Metrics
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := models.HealthResponse{
		Status:    "ok",
		Shell:     s.shell,
		Sidecar:   s.host.SidecarStatus(),
		Terminals: len(s.host.List()),
	}
	api.WriteJSON(w, http.StatusOK, resp)
}
