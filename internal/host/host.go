// Package host is the command surface shared by every transport: it drives
// the terminal registry, keeps the history store in step, and owns process
// shutdown (kill every terminal, then the sidecar).
package host

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/peterje/ptyhost/internal/models"
	"github.com/peterje/ptyhost/internal/monitoring"
	"github.com/peterje/ptyhost/internal/pty"
	"go.uber.org/zap"
)

// ErrShuttingDown is returned by Spawn once Shutdown has begun.
var ErrShuttingDown = errors.New("host is shutting down")

// HistoryStore is implemented by db.History. Rows are addressed by the seq
// RecordSpawn returns.
type HistoryStore interface {
	RecordSpawn(ctx context.Context, t models.Terminal) (int64, error)
	MarkExited(ctx context.Context, seq int64, exitCode int) error
	MarkKilled(ctx context.Context, seq int64) error
	ReconcileStale(ctx context.Context) (int64, error)
	List(ctx context.Context, limit int) ([]models.HistoryRecord, error)
}

// Sidecar is implemented by sidecar.Process.
type Sidecar interface {
	Start() error
	Stop()
	Status() models.SidecarStatus
}

type Host struct {
	terms   pty.Registry
	history HistoryStore
	sidecar Sidecar
	metrics *monitoring.Metrics
	logger  *zap.Logger
	newID   func() string

	ctx      context.Context
	cancel   context.CancelFunc
	watchers sync.WaitGroup

	// state is held for reading across a whole Spawn, so Shutdown waits for
	// spawns in flight before it kills everything.
	state  sync.RWMutex
	closed bool

	mu   sync.Mutex
	rows map[string]int64 // history seq of each live terminal
}

type Option func(*Host)

func WithHistory(history HistoryStore) Option {
	return func(h *Host) { h.history = history }
}

func WithSidecar(sidecar Sidecar) Option {
	return func(h *Host) { h.sidecar = sidecar }
}

func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(h *Host) { h.metrics = metrics }
}

func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) { h.logger = logger }
}

// WithIDGenerator sets how ids are made for spawn requests that omit one.
func WithIDGenerator(newID func() string) Option {
	return func(h *Host) { h.newID = newID }
}

func New(terms pty.Registry, opts ...Option) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		terms:  terms,
		logger: zap.NewNop(),
		newID:  func() string { return uuid.New().String()[:8] },
		ctx:    ctx,
		cancel: cancel,
		rows:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start reconciles history left by a previous process and launches the
// sidecar. Neither failure prevents terminals from working.
func (h *Host) Start(ctx context.Context) {
	if h.history != nil {
		n, err := h.history.ReconcileStale(ctx)
		if err != nil {
			h.logger.Warn("failed to reconcile history", zap.Error(err))
		} else if n > 0 {
			h.logger.Info("marked stale history rows as exited", zap.Int64("count", n))
		}
	}
	if h.sidecar != nil {
		if err := h.sidecar.Start(); err != nil {
			h.logger.Error("failed to start sidecar", zap.Error(err))
		}
	}
}

// Spawn starts a terminal. An empty req.ID gets a generated one. Spawns
// are refused with ErrShuttingDown once Shutdown has begun.
func (h *Host) Spawn(ctx context.Context, req models.SpawnRequest) (models.Terminal, error) {
	h.state.RLock()
	defer h.state.RUnlock()
	if h.closed {
		h.metrics.RecordCommand("spawn", ErrShuttingDown)
		return models.Terminal{}, ErrShuttingDown
	}

	id := req.ID
	if id == "" {
		id = h.newID()
	}

	t, err := h.terms.Spawn(id, req.Cwd, req.Rows, req.Cols)
	h.metrics.RecordCommand("spawn", err)
	if err != nil {
		h.logger.Warn("spawn failed", zap.String("terminal", id), zap.Error(err))
		return models.Terminal{}, err
	}

	if h.history != nil {
		seq, err := h.history.RecordSpawn(ctx, t)
		if err != nil {
			h.logger.Warn("failed to record spawn", zap.Error(err))
			return t, nil
		}
		h.mu.Lock()
		h.rows[id] = seq
		h.mu.Unlock()

		if done, err := h.terms.Done(id); err == nil {
			h.watchers.Add(1)
			go h.watchExit(t, seq, done)
		}
	}
	return t, nil
}

// watchExit records the exit code once the terminal's process is reaped.
// It only ever touches the row of its own spawn.
func (h *Host) watchExit(t models.Terminal, seq int64, done <-chan struct{}) {
	defer h.watchers.Done()

	select {
	case <-done:
	case <-h.ctx.Done():
		return
	}

	code := -1
	if info, err := h.terms.Info(t.ID); err == nil && info.PID == t.PID && info.ExitCode != nil {
		code = *info.ExitCode
	}
	h.releaseRow(t.ID, seq)
	if err := h.history.MarkExited(context.WithoutCancel(h.ctx), seq, code); err != nil {
		h.logger.Warn("failed to record exit", zap.String("terminal", t.ID), zap.Error(err))
	}
	h.logger.Info("terminal process exited", zap.String("terminal", t.ID), zap.Int("exit_code", code))
}

// takeRow forgets the live row of id and returns its seq.
func (h *Host) takeRow(id string) (int64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	seq, ok := h.rows[id]
	delete(h.rows, id)
	return seq, ok
}

// releaseRow forgets id only if it still maps to seq; the id may belong to
// a newer spawn by now.
func (h *Host) releaseRow(id string, seq int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rows[id] == seq {
		delete(h.rows, id)
	}
}

func (h *Host) Write(id string, data []byte) error {
	err := h.terms.Write(id, data)
	h.metrics.RecordCommand("write", err)
	return err
}

func (h *Host) Resize(id string, rows, cols uint16) error {
	err := h.terms.Resize(id, rows, cols)
	h.metrics.RecordCommand("resize", err)
	return err
}

// Kill always succeeds from the caller's point of view.
func (h *Host) Kill(ctx context.Context, id string) error {
	err := h.terms.Kill(id)
	h.metrics.RecordCommand("kill", err)
	if h.history != nil {
		if seq, ok := h.takeRow(id); ok {
			if herr := h.history.MarkKilled(ctx, seq); herr != nil {
				h.logger.Warn("failed to record kill", zap.String("terminal", id), zap.Error(herr))
			}
		}
	}
	return err
}

func (h *Host) List() []models.Terminal {
	return h.terms.List()
}

func (h *Host) Info(id string) (models.Terminal, error) {
	return h.terms.Info(id)
}

// History returns recent lifecycle rows, or nothing when history is off.
func (h *Host) History(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	if h.history == nil {
		return []models.HistoryRecord{}, nil
	}
	return h.history.List(ctx, limit)
}

// SidecarStatus reports the sidecar for health checks.
func (h *Host) SidecarStatus() models.SidecarStatus {
	if h.sidecar == nil {
		return models.SidecarStatus{}
	}
	return h.sidecar.Status()
}

// Shutdown refuses further spawns, kills every terminal and then the
// sidecar. Only the first call does anything.
func (h *Host) Shutdown(ctx context.Context) {
	h.state.Lock()
	if h.closed {
		h.state.Unlock()
		return
	}
	h.closed = true
	h.state.Unlock()

	live := h.terms.List()
	h.terms.KillAll()
	h.cancel()
	h.watchers.Wait()

	if h.history != nil {
		h.mu.Lock()
		rows := h.rows
		h.rows = make(map[string]int64)
		h.mu.Unlock()
		for id, seq := range rows {
			if err := h.history.MarkKilled(ctx, seq); err != nil {
				h.logger.Warn("failed to record kill", zap.String("terminal", id), zap.Error(err))
			}
		}
	}
	if h.sidecar != nil {
		h.sidecar.Stop()
	}
	h.logger.Info("host shut down", zap.Int("terminals", len(live)))
}
