package pty

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/peterje/ptyhost/internal/models"
	"github.com/peterje/ptyhost/internal/monitoring"
	"go.uber.org/zap"
)

const defaultNamespace = "pty"

// Manager is the terminal registry: the single owner of every live session.
// Entries are only removed by Kill and KillAll, never when a shell exits on
// its own.
type Manager struct {
	sink      EventSink
	namespace string
	logger    *zap.Logger
	metrics   *monitoring.Metrics
	getenv    func(string) string
	kill      func(*exec.Cmd) error

	mu       sync.Mutex
	sessions map[string]*Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithNamespace sets the prefix of emitted event names.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithEnv overrides the environment lookup used for shell selection.
func WithEnv(getenv func(string) string) Option {
	return func(m *Manager) { m.getenv = getenv }
}

// NewManager returns an empty registry that reports events to sink.
func NewManager(sink EventSink, opts ...Option) *Manager {
	if sink == nil {
		sink = discardSink{}
	}
	m := &Manager{
		sink:      sink,
		namespace: defaultNamespace,
		logger:    zap.NewNop(),
		getenv:    os.Getenv,
		kill:      terminate,
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Spawn starts the default shell on a new pty of the given size and
// registers it under id. A reader loop starts emitting events for it
// immediately. A zero rows or cols is rejected with ErrInvalidSize rather
// than passed to the pty, where the kernel would accept it.
func (m *Manager) Spawn(id, workDir string, rows, cols uint16) (models.Terminal, error) {
	info, err := m.spawn(id, workDir, rows, cols)
	m.metrics.RecordSpawn(err)
	if err != nil {
		return models.Terminal{}, fmt.Errorf("spawn %q: %w", id, err)
	}
	return info, nil
}

func (m *Manager) spawn(id, workDir string, rows, cols uint16) (models.Terminal, error) {
	if rows == 0 || cols == 0 {
		return models.Terminal{}, ErrInvalidSize
	}
	if m.exists(id) {
		return models.Terminal{}, ErrAlreadyExists
	}

	shell := DefaultShell(runtime.GOOS, m.getenv)
	cmd := exec.Command(shell)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	master, err := startShell(cmd, rows, cols)
	if err != nil {
		return models.Terminal{}, err
	}

	reader, err := cancelreader.NewReader(master)
	if err != nil {
		discard(cmd, master, nil)
		return models.Terminal{}, fmt.Errorf("%w: %w", ErrHandleAcquisition, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		ID:        id,
		Shell:     shell,
		WorkDir:   workDir,
		Cmd:       cmd,
		PTY:       master,
		StartedAt: time.Now(),
		cancel:    cancel,
		exited:    make(chan struct{}),
		rows:      rows,
		cols:      cols,
	}

	m.mu.Lock()
	if _, raced := m.sessions[id]; raced {
		m.mu.Unlock()
		cancel()
		discard(cmd, master, reader)
		return models.Terminal{}, ErrAlreadyExists
	}
	m.sessions[id] = sess
	m.mu.Unlock()
	m.metrics.IncSessions()

	loop := &readerLoop{
		id:        id,
		dataEvent: DataEventName(m.namespace, id),
		exitEvent: ExitEventName(m.namespace, id),
		sink:      m.sink,
		metrics:   m.metrics,
		logger:    m.logger,
	}
	go sess.reap()
	go loop.run(ctx, reader, master)

	m.logger.Info("terminal spawned",
		zap.String("terminal", id),
		zap.String("shell", shell),
		zap.String("cwd", workDir),
		zap.Int("pid", cmd.Process.Pid),
		zap.Uint16("rows", rows),
		zap.Uint16("cols", cols),
	)
	return sess.Info(), nil
}

// Write sends data to the session's shell.
func (m *Manager) Write(id string, data []byte) error {
	sess, err := m.lookup(id)
	if err != nil {
		return fmt.Errorf("write %q: %w", id, err)
	}
	if err := sess.write(data); err != nil {
		return fmt.Errorf("write %q: %w", id, err)
	}
	return nil
}

// Resize changes the pty geometry. Pixel sizes are always zero. As with
// Spawn, a zero rows or cols fails with ErrInvalidSize.
func (m *Manager) Resize(id string, rows, cols uint16) error {
	sess, err := m.lookup(id)
	if err != nil {
		return fmt.Errorf("resize %q: %w", id, err)
	}
	if rows == 0 || cols == 0 {
		return fmt.Errorf("resize %q: %w", id, ErrInvalidSize)
	}
	if err := sess.resize(rows, cols); err != nil {
		return fmt.Errorf("resize %q: %w", id, err)
	}
	return nil
}

// Kill removes the session and kills its process. Unknown ids are a no-op
// and kill failures are only logged, so Kill always returns nil.
func (m *Manager) Kill(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		m.stop(sess)
	}
	return nil
}

// KillAll removes and kills every session. It does not wait for reader
// loops to finish.
func (m *Manager) KillAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		m.stop(sess)
	}
	if len(sessions) > 0 {
		m.logger.Info("killed all terminals", zap.Int("count", len(sessions)))
	}
}

func (m *Manager) stop(sess *Session) {
	sess.cancel()
	// Once reaped the pid may belong to someone else.
	if !sess.hasExited() {
		if err := m.kill(sess.Cmd); err != nil {
			m.logger.Debug("kill failed", zap.String("terminal", sess.ID), zap.Error(err))
		}
	}
	m.metrics.DecSessions()
	m.logger.Info("terminal killed", zap.String("terminal", sess.ID))
}

// List returns a snapshot of every registered session, ordered by id.
func (m *Manager) List() []models.Terminal {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	out := make([]models.Terminal, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Info returns a snapshot of one session.
func (m *Manager) Info(id string) (models.Terminal, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return models.Terminal{}, fmt.Errorf("info %q: %w", id, err)
	}
	return sess.Info(), nil
}

// Done returns a channel closed when the session's process exits.
func (m *Manager) Done(id string) (<-chan struct{}, error) {
	sess, err := m.lookup(id)
	if err != nil {
		return nil, fmt.Errorf("done %q: %w", id, err)
	}
	return sess.Done(), nil
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *Manager) lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}
