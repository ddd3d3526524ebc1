// Package sidecar runs the single auxiliary process that lives alongside the
// terminal host and is killed when the host exits.
package sidecar

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/peterje/ptyhost/internal/models"
	"github.com/peterje/ptyhost/internal/monitoring"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

var ErrAlreadyStarted = errors.New("sidecar already started")

// Process supervises one auxiliary command. The zero Command disables it.
type Process struct {
	command string
	args    []string
	logger  *zap.Logger
	metrics *monitoring.Metrics
	kill    func(*exec.Cmd) error

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func New(command string, args []string, logger *zap.Logger, metrics *monitoring.Metrics) *Process {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Process{
		command: command,
		args:    args,
		logger:  logger,
		metrics: metrics,
		kill:    kill,
	}
}

// Enabled reports whether a command is configured.
func (p *Process) Enabled() bool {
	return p.command != ""
}

// Start launches the command in its own process group with output going to
// the logger. It is a no-op when disabled.
func (p *Process) Start() error {
	if !p.Enabled() {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return ErrAlreadyStarted
	}

	out := &zapio.Writer{Log: p.logger, Level: zap.InfoLevel}
	cmd := exec.Command(p.command, p.args...)
	cmd.Env = os.Environ()
	cmd.Stdout = out
	cmd.Stderr = out
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start sidecar %s: %w", p.command, err)
	}

	done := make(chan struct{})
	p.cmd = cmd
	p.done = done
	p.metrics.SetSidecarRunning(true)
	p.logger.Info("sidecar started", zap.String("command", p.command), zap.Int("pid", cmd.Process.Pid))

	go func() {
		err := cmd.Wait()
		out.Close()
		p.metrics.SetSidecarRunning(false)
		p.logger.Info("sidecar exited", zap.String("command", p.command), zap.Error(err))
		close(done)
	}()
	return nil
}

// Stop kills the process group. Failures are logged and otherwise ignored;
// calling Stop more than once is harmless. A process that already exited is
// not signalled since its pid may have been reused.
func (p *Process) Stop() {
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd == nil || cmd.Process == nil || !p.Running() {
		return
	}
	if err := p.kill(cmd); err != nil {
		p.logger.Debug("sidecar kill failed", zap.Error(err))
	}
}

// Done returns a channel closed once the process has exited, or nil if it
// was never started.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Running reports whether the process was started and has not exited.
func (p *Process) Running() bool {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Status reports the process for the health endpoint.
func (p *Process) Status() models.SidecarStatus {
	return models.SidecarStatus{
		Enabled: p.Enabled(),
		Command: p.command,
		Running: p.Running(),
	}
}
