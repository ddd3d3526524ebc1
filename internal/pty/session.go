package pty

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/muesli/cancelreader"
	"github.com/peterje/ptyhost/internal/models"
)

// Session is one shell running on a pty. The registry owns it; the reader
// loop only borrows the master for reading and closes it when done.
type Session struct {
	ID        string
	Shell     string
	WorkDir   string
	Cmd       *exec.Cmd
	PTY       *os.File
	StartedAt time.Time

	cancel context.CancelFunc

	// exited is closed once the child has been reaped. exitCode is written
	// before the close and only read after it.
	exited   chan struct{}
	exitCode int

	writeMu sync.Mutex

	mu   sync.Mutex
	rows uint16
	cols uint16
}

// Done returns a channel that is closed when the session process exits.
func (s *Session) Done() <-chan struct{} {
	return s.exited
}

func (s *Session) hasExited() bool {
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

// write sends data to the child without buffering.
func (s *Session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.hasExited() {
		return ErrSessionExited
	}
	if _, err := s.PTY.Write(data); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func (s *Session) resize(rows, cols uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasExited() {
		return ErrSessionExited
	}
	if err := setSize(s.PTY, rows, cols); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	s.rows, s.cols = rows, cols
	return nil
}

func (s *Session) reap() {
	_ = s.Cmd.Wait()
	s.exitCode = -1
	if s.Cmd.ProcessState != nil {
		s.exitCode = s.Cmd.ProcessState.ExitCode()
	}
	close(s.exited)
}

// Info returns a snapshot of the session.
func (s *Session) Info() models.Terminal {
	s.mu.Lock()
	rows, cols := s.rows, s.cols
	s.mu.Unlock()

	info := models.Terminal{
		ID:        s.ID,
		Shell:     s.Shell,
		WorkDir:   s.WorkDir,
		Rows:      rows,
		Cols:      cols,
		StartedAt: s.StartedAt,
	}
	if s.Cmd.Process != nil {
		info.PID = s.Cmd.Process.Pid
	}
	if s.hasExited() {
		code := s.exitCode
		info.Exited = true
		info.ExitCode = &code
	}
	return info
}

// discard releases a session that never made it into the registry.
func discard(cmd *exec.Cmd, master *os.File, reader cancelreader.CancelReader) {
	if reader != nil {
		reader.Close()
	}
	_ = terminate(cmd)
	master.Close()
	_ = cmd.Wait()
}
