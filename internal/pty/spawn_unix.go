//go:build unix

package pty

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// startShell opens a pty pair of the given size and starts cmd as a session
// leader with the slave as its controlling terminal.
func startShell(cmd *exec.Cmd, rows, cols uint16) (*os.File, error) {
	master, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	// The child holds its own copy of the slave once started.
	defer tty.Close()

	if err := setSize(master, rows, cols); err != nil {
		master.Close()
		return nil, fmt.Errorf("%w: set size: %w", ErrAllocation, err)
	}

	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setsid = true
	cmd.SysProcAttr.Setctty = true

	if err := cmd.Start(); err != nil {
		master.Close()
		return nil, fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	return master, nil
}

func setSize(master *os.File, rows, cols uint16) error {
	return pty.Setsize(master, &pty.Winsize{Rows: rows, Cols: cols})
}

// terminate kills the child's whole process group. The shell is a session
// leader, so its pgid equals its pid.
func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Probe reports whether a pty pair can be allocated on this host.
func Probe() error {
	master, tty, err := pty.Open()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	tty.Close()
	return master.Close()
}
