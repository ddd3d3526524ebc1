//go:build !unix

package pty

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
)

func startShell(cmd *exec.Cmd, rows, cols uint16) (*os.File, error) {
	return nil, fmt.Errorf("%w: %w", ErrAllocation, errors.ErrUnsupported)
}

func setSize(master *os.File, rows, cols uint16) error {
	return errors.ErrUnsupported
}

func terminate(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Probe reports whether a pty pair can be allocated on this host.
func Probe() error {
	return fmt.Errorf("%w: %w", ErrAllocation, errors.ErrUnsupported)
}
