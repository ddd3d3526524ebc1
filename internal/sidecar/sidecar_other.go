//go:build !unix

package sidecar

import "os/exec"

func detach(cmd *exec.Cmd) {}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
