package preflight

import (
	"io"
	"os"
	"os/exec"
	"runtime"

	"github.com/fatih/color"
	"github.com/peterje/ptyhost/internal/models"
	"github.com/peterje/ptyhost/internal/pty"
)

var (
	green  = color.New(color.FgGreen).FprintfFunc()
	yellow = color.New(color.FgYellow).FprintfFunc()
)

// CheckAll checks that the default shell resolves and a pty can be opened,
// printing one line per check to w.
func CheckAll(w io.Writer) models.ShellStatus {
	status := checkShell(pty.DefaultShell(runtime.GOOS, os.Getenv))
	status.PTY = pty.Probe() == nil

	if status.Found {
		green(w, "✓ shell %s found (%s)\n", status.Shell, status.Path)
	} else {
		yellow(w, "⚠ shell %s was not found. Set SHELL to an installed shell.\n", status.Shell)
	}
	if status.PTY {
		green(w, "✓ pseudo-terminals available\n")
	} else {
		yellow(w, "⚠ pseudo-terminals are not available on this host\n")
	}
	return status
}

func checkShell(shell string) models.ShellStatus {
	path, err := exec.LookPath(shell)
	if err != nil {
		return models.ShellStatus{Shell: shell, Found: false}
	}
	return models.ShellStatus{Shell: shell, Found: true, Path: path}
}

// OK reports whether terminals can be spawned.
func OK(status models.ShellStatus) bool {
	return status.Found && status.PTY
}
