package pty

const (
	defaultPosixShell   = "/bin/bash"
	defaultWindowsShell = "powershell.exe"
)

// DefaultShell returns the shell to launch on goos. getenv is consulted for
// SHELL (or COMSPEC on windows) before falling back to a fixed default.
func DefaultShell(goos string, getenv func(string) string) string {
	if goos == "windows" {
		if s := getenv("COMSPEC"); s != "" {
			return s
		}
		return defaultWindowsShell
	}
	if s := getenv("SHELL"); s != "" {
		return s
	}
	return defaultPosixShell
}
