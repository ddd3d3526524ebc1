package pty

import (
	"errors"
	"fmt"
)

var (
	// ErrAllocation is returned when a pseudo-terminal pair cannot be opened.
	ErrAllocation = errors.New("allocate pty")

	// ErrSpawn is returned when the shell cannot be started on the pty.
	ErrSpawn = errors.New("spawn shell")

	// ErrHandleAcquisition is returned when the reader or writer cannot be
	// obtained from the master side of an open pty.
	ErrHandleAcquisition = errors.New("acquire pty handle")

	// ErrNotFound is returned when no session is registered under an id.
	ErrNotFound = errors.New("terminal not found")

	// ErrIO is returned when a write or resize fails on a registered session.
	ErrIO = errors.New("pty io")

	// ErrSessionExited is returned by Write and Resize once the session's
	// process has been reaped but the session was not killed yet.
	ErrSessionExited = fmt.Errorf("%w: session process has exited", ErrIO)

	// ErrInvalidSize is returned for a zero row or column count.
	ErrInvalidSize = errors.New("invalid terminal size")

	// ErrAlreadyExists is returned when spawning under an id that is live.
	ErrAlreadyExists = errors.New("terminal already exists")
)
