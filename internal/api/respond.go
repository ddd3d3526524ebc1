package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/peterje/ptyhost/internal/host"
	"github.com/peterje/ptyhost/internal/pty"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"error": msg})
}

// StatusFor maps a terminal error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pty.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pty.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, pty.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, host.ErrShuttingDown):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeTerminalError(w http.ResponseWriter, err error) {
	WriteError(w, StatusFor(err), err.Error())
}
