package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/peterje/ptyhost/internal/host"
	"github.com/peterje/ptyhost/internal/models"
	"go.uber.org/zap"
)

type TerminalsHandler struct {
	host   *host.Host
	logger *zap.Logger
}

func NewTerminalsHandler(h *host.Host, logger *zap.Logger) *TerminalsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalsHandler{host: h, logger: logger}
}

func (h *TerminalsHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.host.List())
}

func (h *TerminalsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.SpawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	t, err := h.host.Spawn(r.Context(), req)
	if err != nil {
		writeTerminalError(w, err)
		return
	}
	h.logger.Info("terminal created", zap.String("terminal", t.ID), zap.Int("pid", t.PID))
	WriteJSON(w, http.StatusCreated, t)
}

func (h *TerminalsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	t, err := h.host.Info(r.PathValue("id"))
	if err != nil {
		writeTerminalError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

func (h *TerminalsHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.host.Write(r.PathValue("id"), []byte(body.Data)); err != nil {
		writeTerminalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TerminalsHandler) HandleResize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rows uint16 `json:"rows"`
		Cols uint16 `json:"cols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := h.host.Resize(r.PathValue("id"), body.Rows, body.Cols); err != nil {
		writeTerminalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete kills the terminal. Unknown ids still get 204.
func (h *TerminalsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.host.Kill(r.Context(), r.PathValue("id")); err != nil {
		writeTerminalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TerminalsHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := h.host.History(r.Context(), limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, records)
}
