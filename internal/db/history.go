package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/peterje/ptyhost/internal/models"
)

// History records terminal lifecycle rows.
type History struct {
	db *sql.DB
}

func NewHistory(db *sql.DB) *History {
	return &History{db: db}
}

// RecordSpawn inserts a running row for t and returns its seq. Later
// updates address the row by seq, so a reused terminal id never touches an
// earlier session's row.
func (h *History) RecordSpawn(ctx context.Context, t models.Terminal) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`INSERT INTO terminal_history (terminal_id, shell, work_dir, pid, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Shell, t.WorkDir, t.PID, models.StatusRunning, t.StartedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("record spawn %q: %w", t.ID, err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record spawn %q: %w", t.ID, err)
	}
	return seq, nil
}

// MarkExited closes row seq with the exit code if it is still running.
func (h *History) MarkExited(ctx context.Context, seq int64, exitCode int) error {
	return h.finish(ctx, seq, models.StatusExited, &exitCode)
}

// MarkKilled closes row seq as killed if it is still running.
func (h *History) MarkKilled(ctx context.Context, seq int64) error {
	return h.finish(ctx, seq, models.StatusKilled, nil)
}

func (h *History) finish(ctx context.Context, seq int64, status string, exitCode *int) error {
	_, err := h.db.ExecContext(ctx,
		`UPDATE terminal_history SET status = ?, exit_code = ?, ended_at = ?
		WHERE seq = ? AND status = ?`,
		status, exitCode, time.Now().UTC(), seq, models.StatusRunning)
	if err != nil {
		return fmt.Errorf("mark %s %d: %w", status, seq, err)
	}
	return nil
}

// ReconcileStale marks every running row as exited. Sessions never survive
// a restart, so such rows are left over from a previous process.
func (h *History) ReconcileStale(ctx context.Context) (int64, error) {
	result, err := h.db.ExecContext(ctx,
		`UPDATE terminal_history SET status = ?, ended_at = ? WHERE status = ?`,
		models.StatusExited, time.Now().UTC(), models.StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("reconcile history: %w", err)
	}
	return result.RowsAffected()
}

// List returns up to limit rows, newest first.
func (h *History) List(ctx context.Context, limit int) ([]models.HistoryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT seq, terminal_id, shell, work_dir, pid, status, exit_code, created_at, ended_at
		FROM terminal_history ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	records := []models.HistoryRecord{}
	for rows.Next() {
		var (
			r        models.HistoryRecord
			exitCode sql.NullInt64
			endedAt  sql.NullTime
		)
		if err := rows.Scan(&r.Seq, &r.TerminalID, &r.Shell, &r.WorkDir, &r.PID, &r.Status, &exitCode, &r.CreatedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			r.ExitCode = &code
		}
		if endedAt.Valid {
			ended := endedAt.Time
			r.EndedAt = &ended
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
