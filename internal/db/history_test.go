package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterje/ptyhost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, Migrate(database))
	// Migrations are idempotent.
	require.NoError(t, Migrate(database))
	return NewHistory(database)
}

func terminal(id string) models.Terminal {
	return models.Terminal{
		ID:        id,
		PID:       4242,
		Shell:     "/bin/sh",
		WorkDir:   "/tmp",
		StartedAt: time.Now(),
	}
}

func record(t *testing.T, h *History, id string) int64 {
	t.Helper()
	seq, err := h.RecordSpawn(context.Background(), terminal(id))
	require.NoError(t, err)
	return seq
}

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	first := record(t, h, "a")
	second := record(t, h, "b")
	assert.Greater(t, second, first)

	records, err := h.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "b", records[0].TerminalID)
	assert.Equal(t, second, records[0].Seq)
	assert.Equal(t, "a", records[1].TerminalID)
	assert.Equal(t, models.StatusRunning, records[1].Status)
	assert.Equal(t, 4242, records[1].PID)
	assert.Equal(t, "/bin/sh", records[1].Shell)
	assert.Nil(t, records[1].ExitCode)
	assert.Nil(t, records[1].EndedAt)
}

func TestMarkExitedAndKilled(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	a := record(t, h, "a")
	b := record(t, h, "b")
	require.NoError(t, h.MarkExited(ctx, a, 2))
	require.NoError(t, h.MarkKilled(ctx, b))
	// A late exit must not overwrite the kill.
	require.NoError(t, h.MarkExited(ctx, b, -1))

	records, err := h.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	rb, ra := records[0], records[1]
	assert.Equal(t, models.StatusExited, ra.Status)
	require.NotNil(t, ra.ExitCode)
	assert.Equal(t, 2, *ra.ExitCode)
	assert.NotNil(t, ra.EndedAt)

	assert.Equal(t, models.StatusKilled, rb.Status)
	assert.Nil(t, rb.ExitCode)
}

func TestReusedIDRowsAreIndependent(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	old := record(t, h, "a")
	require.NoError(t, h.MarkKilled(ctx, old))
	current := record(t, h, "a")

	// The old shell is reaped after the id was reused.
	require.NoError(t, h.MarkExited(ctx, old, -1))

	records, err := h.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, current, records[0].Seq)
	assert.Equal(t, models.StatusRunning, records[0].Status)
	assert.Equal(t, models.StatusKilled, records[1].Status)

	require.NoError(t, h.MarkExited(ctx, current, 0))
	records, err = h.List(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExited, records[0].Status)
	assert.Equal(t, models.StatusKilled, records[1].Status)
}

func TestReconcileStale(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	record(t, h, "a")
	require.NoError(t, h.MarkKilled(ctx, record(t, h, "b")))

	n, err := h.ReconcileStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	records, err := h.List(ctx, 10)
	require.NoError(t, err)
	for _, r := range records {
		assert.NotEqual(t, models.StatusRunning, r.Status)
	}
}

func TestListLimit(t *testing.T) {
	ctx := context.Background()
	h := newTestHistory(t)

	for _, id := range []string{"a", "b", "c"} {
		record(t, h, id)
	}

	records, err := h.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
