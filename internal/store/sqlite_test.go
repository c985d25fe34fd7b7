package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachlab/creator-scout/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "scout.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_RunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.RunKindFind, "miami food", "Miami")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	summary := model.RunSummary{Processed: 10, Succeeded: 8, Skipped: 2}
	require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunStatusComplete, summary))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, summary, got.Summary)
	assert.Equal(t, "miami food", got.Query)
	assert.Equal(t, "Miami", got.TargetLocation)
}

func TestSQLite_CompleteRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.CompleteRun(context.Background(), "nope", model.RunStatusComplete, model.RunSummary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	find, err := s.CreateRun(ctx, model.RunKindFind, "cooking", "")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, model.RunKindScrape, "https://www.youtube.com/results?search_query=cooking", "")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, find.ID, model.RunStatusComplete, model.RunSummary{}))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	finds, err := s.ListRuns(ctx, RunFilter{Kind: model.RunKindFind})
	require.NoError(t, err)
	require.Len(t, finds, 1)
	assert.Equal(t, find.ID, finds[0].ID)

	complete, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, complete, 1)
}

func TestSQLite_Failures(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.RunKindScrape, "q", "")
	require.NoError(t, err)

	f := model.FailureRecord{ID: "v9", Reason: model.FailureReasonRetries, Attempts: 3}
	require.NoError(t, s.RecordFailure(ctx, run.ID, f))

	got, err := s.ListFailures(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f, got[0])
}

func TestSQLite_ExportedIDs_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.RunKindFind, "q", "")
	require.NoError(t, err)

	require.NoError(t, s.MarkExported(ctx, run.ID, []string{"abc123", "def456"}))
	require.NoError(t, s.MarkExported(ctx, run.ID, []string{"abc123", "xyz789"}))

	ids, err := s.ExportedIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"abc123", "def456", "xyz789"}, ids)
}
