package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/reportminer/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore_CreateAndGet(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r, err := s.CreateReport(ctx, "annual.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, model.StatusPending, r.Status)

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "annual.pdf", got.FileName)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Empty(t, got.Result)
}

func TestSQLiteStore_GetReport_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	_, err := s.GetReport(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteStore_UpdateStatus(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r, err := s.CreateReport(ctx, "annual.pdf")
	require.NoError(t, err)

	require.NoError(t, s.UpdateStatus(ctx, r.ID, model.StatusProcessing, ""))
	require.NoError(t, s.UpdateStatus(ctx, r.ID, model.StatusFailed, "backend unreachable"))

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, "backend unreachable", got.Message)

	err = s.UpdateStatus(ctx, "missing", model.StatusProcessing, "")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLiteStore_SetResult(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	r, err := s.CreateReport(ctx, "annual.pdf")
	require.NoError(t, err)

	result := []model.MergedRecord{
		{MetricName: "Revenue", Value: "1500", Unit: "million", Confidence: 95},
	}
	require.NoError(t, s.SetResult(ctx, r.ID, result))

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.Len(t, got.Result, 1)
	assert.Equal(t, "Revenue", got.Result[0].MetricName)
	assert.Equal(t, 95, got.Result[0].Confidence)
}

func TestSQLiteStore_ListReports(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a, err := s.CreateReport(ctx, "a.pdf")
	require.NoError(t, err)
	_, err = s.CreateReport(ctx, "b.pdf")
	require.NoError(t, err)
	require.NoError(t, s.UpdateStatus(ctx, a.ID, model.StatusCompleted, ""))

	all, err := s.ListReports(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := s.ListReports(ctx, Filter{Status: model.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, a.ID, completed[0].ID)

	byName, err := s.ListReports(ctx, Filter{FileName: "b.pdf"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "b.pdf", byName[0].FileName)

	limited, err := s.ListReports(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
