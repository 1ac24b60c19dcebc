package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rmpower/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(yyyy int, mm time.Month, dd int) time.Time {
	return time.Date(yyyy, mm, dd, 0, 0, 0, 0, time.UTC)
}

func TestUpsertAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	records := []models.UsageRecord{
		{Date: day(2024, 1, 2), KWh: 13.0, Unit: models.UnitKWh, Cost: 1.56},
		{Date: day(2024, 1, 1), KWh: 12.5, Unit: models.UnitKWh, Cost: 1.50},
	}
	require.NoError(t, db.Store(ctx, records))

	got, err := db.ListUsage(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)

	// listing is date ascending regardless of insert order
	assert.Equal(t, "2024-01-01", got[0].DateKey())
	assert.Equal(t, 12.5, got[0].KWh)
	assert.Equal(t, models.UnitKWh, got[0].Unit)
	assert.Equal(t, 1.50, got[0].Cost)
	assert.False(t, got[0].Published)
	assert.Equal(t, "2024-01-02", got[1].DateKey())
}

func TestListUsageBounds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for d := 1; d <= 5; d++ {
		require.NoError(t, db.UpsertUsage(ctx, models.UsageRecord{
			Date: day(2024, 1, d), KWh: float64(d), Unit: models.UnitKWh,
		}))
	}

	got, err := db.ListUsage(ctx, day(2024, 1, 2), day(2024, 1, 4))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-01-02", got[0].DateKey())
	assert.Equal(t, "2024-01-04", got[2].DateKey())

	got, err = db.ListUsage(ctx, day(2024, 1, 4), time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-04", got[0].DateKey())
}

func TestUpsertReplacesAndResetsPublished(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rec := models.UsageRecord{Date: day(2024, 1, 1), KWh: 12.5, Unit: models.UnitKWh}
	require.NoError(t, db.UpsertUsage(ctx, rec))

	got, err := db.ListUsage(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NoError(t, db.MarkPublished(ctx, got[0].ID))

	// same value: stays published
	require.NoError(t, db.UpsertUsage(ctx, rec))
	unpub, err := db.UnpublishedUsage(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, unpub)

	// corrected value: row flips back to unpublished
	rec.KWh = 13.1
	require.NoError(t, db.UpsertUsage(ctx, rec))

	got, err = db.ListUsage(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1, "upsert must not create a second row for the date")
	assert.Equal(t, 13.1, got[0].KWh)
	assert.False(t, got[0].Published)
}

func TestUnpublishedUsageAndMarkPublished(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for d := 1; d <= 3; d++ {
		require.NoError(t, db.UpsertUsage(ctx, models.UsageRecord{
			Date: day(2024, 1, d), KWh: float64(d), Unit: models.UnitKWh,
		}))
	}

	unpub, err := db.UnpublishedUsage(ctx, 2)
	require.NoError(t, err)
	require.Len(t, unpub, 2, "limit caps the batch")
	assert.Equal(t, "2024-01-01", unpub[0].DateKey())

	require.NoError(t, db.MarkPublished(ctx, unpub[0].ID))
	require.NoError(t, db.MarkPublished(ctx, unpub[1].ID))

	unpub, err = db.UnpublishedUsage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, unpub, 1)
	assert.Equal(t, "2024-01-03", unpub[0].DateKey())
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assert.True(t, stats.FirstDate.IsZero())

	require.NoError(t, db.Store(ctx, []models.UsageRecord{
		{Date: day(2024, 1, 1), KWh: 10, Unit: models.UnitKWh, Cost: 1.20},
		{Date: day(2024, 1, 2), KWh: 14, Unit: models.UnitKWh, Cost: 1.68},
	}))

	stats, err = db.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, day(2024, 1, 1), stats.FirstDate)
	assert.Equal(t, day(2024, 1, 2), stats.LastDate)
	assert.InDelta(t, 24.0, stats.TotalKWh, 1e-9)
	assert.InDelta(t, 2.88, stats.TotalCost, 1e-9)
}
