package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"snapletter/internal/domain/preference"
	"snapletter/internal/infra/config"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteRepo(t *testing.T, now time.Time) *SQLitePreferenceRepository {
	t.Helper()
	db, err := NewSQLiteConnection(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db, config.DriverSQLite, MigrateUp, goose.NopLogger()))

	repo := NewSQLitePreferenceRepository(db)
	repo.now = func() time.Time { return now }
	return repo
}

var testUpdate = preference.Update{
	Topics:         []string{"technology", "business"},
	Cadence:        preference.CadenceDaily,
	ContactAddress: "reader@example.com",
}

func TestSQLitePreferenceRepository_UpsertCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 1, 10, 0, 0, 0, time.UTC)
	repo := newTestSQLiteRepo(t, now)

	created, err := repo.Upsert(ctx, "sub-1", testUpdate)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", created.SubscriberID)
	assert.Equal(t, []string{"technology", "business"}, created.Topics)
	assert.Equal(t, preference.CadenceDaily, created.Cadence)
	assert.True(t, created.IsActive)
	assert.Equal(t, int64(1), created.Version)
	assert.Nil(t, created.NextFireAt)
	assert.True(t, created.CreatedAt.Equal(now))

	later := now.Add(time.Hour)
	repo.now = func() time.Time { return later }
	updated, err := repo.Upsert(ctx, "sub-1", preference.Update{
		Topics:         []string{"politics"},
		Cadence:        preference.CadenceWeekly,
		ContactAddress: "new@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"politics"}, updated.Topics)
	assert.Equal(t, preference.CadenceWeekly, updated.Cadence)
	assert.Equal(t, "new@example.com", updated.ContactAddress)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, updated.CreatedAt.Equal(now), "created_at survives updates")
	assert.True(t, updated.UpdatedAt.Equal(later))
}

func TestSQLitePreferenceRepository_GetMissing(t *testing.T) {
	repo := newTestSQLiteRepo(t, time.Now())

	_, err := repo.Get(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrPreferencesNotFound))

	_, err = repo.SetActive(context.Background(), "nobody", true)
	assert.True(t, errors.Is(err, ErrPreferencesNotFound))

	err = repo.ClearSchedule(context.Background(), "nobody")
	assert.True(t, errors.Is(err, ErrPreferencesNotFound))
}

func TestSQLitePreferenceRepository_SetActiveBumpsVersion(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepo(t, time.Now())
	_, err := repo.Upsert(ctx, "sub-1", testUpdate)
	require.NoError(t, err)

	rec, err := repo.SetActive(ctx, "sub-1", false)
	require.NoError(t, err)
	assert.False(t, rec.IsActive)
	assert.Equal(t, int64(2), rec.Version)

	rec, err = repo.SetActive(ctx, "sub-1", true)
	require.NoError(t, err)
	assert.True(t, rec.IsActive)
	assert.Equal(t, int64(3), rec.Version)
}

func TestSQLitePreferenceRepository_CheckConstraints(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepo(t, time.Now())

	_, err := repo.Upsert(ctx, "sub-1", preference.Update{
		Topics:         []string{"technology"},
		Cadence:        "monthly",
		ContactAddress: "reader@example.com",
	})
	assert.True(t, errors.Is(err, ErrConstraintViolation), "got %v", err)

	_, err = repo.Upsert(ctx, "sub-2", preference.Update{
		Cadence:        preference.CadenceDaily,
		ContactAddress: "reader@example.com",
	})
	assert.True(t, errors.Is(err, ErrConstraintViolation), "active record needs topics, got %v", err)
}

func TestSQLitePreferenceRepository_RecordDispatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepo(t, time.Now())
	rec, err := repo.Upsert(ctx, "sub-1", testUpdate)
	require.NoError(t, err)

	fireAt := time.Date(2024, time.January, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, repo.RecordDispatch(ctx, "sub-1", rec.Version, fireAt, "evt-1"))

	got, err := repo.Get(ctx, "sub-1")
	require.NoError(t, err)
	require.NotNil(t, got.NextFireAt)
	assert.True(t, got.NextFireAt.Equal(fireAt))
	assert.Equal(t, "evt-1", got.LastCorrelationID)
	assert.Equal(t, rec.Version, got.Version, "bookkeeping must not bump the version")

	err = repo.RecordDispatch(ctx, "sub-1", rec.Version-1, fireAt, "evt-old")
	assert.True(t, errors.Is(err, ErrDispatchSuperseded))

	err = repo.RecordDispatch(ctx, "ghost", 1, fireAt, "evt-x")
	assert.True(t, errors.Is(err, ErrPreferencesNotFound))

	require.NoError(t, repo.ClearSchedule(ctx, "sub-1"))
	got, err = repo.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Nil(t, got.NextFireAt)
}

func TestSQLitePreferenceRepository_ListDue(t *testing.T) {
	ctx := context.Background()
	repo := newTestSQLiteRepo(t, time.Now())
	base := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

	arm := func(id string, fireAt time.Time) {
		rec, err := repo.Upsert(ctx, id, testUpdate)
		require.NoError(t, err)
		require.NoError(t, repo.RecordDispatch(ctx, id, rec.Version, fireAt, "evt-"+id))
	}
	arm("late", base.Add(-2*time.Hour))
	arm("early", base.Add(-26*time.Hour))
	arm("future", base.Add(time.Hour))
	arm("paused", base.Add(-time.Hour))
	_, err := repo.SetActive(ctx, "paused", false)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "never", testUpdate)
	require.NoError(t, err)

	due, err := repo.ListDue(ctx, base, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].SubscriberID)
	assert.Equal(t, "late", due[1].SubscriberID)

	due, err = repo.ListDue(ctx, base, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)
}
