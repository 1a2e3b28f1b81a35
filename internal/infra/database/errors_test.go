package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantNotFound   bool
		wantConstraint bool
	}{
		{
			name:         "no rows",
			err:          sql.ErrNoRows,
			wantNotFound: true,
		},
		{
			name:           "check violation",
			err:            &pq.Error{Code: "23514", Constraint: "subscriber_preferences_active_topics_check"},
			wantConstraint: true,
		},
		{
			name:           "not null violation",
			err:            &pq.Error{Code: "23502", Column: "contact_address"},
			wantConstraint: true,
		},
		{
			name: "unique violation is not a constraint error for callers",
			err:  &pq.Error{Code: "23505"},
		},
		{
			name: "connection failure",
			err:  errors.New("dial tcp: connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err, "upserting preferences")
			require.Error(t, got)
			assert.Equal(t, tt.wantNotFound, errors.Is(got, ErrPreferencesNotFound))
			assert.Equal(t, tt.wantConstraint, errors.Is(got, ErrConstraintViolation))
			if !tt.wantNotFound && !tt.wantConstraint {
				assert.ErrorIs(t, got, tt.err, "other errors stay wrapped")
				assert.Contains(t, got.Error(), "upserting preferences")
			}
		})
	}
}

func TestMapPostgresError_KeepsConstraintName(t *testing.T) {
	err := mapPostgresError(&pq.Error{Code: "23514", Constraint: "subscriber_preferences_cadence_check"}, "upserting preferences")
	assert.Contains(t, err.Error(), "subscriber_preferences_cadence_check")
}

func TestMapSQLiteError(t *testing.T) {
	repo := newTestSQLiteRepo(t, time.Now())
	ctx := context.Background()

	_, checkErr := repo.db.ExecContext(ctx, `INSERT INTO subscriber_preferences
		(subscriber_id, topics, cadence, contact_address, created_at, updated_at)
		VALUES ('sub-1', '["tech"]', 'hourly', 'a@example.com', 'x', 'x')`)
	require.Error(t, checkErr)
	assert.ErrorIs(t, mapSQLiteError(checkErr, "inserting"), ErrConstraintViolation)

	_, notNullErr := repo.db.ExecContext(ctx, `INSERT INTO subscriber_preferences
		(subscriber_id, topics, cadence, contact_address, created_at, updated_at)
		VALUES ('sub-2', '["tech"]', 'daily', NULL, 'x', 'x')`)
	require.Error(t, notNullErr)
	assert.ErrorIs(t, mapSQLiteError(notNullErr, "inserting"), ErrConstraintViolation)

	_, err := repo.db.ExecContext(ctx, `INSERT INTO subscriber_preferences
		(subscriber_id, topics, cadence, contact_address, created_at, updated_at)
		VALUES ('sub-3', '["tech"]', 'daily', 'a@example.com', 'x', 'x')`)
	require.NoError(t, err)
	_, uniqueErr := repo.db.ExecContext(ctx, `INSERT INTO subscriber_preferences
		(subscriber_id, topics, cadence, contact_address, created_at, updated_at)
		VALUES ('sub-3', '["tech"]', 'daily', 'a@example.com', 'x', 'x')`)
	require.Error(t, uniqueErr)
	mapped := mapSQLiteError(uniqueErr, "inserting")
	assert.NotErrorIs(t, mapped, ErrConstraintViolation)
	assert.ErrorIs(t, mapped, uniqueErr)

	assert.ErrorIs(t, mapSQLiteError(sql.ErrNoRows, "getting"), ErrPreferencesNotFound)
}
