package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"snapletter/internal/domain/preference"

	"github.com/lib/pq" // For pq.Array
)

const preferenceColumns = `subscriber_id, topics, cadence, contact_address, is_active, version,
               next_fire_at, last_correlation_id, created_at, updated_at`

type PostgresPreferenceRepository struct {
	db *sql.DB
}

func NewPostgresPreferenceRepository(db *sql.DB) *PostgresPreferenceRepository {
	return &PostgresPreferenceRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresRecord(row rowScanner) (*preference.Record, error) {
	rec := &preference.Record{}
	var cadence string
	var nextFireAt sql.NullTime
	err := row.Scan(
		&rec.SubscriberID, pq.Array(&rec.Topics), &cadence, &rec.ContactAddress, &rec.IsActive, &rec.Version,
		&nextFireAt, &rec.LastCorrelationID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Cadence = preference.Cadence(cadence)
	if nextFireAt.Valid {
		t := nextFireAt.Time
		rec.NextFireAt = &t
	}
	return rec, nil
}

func (r *PostgresPreferenceRepository) Get(ctx context.Context, subscriberID string) (*preference.Record, error) {
	query := `SELECT ` + preferenceColumns + `
               FROM subscriber_preferences WHERE subscriber_id = $1`
	rec, err := scanPostgresRecord(r.db.QueryRowContext(ctx, query, subscriberID))
	if err != nil {
		return nil, mapPostgresError(err, "getting preferences")
	}
	return rec, nil
}

func (r *PostgresPreferenceRepository) Upsert(ctx context.Context, subscriberID string, u preference.Update) (*preference.Record, error) {
	query := `INSERT INTO subscriber_preferences (subscriber_id, topics, cadence, contact_address, is_active)
               VALUES ($1, $2, $3, $4, TRUE)
               ON CONFLICT (subscriber_id) DO UPDATE
               SET topics = EXCLUDED.topics,
                   cadence = EXCLUDED.cadence,
                   contact_address = EXCLUDED.contact_address,
                   is_active = TRUE,
                   version = subscriber_preferences.version + 1,
                   updated_at = NOW()
               RETURNING ` + preferenceColumns
	rec, err := scanPostgresRecord(r.db.QueryRowContext(ctx, query,
		subscriberID, pq.Array(u.Topics), string(u.Cadence), u.ContactAddress))
	if err != nil {
		return nil, mapPostgresError(err, "upserting preferences")
	}
	return rec, nil
}

func (r *PostgresPreferenceRepository) SetActive(ctx context.Context, subscriberID string, active bool) (*preference.Record, error) {
	query := `UPDATE subscriber_preferences
               SET is_active = $2, version = version + 1, updated_at = NOW()
               WHERE subscriber_id = $1
               RETURNING ` + preferenceColumns
	rec, err := scanPostgresRecord(r.db.QueryRowContext(ctx, query, subscriberID, active))
	if err != nil {
		return nil, mapPostgresError(err, "setting activation")
	}
	return rec, nil
}

func (r *PostgresPreferenceRepository) RecordDispatch(ctx context.Context, subscriberID string, version int64, fireAt time.Time, correlationID string) error {
	query := `UPDATE subscriber_preferences
               SET next_fire_at = $3, last_correlation_id = $4
               WHERE subscriber_id = $1 AND version = $2`
	res, err := r.db.ExecContext(ctx, query, subscriberID, version, fireAt, correlationID)
	if err != nil {
		return mapPostgresError(err, "recording dispatch")
	}
	return r.checkVersionedUpdate(ctx, res, subscriberID)
}

// checkVersionedUpdate tells "row gone" apart from "row moved on" when a
// version-guarded update touched nothing.
func (r *PostgresPreferenceRepository) checkVersionedUpdate(ctx context.Context, res sql.Result, subscriberID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, subscriberID); err != nil {
		return err
	}
	return ErrDispatchSuperseded
}

func (r *PostgresPreferenceRepository) ClearSchedule(ctx context.Context, subscriberID string) error {
	query := `UPDATE subscriber_preferences SET next_fire_at = NULL WHERE subscriber_id = $1`
	res, err := r.db.ExecContext(ctx, query, subscriberID)
	if err != nil {
		return mapPostgresError(err, "clearing schedule")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return ErrPreferencesNotFound
	}
	return nil
}

func (r *PostgresPreferenceRepository) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*preference.Record, error) {
	query := `SELECT ` + preferenceColumns + `
               FROM subscriber_preferences
               WHERE is_active AND next_fire_at IS NOT NULL AND next_fire_at <= $1
               ORDER BY next_fire_at ASC
               LIMIT $2` // Oldest first
	rows, err := r.db.QueryContext(ctx, query, dueBy, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing due preferences: %w", err)
	}
	defer rows.Close()

	records := make([]*preference.Record, 0)
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning due preference: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due preferences: %w", err)
	}
	return records, nil
}
