package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"snapletter/internal/domain/preference"
)

// Fixed-width UTC timestamps so that text comparison matches time order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLitePreferenceRepository stores preferences in a SQLite database.
// Topics are kept as a JSON array and timestamps as fixed-width UTC text.
type SQLitePreferenceRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLitePreferenceRepository(db *sql.DB) *SQLitePreferenceRepository {
	return &SQLitePreferenceRepository{db: db, now: time.Now}
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, s)
}

func scanSQLiteRecord(row rowScanner) (*preference.Record, error) {
	rec := &preference.Record{}
	var (
		topics, cadence      string
		createdAt, updatedAt string
		nextFireAt           sql.NullString
	)
	err := row.Scan(
		&rec.SubscriberID, &topics, &cadence, &rec.ContactAddress, &rec.IsActive, &rec.Version,
		&nextFireAt, &rec.LastCorrelationID, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Cadence = preference.Cadence(cadence)
	if err := json.Unmarshal([]byte(topics), &rec.Topics); err != nil {
		return nil, fmt.Errorf("malformed topics for %s: %w", rec.SubscriberID, err)
	}
	if rec.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, fmt.Errorf("malformed created_at for %s: %w", rec.SubscriberID, err)
	}
	if rec.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, fmt.Errorf("malformed updated_at for %s: %w", rec.SubscriberID, err)
	}
	if nextFireAt.Valid {
		t, err := parseSQLiteTime(nextFireAt.String)
		if err != nil {
			return nil, fmt.Errorf("malformed next_fire_at for %s: %w", rec.SubscriberID, err)
		}
		rec.NextFireAt = &t
	}
	return rec, nil
}

func (r *SQLitePreferenceRepository) Get(ctx context.Context, subscriberID string) (*preference.Record, error) {
	query := `SELECT ` + preferenceColumns + ` FROM subscriber_preferences WHERE subscriber_id = ?`
	rec, err := scanSQLiteRecord(r.db.QueryRowContext(ctx, query, subscriberID))
	if err != nil {
		return nil, mapSQLiteError(err, "getting preferences")
	}
	return rec, nil
}

func (r *SQLitePreferenceRepository) Upsert(ctx context.Context, subscriberID string, u preference.Update) (*preference.Record, error) {
	topics := u.Topics
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("error encoding topics: %w", err)
	}
	now := formatSQLiteTime(r.now())

	query := `INSERT INTO subscriber_preferences
                   (subscriber_id, topics, cadence, contact_address, is_active, version, created_at, updated_at)
               VALUES (?, ?, ?, ?, 1, 1, ?, ?)
               ON CONFLICT (subscriber_id) DO UPDATE
               SET topics = excluded.topics,
                   cadence = excluded.cadence,
                   contact_address = excluded.contact_address,
                   is_active = 1,
                   version = subscriber_preferences.version + 1,
                   updated_at = excluded.updated_at
               RETURNING ` + preferenceColumns
	rec, err := scanSQLiteRecord(r.db.QueryRowContext(ctx, query,
		subscriberID, string(encoded), string(u.Cadence), u.ContactAddress, now, now))
	if err != nil {
		return nil, mapSQLiteError(err, "upserting preferences")
	}
	return rec, nil
}

func (r *SQLitePreferenceRepository) SetActive(ctx context.Context, subscriberID string, active bool) (*preference.Record, error) {
	query := `UPDATE subscriber_preferences
               SET is_active = ?, version = version + 1, updated_at = ?
               WHERE subscriber_id = ?
               RETURNING ` + preferenceColumns
	rec, err := scanSQLiteRecord(r.db.QueryRowContext(ctx, query, active, formatSQLiteTime(r.now()), subscriberID))
	if err != nil {
		return nil, mapSQLiteError(err, "setting activation")
	}
	return rec, nil
}

func (r *SQLitePreferenceRepository) RecordDispatch(ctx context.Context, subscriberID string, version int64, fireAt time.Time, correlationID string) error {
	query := `UPDATE subscriber_preferences
               SET next_fire_at = ?, last_correlation_id = ?
               WHERE subscriber_id = ? AND version = ?`
	res, err := r.db.ExecContext(ctx, query, formatSQLiteTime(fireAt), correlationID, subscriberID, version)
	if err != nil {
		return mapSQLiteError(err, "recording dispatch")
	}
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

func (r *SQLitePreferenceRepository) ClearSchedule(ctx context.Context, subscriberID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscriber_preferences SET next_fire_at = NULL WHERE subscriber_id = ?`, subscriberID)
	if err != nil {
		return mapSQLiteError(err, "clearing schedule")
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

func (r *SQLitePreferenceRepository) ListDue(ctx context.Context, dueBy time.Time, limit int) ([]*preference.Record, error) {
	query := `SELECT ` + preferenceColumns + `
               FROM subscriber_preferences
               WHERE is_active = 1 AND next_fire_at IS NOT NULL AND next_fire_at <= ?
               ORDER BY next_fire_at ASC
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, formatSQLiteTime(dueBy), limit)
	if err != nil {
		return nil, fmt.Errorf("error listing due preferences: %w", err)
	}
	defer rows.Close()

	records := make([]*preference.Record, 0)
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
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
