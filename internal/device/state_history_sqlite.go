package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	historyTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// SQLiteStateHistoryRepository stores status reports in device_state_history.
type SQLiteStateHistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStateHistoryRepository creates a repository over an open database.
func NewSQLiteStateHistoryRepository(db *sql.DB) *SQLiteStateHistoryRepository {
	return &SQLiteStateHistoryRepository{db: db, now: time.Now}
}

// RecordStateChange inserts one status report. A nil state is stored as JSON null.
func (r *SQLiteStateHistoryRepository) RecordStateChange(ctx context.Context, deviceID string, kind Kind, state json.RawMessage, source string) error {
	if deviceID == "" {
		return errors.New("device id is required")
	}
	if source == "" {
		source = StateHistorySourceMQTT
	}
	if len(state) == 0 {
		state = json.RawMessage("null")
	}
	if !json.Valid(state) {
		return fmt.Errorf("state for %s is not valid JSON", deviceID)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO device_state_history (device_id, device_kind, state, source, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		deviceID, string(kind), string(state), source,
		r.now().UTC().Format(historyTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// GetHistory returns recent entries for deviceID, newest first. limit
// defaults to 50 and is capped at 200.
func (r *SQLiteStateHistoryRepository) GetHistory(ctx context.Context, deviceID string, limit int) ([]StateHistoryEntry, error) {
	if deviceID == "" {
		return nil, errors.New("device id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, device_kind, state, source, created_at
		 FROM device_state_history
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]StateHistoryEntry, 0, limit)
	for rows.Next() {
		var e StateHistoryEntry
		var kind, state, createdAt string
		if err := rows.Scan(&e.ID, &e.DeviceID, &kind, &state, &e.Source, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		e.Kind = Kind(kind)
		e.State = json.RawMessage(state)
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// PruneHistory deletes entries older than olderThan and returns the count.
func (r *SQLiteStateHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be positive")
	}
	cutoff := r.now().UTC().Add(-olderThan).Format(historyTimeLayout)
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
