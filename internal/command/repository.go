package command

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fluxhaus/fluxhaus-core/internal/device"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	logTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Repository stores command executions.
type Repository interface {
	// Record inserts the execution or updates the stored copy.
	Record(ctx context.Context, exec Execution) error

	// List returns recent executions, newest first.
	List(ctx context.Context, limit int) ([]Execution, error)
}

// SQLiteRepository keeps the command log in the command_log table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record upserts exec by ID.
func (r *SQLiteRepository) Record(ctx context.Context, exec Execution) error {
	if exec.ID == "" {
		return fmt.Errorf("recording command: id is required")
	}
	accepted := 0
	if exec.Accepted {
		accepted = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, device, command, username, state, accepted, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   state = excluded.state,
		   accepted = excluded.accepted,
		   message = excluded.message,
		   updated_at = excluded.updated_at`,
		exec.ID, exec.Device, string(exec.Command), exec.Username, string(exec.State),
		accepted, exec.Message,
		exec.CreatedAt.UTC().Format(logTimeLayout),
		exec.UpdatedAt.UTC().Format(logTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording command %s: %w", exec.ID, err)
	}
	return nil
}

// List returns up to limit executions. limit defaults to 50, max 200.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device, command, username, state, accepted, message, created_at, updated_at
		 FROM command_log
		 ORDER BY created_at DESC, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	execs := []Execution{}
	for rows.Next() {
		var e Execution
		var cmd, state, createdAt, updatedAt string
		var accepted int
		if err := rows.Scan(&e.ID, &e.Device, &cmd, &e.Username, &state, &accepted, &e.Message, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}
		e.Command = device.Command(cmd)
		e.State = State(state)
		e.Accepted = accepted != 0
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		if e.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
			return nil, fmt.Errorf("parsing updated_at %q: %w", updatedAt, err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}
	return execs, nil
}
