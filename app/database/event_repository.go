package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/lysyi3m/event-comb/app/event"
)

// ParsedEventSQLRepository handles database operations for persisted
// canonical events
type ParsedEventSQLRepository struct {
	db *DB
}

var _ ParsedEventRepository = (*ParsedEventSQLRepository)(nil)

// NewParsedEventRepository creates a new parsed event repository
func NewParsedEventRepository(db *DB) *ParsedEventSQLRepository {
	return &ParsedEventSQLRepository{db: db}
}

// InsertBatch persists one batch of canonical events under the given batch
// number. Purely additive: existing rows are never updated.
func (r *ParsedEventSQLRepository) InsertBatch(operationID string, batchNumber int, events []event.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO parsed_events (operation_id, event_data, batch_number)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}
		if _, err := stmt.Exec(operationID, data, batchNumber); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// GetByOperation returns the canonical events persisted for an operation in
// batch order
func (r *ParsedEventSQLRepository) GetByOperation(operationID string) ([]event.Event, error) {
	rows, err := r.db.Query(`
		SELECT event_data
		FROM parsed_events
		WHERE operation_id = $1
		ORDER BY batch_number, id
	`, operationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parsed events: %w", err)
	}
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		var e event.Event
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	return events, nil
}

// GetEventCount returns the total number of persisted events
func (r *ParsedEventSQLRepository) GetEventCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM parsed_events`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parsed events: %w", err)
	}
	return count, nil
}

// DeleteExpired removes event batches belonging to the given operations
// whose rows were created before the cutoff. The operation records
// themselves are retained.
func (r *ParsedEventSQLRepository) DeleteExpired(operationIDs []string, cutoff time.Time) (int64, error) {
	if len(operationIDs) == 0 {
		return 0, nil
	}

	result, err := r.db.Exec(`
		DELETE FROM parsed_events
		WHERE operation_id = ANY($1)
		  AND created_at < $2
	`, pq.Array(operationIDs), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}

	return deleted, nil
}
