package database

import (
	"database/sql"
	"fmt"
	"time"
)

// maxLogLines bounds the per-operation audit trail; the oldest lines are
// pruned once the cap is exceeded.
const maxLogLines = 1000

// OperationSQLRepository handles database operations for parsing operations
type OperationSQLRepository struct {
	db *DB
}

var _ OperationRepository = (*OperationSQLRepository)(nil)

// NewOperationRepository creates a new operation repository
func NewOperationRepository(db *DB) *OperationSQLRepository {
	return &OperationSQLRepository{db: db}
}

// Create inserts a new operation in pending status and returns its id
func (r *OperationSQLRepository) Create(opType OperationType) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO operations (type, status)
		VALUES ($1, 'pending')
		RETURNING id
	`, string(opType)).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to create operation: %w", err)
	}
	return id, nil
}

// Get retrieves an operation by id, returning nil when not found
func (r *OperationSQLRepository) Get(id string) (*Operation, error) {
	var op Operation
	err := r.db.QueryRow(`
		SELECT id, type, status, statistics, is_processed, is_taken,
		       finish_time, created_at, updated_at
		FROM operations
		WHERE id = $1
	`, id).Scan(
		&op.ID, &op.Type, &op.Status, &op.Statistics, &op.IsProcessed,
		&op.IsTaken, &op.FinishTime, &op.CreatedAt, &op.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return &op, nil
}

// GetOperationCount returns the total number of operations
func (r *OperationSQLRepository) GetOperationCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM operations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count operations: %w", err)
	}
	return count, nil
}

// SetStatus transitions an operation to a non-terminal status. Terminal
// statuses must go through Finish so finish_time is stamped.
func (r *OperationSQLRepository) SetStatus(id string, status OperationStatus) error {
	_, err := r.db.Exec(`
		UPDATE operations
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('success', 'error')
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}
	return nil
}

// Finish transitions an operation to a terminal status, stamping
// finish_time and the statistics summary. Already-terminal operations are
// left untouched.
func (r *OperationSQLRepository) Finish(id string, status OperationStatus, statistics string) error {
	_, err := r.db.Exec(`
		UPDATE operations
		SET status = $2, statistics = $3, finish_time = NOW(), updated_at = NOW()
		WHERE id = $1 AND status NOT IN ('success', 'error')
	`, id, string(status), statistics)
	if err != nil {
		return fmt.Errorf("failed to finish operation: %w", err)
	}
	return nil
}

// AppendLog appends one structured progress line to the operation's audit
// trail, pruning the oldest lines beyond the cap.
func (r *OperationSQLRepository) AppendLog(id string, level LogLevel, message string) error {
	_, err := r.db.Exec(`
		INSERT INTO operation_logs (operation_id, level, message)
		VALUES ($1, $2, $3)
	`, id, string(level), message)
	if err != nil {
		return fmt.Errorf("failed to append operation log: %w", err)
	}

	_, err = r.db.Exec(`
		DELETE FROM operation_logs
		WHERE operation_id = $1
		  AND id NOT IN (
			SELECT id FROM operation_logs
			WHERE operation_id = $1
			ORDER BY id DESC
			LIMIT $2
		  )
	`, id, maxLogLines)
	if err != nil {
		return fmt.Errorf("failed to prune operation logs: %w", err)
	}

	return nil
}

// GetLogs returns the operation's audit trail in append order
func (r *OperationSQLRepository) GetLogs(id string) ([]OperationLog, error) {
	rows, err := r.db.Query(`
		SELECT id, operation_id, level, message, created_at
		FROM operation_logs
		WHERE operation_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation logs: %w", err)
	}
	defer rows.Close()

	var logs []OperationLog
	for rows.Next() {
		var entry OperationLog
		if err := rows.Scan(&entry.ID, &entry.OperationID, &entry.Level, &entry.Message, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return logs, nil
}

// ClaimUnclaimed atomically claims a page of successful, unclaimed
// operations of the given type: the selected rows are marked is_taken and
// is_processed inside one statement, so two concurrent callers can never
// receive the same operation. Claiming is the only writer of is_processed;
// the flag gates retention cleanup, so an endpoint letting consumers set it
// themselves would have to take over that write instead of adding a second
// one. Returns the claimed page and the total number of unclaimed
// operations before the claim.
func (r *OperationSQLRepository) ClaimUnclaimed(opType OperationType, limit, skip int) ([]Operation, int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	var total int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM operations
		WHERE type = $1 AND status = 'success' AND is_taken = false
	`, string(opType)).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count unclaimed operations: %w", err)
	}

	rows, err := tx.Query(`
		UPDATE operations
		SET is_taken = true, is_processed = true, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM operations
			WHERE type = $1 AND status = 'success' AND is_taken = false
			ORDER BY created_at DESC
			OFFSET $3 LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, type, status, statistics, is_processed, is_taken,
		          finish_time, created_at, updated_at
	`, string(opType), limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to claim operations: %w", err)
	}

	var operations []Operation
	for rows.Next() {
		var op Operation
		err := rows.Scan(
			&op.ID, &op.Type, &op.Status, &op.Statistics, &op.IsProcessed,
			&op.IsTaken, &op.FinishTime, &op.CreatedAt, &op.UpdatedAt,
		)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan claimed operation: %w", err)
		}
		operations = append(operations, op)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, 0, fmt.Errorf("error iterating claimed operations: %w", err)
	}
	rows.Close()

	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	return operations, total, nil
}

// ListCleanupCandidates returns ids of successful, downstream-processed
// operations finished before the cutoff
func (r *OperationSQLRepository) ListCleanupCandidates(cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT id FROM operations
		WHERE status = 'success'
		  AND is_processed = true
		  AND finish_time < $1
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list cleanup candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan operation id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation ids: %w", err)
	}

	return ids, nil
}
