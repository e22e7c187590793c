package operation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
)

const (
	// BatchSize is how many events one parsed_events insert carries.
	BatchSize = 10

	// DefaultRetentionDays is the cleanup cutoff when a request does not
	// name one.
	DefaultRetentionDays = 30
)

// Statistics summarizes a finished operation. Stored as JSON in the
// operation's statistics column.
type Statistics struct {
	Total   int `json:"total"`
	Batches int `json:"batches"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}

// View is an operation with its reconstructed log texts and, optionally,
// its persisted events.
type View struct {
	Operation   database.Operation
	InfoText    string
	ErrorText   string
	Events      []event.Event
	TotalEvents int
}

// Manager drives the operation lifecycle: pending on creation, processing
// when a pipeline starts, success or error once it finishes. Terminal
// statuses are never reverted.
type Manager struct {
	operations database.OperationRepository
	events     database.ParsedEventRepository
}

func NewManager(operations database.OperationRepository, events database.ParsedEventRepository) *Manager {
	return &Manager{operations: operations, events: events}
}

// Create registers a new pending operation of the given type.
func (m *Manager) Create(opType database.OperationType) (string, error) {
	if !slices.Contains(database.OperationTypes, opType) {
		return "", fmt.Errorf("invalid operation type: %s", opType)
	}
	id, err := m.operations.Create(opType)
	if err != nil {
		return "", fmt.Errorf("failed to create operation: %w", err)
	}
	if err := m.operations.AppendLog(id, database.LogLevelInfo, "Operation created, starting parsing..."); err != nil {
		slog.Error("Failed to append operation log", "operation_id", id, "error", err)
	}
	return id, nil
}

// Start marks an operation as processing and writes its initial log line.
func (m *Manager) Start(id string) error {
	if err := m.operations.SetStatus(id, database.OperationStatusProcessing); err != nil {
		return fmt.Errorf("failed to start operation: %w", err)
	}
	if err := m.operations.AppendLog(id, database.LogLevelInfo, "Parsing started..."); err != nil {
		slog.Error("Failed to append operation log", "operation_id", id, "error", err)
	}
	return nil
}

// Complete finishes an operation as success, stamping finish_time and the
// statistics summary.
func (m *Manager) Complete(id string, stats Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal statistics: %w", err)
	}
	if err := m.operations.Finish(id, database.OperationStatusSuccess, string(data)); err != nil {
		return fmt.Errorf("failed to complete operation: %w", err)
	}
	return nil
}

// Fail finishes an operation as error, recording the fatal cause in its
// log.
func (m *Manager) Fail(id string, cause error) error {
	message := "Unknown error occurred"
	if cause != nil {
		message = cause.Error()
	}
	if err := m.operations.AppendLog(id, database.LogLevelError, message); err != nil {
		slog.Error("Failed to append operation log", "operation_id", id, "error", err)
	}
	if err := m.operations.Finish(id, database.OperationStatusError, ""); err != nil {
		return fmt.Errorf("failed to fail operation: %w", err)
	}
	return nil
}

// Reporter streams adapter progress into one operation's log and counts the
// reported problems. Safe for concurrent use.
type Reporter struct {
	manager     *Manager
	operationID string
	errors      atomic.Int64
}

func (m *Manager) Reporter(operationID string) *Reporter {
	return &Reporter{manager: m, operationID: operationID}
}

func (r *Reporter) Progress(message string) {
	if err := r.manager.operations.AppendLog(r.operationID, database.LogLevelInfo, message); err != nil {
		slog.Error("Failed to append operation log", "operation_id", r.operationID, "error", err)
	}
}

func (r *Reporter) Problem(message string) {
	r.errors.Add(1)
	if err := r.manager.operations.AppendLog(r.operationID, database.LogLevelError, message); err != nil {
		slog.Error("Failed to append operation log", "operation_id", r.operationID, "error", err)
	}
}

// ErrorCount returns how many problems were reported so far.
func (r *Reporter) ErrorCount() int {
	return int(r.errors.Load())
}

// PersistEvents stores events in numbered batches, logging a progress line
// after each one. The first failing batch aborts persistence. Returns the
// number of batches written.
func (m *Manager) PersistEvents(id string, events []event.Event, reporter *Reporter) (int, error) {
	total := len(events)
	if total == 0 {
		return 0, nil
	}
	batches := (total + BatchSize - 1) / BatchSize

	for i := 0; i < total; i += BatchSize {
		end := i + BatchSize
		if end > total {
			end = total
		}
		batchNumber := i/BatchSize + 1
		if err := m.events.InsertBatch(id, batchNumber, events[i:end]); err != nil {
			return batchNumber - 1, fmt.Errorf("failed to save events: %w", err)
		}
		reporter.Progress(fmt.Sprintf("Processed %d of %d events. Batch %d of %d", end, total, batchNumber, batches))
	}
	return batches, nil
}

// GetResults returns one operation with all of its events, or nil when the
// operation does not exist.
func (m *Manager) GetResults(id string) (*View, error) {
	op, err := m.operations.Get(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	if op == nil {
		return nil, nil
	}

	view, err := m.buildView(*op, true)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Claim returns a page of unclaimed operations of the given type, marking
// every returned operation as taken in the same database transaction so
// concurrent claimers never see the same operation twice.
func (m *Manager) Claim(opType database.OperationType, limit, skip int, includeEvents bool) ([]View, int, error) {
	if !slices.Contains(database.OperationTypes, opType) {
		return nil, 0, fmt.Errorf("invalid operation type: %s", opType)
	}
	ops, total, err := m.operations.ClaimUnclaimed(opType, limit, skip)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to claim operations: %w", err)
	}

	views := make([]View, 0, len(ops))
	for _, op := range ops {
		view, err := m.buildView(op, includeEvents)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, *view)
	}
	return views, total, nil
}

// Cleanup deletes the persisted events of already-processed successful
// operations older than the retention window. Operation rows themselves are
// retained as an audit trail.
func (m *Manager) Cleanup(days int, now time.Time) (int64, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := now.AddDate(0, 0, -days)

	ids, err := m.operations.ListCleanupCandidates(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list cleanup candidates: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := m.events.DeleteExpired(ids, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}
	slog.Info("Cleanup completed", "operations", len(ids), "deleted_events", deleted, "cutoff", cutoff)
	return deleted, nil
}

func (m *Manager) buildView(op database.Operation, includeEvents bool) (*View, error) {
	logs, err := m.operations.GetLogs(op.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation logs: %w", err)
	}
	view := &View{Operation: op}
	view.InfoText, view.ErrorText = BuildTexts(logs)

	if includeEvents {
		events, err := m.events.GetByOperation(op.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get operation events: %w", err)
		}
		view.Events = events
		view.TotalEvents = len(events)
	}
	return view, nil
}
