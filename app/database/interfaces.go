package database

import (
	"time"

	"github.com/lysyi3m/event-comb/app/event"
)

type OperationRepository interface {
	Create(opType OperationType) (string, error)
	Get(id string) (*Operation, error)
	GetOperationCount() (int, error)

	SetStatus(id string, status OperationStatus) error
	Finish(id string, status OperationStatus, statistics string) error

	AppendLog(id string, level LogLevel, message string) error
	GetLogs(id string) ([]OperationLog, error)

	ClaimUnclaimed(opType OperationType, limit, skip int) ([]Operation, int, error)
	ListCleanupCandidates(cutoff time.Time) ([]string, error)
}

type ParsedEventRepository interface {
	InsertBatch(operationID string, batchNumber int, events []event.Event) error
	GetByOperation(operationID string) ([]event.Event, error)
	GetEventCount() (int, error)

	DeleteExpired(operationIDs []string, cutoff time.Time) (int64, error)
}

type CityRepository interface {
	ListAll() ([]City, error)
}
