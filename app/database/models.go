package database

import (
	"time"
)

type OperationType string

const (
	OperationTypeFienta      OperationType = "parsingEventsFromFienta"
	OperationTypeKontramarka OperationType = "parsingEventsFromKontramarka"
	OperationTypeEventim     OperationType = "parsingEventsFromEventim"
)

// OperationTypes lists every valid operation type for request validation.
var OperationTypes = []OperationType{
	OperationTypeFienta,
	OperationTypeKontramarka,
	OperationTypeEventim,
}

type OperationStatus string

const (
	OperationStatusPending    OperationStatus = "pending"
	OperationStatusProcessing OperationStatus = "processing"
	OperationStatusSuccess    OperationStatus = "success"
	OperationStatusError      OperationStatus = "error"
)

// IsTerminal reports whether a status ends the operation lifecycle.
// Terminal statuses are never reverted.
func (s OperationStatus) IsTerminal() bool {
	return s == OperationStatusSuccess || s == OperationStatusError
}

// Operation is one ingestion job instance with its own lifecycle and audit
// log. The human-readable info/error texts are reconstructed at read time
// from operation_logs rows.
type Operation struct {
	ID          string
	Type        OperationType
	Status      OperationStatus
	Statistics  string
	IsProcessed bool
	IsTaken     bool
	FinishTime  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
)

// OperationLog is one structured progress line of an operation's audit
// trail.
type OperationLog struct {
	ID          int64
	OperationID string
	Level       LogLevel
	Message     string
	CreatedAt   time.Time
}

// City is a gazetteer entry as stored in the database.
type City struct {
	ID          string
	CountryID   string
	Name        string
	Sort        int
	Coordinates string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
