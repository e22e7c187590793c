package api

import (
	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/operation"
	"github.com/lysyi3m/event-comb/app/sources"
	"github.com/lysyi3m/event-comb/app/tasks"
)

type Handler struct {
	manager    *operation.Manager
	registry   *sources.Registry
	operations database.OperationRepository
	events     database.ParsedEventRepository
	cities     database.CityRepository
	backend    extract.Backend
	scheduler  tasks.TaskSchedulerInterface
}

// CreateOperationRequest starts one parsing operation. Meta carries the
// adapter parameters, including the optional inline gazetteer.
type CreateOperationRequest struct {
	Type string       `json:"type" binding:"required"`
	Meta sources.Meta `json:"meta"`
}

type CleanupRequest struct {
	Days int `json:"days"`
}

// OperationJSON is the wire shape of an operation, with the flat info and
// error texts clients consume.
type OperationJSON struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Statistics string  `json:"statistics"`
	ErrorText  string  `json:"errorText"`
	InfoText   string  `json:"infoText"`
	CreatedAt  string  `json:"createdAt"`
	FinishTime *string `json:"finish_time"`
}

type OperationResultJSON struct {
	Operation   OperationJSON `json:"operation"`
	Events      []event.Event `json:"events,omitempty"`
	TotalEvents int           `json:"totalEvents"`
}
