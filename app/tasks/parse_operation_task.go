package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/geo"
	"github.com/lysyi3m/event-comb/app/operation"
	"github.com/lysyi3m/event-comb/app/sources"
)

// ParseOperationTask executes one parsing operation end to end: builds the
// operation-scoped gazetteer snapshot, runs the source adapter, merges
// duplicates and persists the result in batches. Parse failures are
// recorded on the operation itself, so the task is never retried.
type ParseOperationTask struct {
	Task
	opType   database.OperationType
	meta     sources.Meta
	registry *sources.Registry
	manager  *operation.Manager
	cities   database.CityRepository
	backend  extract.Backend
}

func NewParseOperationTask(operationID string, opType database.OperationType, meta sources.Meta,
	registry *sources.Registry, manager *operation.Manager, cities database.CityRepository,
	backend extract.Backend) *ParseOperationTask {
	return &ParseOperationTask{
		Task:     NewTask(TaskTypeParseOperation, operationID),
		opType:   opType,
		meta:     meta,
		registry: registry,
		manager:  manager,
		cities:   cities,
		backend:  backend,
	}
}

func (t *ParseOperationTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.manager.Start(t.OperationID); err != nil {
		return err
	}

	adapter, ok := t.registry.Get(t.opType)
	if !ok {
		err := fmt.Errorf("unknown parser type: %s", t.opType)
		t.failOperation(err)
		return err
	}

	gazetteer, err := t.buildGazetteer()
	if err != nil {
		t.failOperation(err)
		return err
	}

	reporter := t.manager.Reporter(t.OperationID)
	job := &sources.Job{
		OperationID: t.OperationID,
		Meta:        t.meta,
		Gazetteer:   gazetteer,
		Backend:     t.backend,
		Reporter:    reporter,
		Now:         time.Now().UTC(),
	}

	result, err := adapter.Run(ctx, job)
	if err != nil {
		t.failOperation(err)
		return err
	}

	merged := event.Merge(result.Events)

	batches, err := t.manager.PersistEvents(t.OperationID, merged, reporter)
	if err != nil {
		t.failOperation(err)
		return err
	}

	stats := operation.Statistics{
		Total:   len(merged),
		Batches: batches,
		Errors:  reporter.ErrorCount(),
		Skipped: result.Skipped,
	}
	if err := t.manager.Complete(t.OperationID, stats); err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", "ParseOperation",
		"operation_id", t.OperationID,
		"operation_type", string(t.opType),
		"duration", t.GetDuration(),
		"total", stats.Total,
		"batches", stats.Batches,
		"errors", stats.Errors,
		"skipped", stats.Skipped)
	return nil
}

// buildGazetteer snapshots the gazetteer for this operation: the inline
// city list from the job when one was supplied, the cities table otherwise.
func (t *ParseOperationTask) buildGazetteer() (*geo.Gazetteer, error) {
	if len(t.meta.Cities) > 0 {
		cities := make([]geo.City, 0, len(t.meta.Cities))
		for _, c := range t.meta.Cities {
			cities = append(cities, geo.City{
				ID:          c.ID,
				CountryID:   c.CountryID,
				Name:        c.Name,
				Coordinates: c.Coordinates,
			})
		}
		return geo.NewGazetteer(cities), nil
	}

	rows, err := t.cities.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to load cities: %w", err)
	}
	cities := make([]geo.City, 0, len(rows))
	for _, c := range rows {
		cities = append(cities, geo.City{
			ID:          c.ID,
			CountryID:   c.CountryID,
			Name:        c.Name,
			Coordinates: c.Coordinates,
		})
	}
	return geo.NewGazetteer(cities), nil
}

func (t *ParseOperationTask) failOperation(cause error) {
	if err := t.manager.Fail(t.OperationID, cause); err != nil {
		slog.Error("Failed to mark operation as failed", "operation_id", t.OperationID, "error", err)
	}
}
