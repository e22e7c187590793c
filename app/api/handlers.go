package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/operation"
	"github.com/lysyi3m/event-comb/app/sources"
	"github.com/lysyi3m/event-comb/app/tasks"
)

func NewHandler(manager *operation.Manager, registry *sources.Registry,
	operations database.OperationRepository, events database.ParsedEventRepository,
	cities database.CityRepository, backend extract.Backend,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		manager:    manager,
		registry:   registry,
		operations: operations,
		events:     events,
		cities:     cities,
		backend:    backend,
		scheduler:  scheduler,
	}
}

// CreateOperation registers a new parsing operation and hands it to the
// task queue. The response returns immediately; progress is tracked through
// the results endpoint.
func (h *Handler) CreateOperation(c *gin.Context) {
	var req CreateOperationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
		})
		return
	}

	opType := database.OperationType(req.Type)
	if !slices.Contains(database.OperationTypes, opType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("Invalid operation type. Must be one of: %s", joinTypes()),
		})
		return
	}

	id, err := h.manager.Create(opType)
	if err != nil {
		slog.Error("Failed to create operation", "type", req.Type, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to create operation",
		})
		return
	}

	task := tasks.NewParseOperationTask(id, opType, req.Meta, h.registry, h.manager, h.cities, h.backend)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue parse task", "operation_id", id, "error", err)
		if failErr := h.manager.Fail(id, fmt.Errorf("failed to enqueue parsing task: %w", err)); failErr != nil {
			slog.Error("Failed to mark operation as failed", "operation_id", id, "error", failErr)
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": "Parsing queue is full, try again later",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"operationId": id,
		"message":     "Operation created and started",
	})
}

// GetResults returns one operation with every event it persisted so far.
func (h *Handler) GetResults(c *gin.Context) {
	id := c.Param("operationId")

	view, err := h.manager.GetResults(id)
	if err != nil {
		slog.Error("Failed to get operation results", "operation_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to get operation results",
		})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Operation not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"operation":   operationJSON(view),
		"events":      view.Events,
		"totalEvents": view.TotalEvents,
	})
}

// GetOperations lists unclaimed operations of one type and marks the
// returned page as taken, so every operation is handed to exactly one
// caller.
func (h *Handler) GetOperations(c *gin.Context) {
	opType := database.OperationType(c.Query("type"))
	if !slices.Contains(database.OperationTypes, opType) {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": fmt.Sprintf("Invalid operation type. Must be one of: %s", joinTypes()),
		})
		return
	}

	limit := queryInt(c, "limit", 10)
	skip := queryInt(c, "skip", 0)
	includeEvents := c.Query("includeEvents") == "true"

	views, total, err := h.manager.Claim(opType, limit, skip, includeEvents)
	if err != nil {
		slog.Error("Failed to claim operations", "type", string(opType), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Failed to list operations",
		})
		return
	}

	results := make([]OperationResultJSON, 0, len(views))
	for i := range views {
		results = append(results, OperationResultJSON{
			Operation:   operationJSON(&views[i]),
			Events:      views[i].Events,
			TotalEvents: views[i].TotalEvents,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"operations": results,
		"total":      total,
	})
}

// Cleanup deletes persisted events of processed operations older than the
// retention window.
func (h *Handler) Cleanup(c *gin.Context) {
	var req CleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
		})
		return
	}

	deleted, err := h.manager.Cleanup(req.Days, time.Now().UTC())
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "Cleanup failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"deletedCount": deleted,
		"message":      "Cleanup completed",
	})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.operations.GetOperationCount(); err == nil {
		health["operations"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if count, err := h.operations.GetOperationCount(); err == nil {
		stats["operations"] = count
	}
	if count, err := h.events.GetEventCount(); err == nil {
		stats["parsed_events"] = count
	}
	if cities, err := h.cities.ListAll(); err == nil {
		stats["cities"] = len(cities)
	}

	c.JSON(http.StatusOK, stats)
}

func operationJSON(view *operation.View) OperationJSON {
	op := view.Operation
	out := OperationJSON{
		ID:         op.ID,
		Type:       string(op.Type),
		Status:     string(op.Status),
		Statistics: op.Statistics,
		ErrorText:  view.ErrorText,
		InfoText:   view.InfoText,
		CreatedAt:  op.CreatedAt.UTC().Format(time.RFC3339),
	}
	if op.FinishTime != nil {
		finish := op.FinishTime.UTC().Format(time.RFC3339)
		out.FinishTime = &finish
	}
	return out
}

func joinTypes() string {
	names := make([]string, 0, len(database.OperationTypes))
	for _, t := range database.OperationTypes {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
