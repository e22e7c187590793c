package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the API layer to hand off parsing work without blocking request
// handling.
// Example usage:
//
//	scheduler := NewScheduler(workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewParseOperationTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
