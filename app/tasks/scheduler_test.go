package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubTask struct {
	Task
	execErr  error
	executed atomic.Int64
	done     chan struct{}
}

func newStubTask(execErr error) *stubTask {
	return &stubTask{
		Task:    NewTask(TaskTypeParseOperation, "op-1"),
		execErr: execErr,
		done:    make(chan struct{}, 10),
	}
}

func (t *stubTask) Execute(ctx context.Context) error {
	t.executed.Add(1)
	t.done <- struct{}{}
	return t.execErr
}

func waitForExecution(t *testing.T, task *stubTask) {
	t.Helper()
	select {
	case <-task.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for task execution")
	}
}

func TestScheduler_ExecutesEnqueuedTask(t *testing.T) {
	scheduler := NewScheduler(2)
	scheduler.Start()
	defer scheduler.Stop()

	task := newStubTask(nil)
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}

	waitForExecution(t, task)
	if task.executed.Load() != 1 {
		t.Errorf("Expected 1 execution, got %d", task.executed.Load())
	}
	if task.StartedAt == nil {
		t.Error("Expected task start time to be set")
	}
}

func TestScheduler_FailedTaskWithoutRetriesRunsOnce(t *testing.T) {
	scheduler := NewScheduler(1)
	scheduler.Start()
	defer scheduler.Stop()

	task := newStubTask(errors.New("boom"))
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}

	waitForExecution(t, task)
	time.Sleep(100 * time.Millisecond)
	if task.executed.Load() != 1 {
		t.Errorf("Expected no retries with MaxRetries 0, got %d executions", task.executed.Load())
	}
}

func TestScheduler_RetriesFailedTask(t *testing.T) {
	scheduler := NewScheduler(1)
	scheduler.Start()
	defer scheduler.Stop()

	task := newStubTask(errors.New("boom"))
	task.MaxRetries = 1
	if err := scheduler.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask failed: %v", err)
	}

	waitForExecution(t, task)
	waitForExecution(t, task)
	if task.executed.Load() != 2 {
		t.Errorf("Expected 2 executions with 1 retry, got %d", task.executed.Load())
	}
}

func TestScheduler_EnqueueFailsWhenQueueFull(t *testing.T) {
	// scheduler is never started, so nothing drains the queue
	scheduler := NewScheduler(1)

	var err error
	for i := 0; i < 101; i++ {
		err = scheduler.EnqueueTask(newStubTask(nil))
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatal("Expected an error once the queue is full")
	}
	if err.Error() != "task queue is full" {
		t.Errorf("Expected queue full error, got: %v", err)
	}
}
