package taskqueue

import (
	"context"
	"time"

	"github.com/petrijr/agentsim/pkg/api"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	TaskTypeExecuteWorkflow TaskType = "execute-workflow"
	TaskTypeRespondApproval TaskType = "respond-approval"
)

// Task represents a unit of work for the worker.
type Task struct {
	ID   string
	Type TaskType

	// For execute-workflow tasks
	Execute *api.ExecuteRequest

	// For respond-approval tasks
	ApprovalID string
	Response   *api.ApprovalResponse

	EnqueuedAt time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
