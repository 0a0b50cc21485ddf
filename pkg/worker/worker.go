package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/petrijr/agentsim/internal/taskqueue"
	"github.com/petrijr/agentsim/pkg/api"
)

// ErrInvalidTask is returned by ProcessOne for tasks whose payload does not
// match their type.
var ErrInvalidTask = errors.New("invalid task")

// Worker pulls tasks from a Queue and applies them to an Engine.
type Worker struct {
	engine api.Engine
	queue  taskqueue.Queue
	logger *slog.Logger
}

// New creates a new Worker. A nil logger means slog.Default().
func New(engine api.Engine, queue taskqueue.Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		engine: engine,
		queue:  queue,
		logger: logger,
	}
}

// EnqueueExecuteWorkflow enqueues a request to run a workflow. It does NOT
// run the workflow itself; that is done by ProcessOne.
func (w *Worker) EnqueueExecuteWorkflow(ctx context.Context, req api.ExecuteRequest) error {
	t := taskqueue.Task{
		Type:       taskqueue.TaskTypeExecuteWorkflow,
		Execute:    &req,
		EnqueuedAt: time.Now(),
	}
	return w.queue.Enqueue(ctx, t)
}

// EnqueueApprovalResponse enqueues a response to a pending approval.
func (w *Worker) EnqueueApprovalResponse(ctx context.Context, approvalID string, resp api.ApprovalResponse) error {
	t := taskqueue.Task{
		Type:       taskqueue.TaskTypeRespondApproval,
		ApprovalID: approvalID,
		Response:   &resp,
		EnqueuedAt: time.Now(),
	}
	return w.queue.Enqueue(ctx, t)
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false: no task was obtained (ctx cancelled or queue closed).
//   - processed == true: a task was processed; err reports whether the
//     engine accepted it.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	log := w.logger.With("task_id", task.ID, "task_type", task.Type)
	log.Debug("processing task", "queued_for", time.Since(task.EnqueuedAt))

	switch task.Type {
	case taskqueue.TaskTypeExecuteWorkflow:
		if task.Execute == nil {
			return true, fmt.Errorf("%w: %s task without request", ErrInvalidTask, task.Type)
		}
		exec, runErr := w.engine.ExecuteWorkflow(ctx, *task.Execute)
		if exec != nil {
			log.Debug("execution returned",
				"execution_id", exec.ID,
				"status", exec.Status,
			)
		}
		return true, runErr

	case taskqueue.TaskTypeRespondApproval:
		if task.Response == nil || task.ApprovalID == "" {
			return true, fmt.Errorf("%w: %s task without response", ErrInvalidTask, task.Type)
		}
		return true, w.engine.RespondToApproval(ctx, task.ApprovalID, *task.Response)

	default:
		// Unknown task type; mark as processed but return an error so this isn't silently ignored.
		return true, fmt.Errorf("%w: unknown task type %q", ErrInvalidTask, task.Type)
	}
}
