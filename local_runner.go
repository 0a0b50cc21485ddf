package agentsim

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/petrijr/agentsim/internal/taskqueue"
	"github.com/petrijr/agentsim/pkg/worker"
)

// ErrRunnerStarted is returned by StartWorkers when workers are already
// running.
var ErrRunnerStarted = errors.New("agentsim: LocalRunner already started")

// LocalRunner bundles an Engine, an in-memory task queue, and a Worker so
// executions and approval responses can be submitted without blocking the
// caller.
//
// Typical usage:
//
//	runner := agentsim.NewLocalRunner()
//	_ = agentsim.RegisterDefaults(runner.Engine)
//	runner.Engine.Start(1)
//
//	_ = runner.StartWorkers(ctx, 2)
//	_ = runner.StartWorkflowAsync(ctx, agentsim.ExecuteRequest{AgentID: "welcome-agent", WorkflowID: "welcome-workflow"})
//	...
//	runner.Stop()
type LocalRunner struct {
	// Engine is the simulation engine used by this runner.
	Engine Engine

	// Queue is the in-memory task queue used by the Worker.
	Queue taskqueue.Queue

	// Worker processes tasks from Queue using Engine.
	Worker *worker.Worker

	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine
// with default step delays.
func NewLocalRunner() *LocalRunner {
	return NewLocalRunnerWithEngine(NewInMemoryEngine(), nil)
}

// NewLocalRunnerWithEngine constructs a LocalRunner around eng. A nil
// logger means slog.Default().
func NewLocalRunnerWithEngine(eng Engine, logger *slog.Logger) *LocalRunner {
	if logger == nil {
		logger = slog.Default()
	}
	q := taskqueue.NewInMemoryQueue(1024)
	return &LocalRunner{
		Engine: eng,
		Queue:  q,
		Worker: worker.New(eng, q, logger),
		logger: logger,
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns
// ErrRunnerStarted.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrRunnerStarted
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		log := r.logger.With("worker", i)
		go func() {
			defer r.wg.Done()

			for {
				processed, err := r.Worker.ProcessOne(ctx)
				if !processed {
					// Cancellation and a closed queue are clean shutdown signals.
					if err == nil || ctx.Err() != nil || errors.Is(err, taskqueue.ErrClosed) {
						return
					}
					log.Warn("dequeue failed", "error", err)
					continue
				}
				if err != nil {
					// A single bad task must not kill the worker loop.
					log.Error("task failed", "error", err)
				}
			}
		}()
	}

	r.logger.Debug("local runner started", "workers", concurrency)
	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit. Executions still inside their step delays are
// cancelled with them.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Debug("local runner stopped")
}

// StartWorkflowAsync enqueues an execution request. The agent and workflow
// must already be registered on LocalRunner.Engine.
func (r *LocalRunner) StartWorkflowAsync(ctx context.Context, req ExecuteRequest) error {
	return r.Worker.EnqueueExecuteWorkflow(ctx, req)
}

// RespondAsync enqueues a response to a pending approval.
func (r *LocalRunner) RespondAsync(ctx context.Context, approvalID string, resp ApprovalResponse) error {
	return r.Worker.EnqueueApprovalResponse(ctx, approvalID, resp)
}
