// Package worker provides the background worker that feeds queued requests
// into a simulation engine.
//
// A Worker owns no goroutines. Callers enqueue work with
// EnqueueExecuteWorkflow and EnqueueApprovalResponse and pull it with
// ProcessOne, usually from a loop such as the one run by
// agentsim.LocalRunner. Several workers may share one queue.
//
// ExecuteWorkflow blocks until the execution finishes or parks on a human
// approval, so a worker processing an execute task is busy for the whole
// simulated run. Approval responses are cheap by comparison; run enough
// workers that responses are not starved by long executions.
package worker
