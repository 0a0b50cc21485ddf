// Package agentsim simulates AI agents working through community workflows
// with humans in the loop.
//
// An agent (welcome, contribution or triage) runs a workflow: an ordered
// list of declaratively defined steps. Automated, data collection and
// notification steps finish on their own after a simulated delay. A human
// approval step parks the execution until someone approves or rejects it.
// Every transition is published as a timestamped event.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Engine
//  2. WorkflowBuilder
//  3. Listener
//  4. LocalRunner
//
// # Engine
//
// The Engine holds registered agents and workflows, runs executions and
// answers queries. It is created with NewInMemoryEngine or
// NewEngineWithConfig and controlled with Start, Pause, Resume and Reset.
//
// ExecuteWorkflow blocks until the execution completes, fails, or parks on
// an approval:
//
//	eng := agentsim.NewInMemoryEngine()
//	_ = agentsim.RegisterDefaults(eng)
//	eng.Start(1)
//
//	exec, err := agentsim.Execute(ctx, eng, "welcome-agent", "welcome-workflow")
//	for _, a := range eng.ListPendingApprovals() {
//	    _ = agentsim.Approve(ctx, eng, a.ID, "looks good")
//	}
//
// Everything the engine returns is a snapshot. Call GetExecution again to
// observe later progress.
//
// # WorkflowBuilder
//
// WorkflowBuilder defines workflows in code; LoadWorkflows reads them from
// YAML. Both validate the result, rejecting steps that depend on steps
// declared after them.
//
// # Listener
//
// Subscribe delivers every event synchronously and in order. Use a
// ChannelListener to consume events from another goroutine:
//
//	cl := agentsim.NewChannelListener(64)
//	cl.Attach(eng)
//	defer cl.Close()
//
// # LocalRunner
//
// LocalRunner bundles an engine, an in-memory queue and worker goroutines so
// executions and approval responses can be submitted asynchronously. It is
// process-local and keeps no state across restarts.
//
// For a runnable walkthrough, see cmd/agentsim and the /examples directory.
package agentsim
