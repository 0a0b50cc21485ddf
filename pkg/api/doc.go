// Package api contains the core building blocks used by the agentsim
// simulation engine: the domain model for agents, workflows, executions,
// approvals and events, the Engine interface, and the Observer hooks.
//
// Most users interact with the higher-level agentsim package, which
// re-exports selected types and constructors from this package. The api
// package is intended for custom integrations (for example a presentation
// layer subscribing to events) or contributors extending the engine itself.
//
// # Concepts
//
//   - Agents: named roles (welcome, contribution, triage) whose status and
//     metrics are maintained by the engine.
//   - Workflows: immutable templates made of ordered steps with
//     dependencies and a typed per-step configuration.
//   - Executions: live runs of a workflow bound to a contributor and
//     repository context.
//   - Approvals: human decision points that park an execution until a
//     response is recorded.
//   - Events: an append-only, totally ordered stream of SimulationEvent
//     values delivered to subscribers.
//
// # Tagged unions
//
// Step configuration, step output and event payloads are sealed interfaces
// (StepConfig, StepOutput, EventData). Each variant carries only the fields
// relevant to it, so callers switch on the concrete type instead of reading
// string keys:
//
//	switch d := ev.Data.(type) {
//	case api.ApprovalRequestedData:
//	    fmt.Println("approval needed:", d.Title)
//	case api.WorkflowCompleteData:
//	    fmt.Println("finished with", d.Status)
//	}
//
// # Snapshots
//
// Every value returned by an Engine is a deep copy. Mutating it has no
// effect on the engine; call GetExecution again to observe progress.
//
// # Observability
//
// The Observer interface receives lifecycle callbacks for logging and
// metrics. LoggingObserver, BasicMetrics and CompositeObserver are ready to
// use implementations.
package api
