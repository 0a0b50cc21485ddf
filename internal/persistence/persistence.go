package persistence

// Persistence bundles the store interfaces so the engine can depend on a
// single abstraction.
type Persistence struct {
	Agents     AgentStore
	Workflows  WorkflowStore
	Executions ExecutionStore
	Events     EventStore
}

// NewInMemory returns a Persistence backed by one InMemoryStore and a ring
// event store of the given capacity.
func NewInMemory(eventCapacity int) Persistence {
	mem := NewInMemoryStore()
	return Persistence{
		Agents:     mem,
		Workflows:  mem,
		Executions: mem,
		Events:     NewRingEventStore(eventCapacity),
	}
}
