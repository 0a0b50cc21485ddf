package persistence

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/hashicorp/go-memdb"

	"github.com/petrijr/agentsim/pkg/api"
)

const (
	tableAgents     = "agents"
	tableWorkflows  = "workflows"
	tableExecutions = "executions"
	tableApprovals  = "approvals"
)

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableAgents: {
				Name: tableAgents,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
			tableWorkflows: {
				Name: tableWorkflows,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
				},
			},
			tableExecutions: {
				Name: tableExecutions,
				Indexes: map[string]*memdb.IndexSchema{
					"id":       {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					"agent":    {Name: "agent", AllowMissing: true, Indexer: &memdb.StringFieldIndex{Field: "AgentID"}},
					"workflow": {Name: "workflow", AllowMissing: true, Indexer: &memdb.StringFieldIndex{Field: "WorkflowID"}},
					"status":   {Name: "status", AllowMissing: true, Indexer: &memdb.StringFieldIndex{Field: "Status"}},
				},
			},
			tableApprovals: {
				Name: tableApprovals,
				Indexes: map[string]*memdb.IndexSchema{
					"id":        {Name: "id", Unique: true, Indexer: &memdb.StringFieldIndex{Field: "ID"}},
					"execution": {Name: "execution", AllowMissing: true, Indexer: &memdb.StringFieldIndex{Field: "ExecutionID"}},
				},
			},
		},
	}
}

// InMemoryStore implements AgentStore, WorkflowStore and ExecutionStore on
// top of go-memdb. Objects are copied on the way in and on the way out, so
// stored values are never mutated after insertion.
type InMemoryStore struct {
	db *memdb.MemDB
}

// Ensure InMemoryStore implements the interfaces.
var (
	_ AgentStore     = (*InMemoryStore)(nil)
	_ WorkflowStore  = (*InMemoryStore)(nil)
	_ ExecutionStore = (*InMemoryStore)(nil)
)

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		// The schema is static; a failure here is a programming error.
		panic(fmt.Sprintf("persistence: invalid memdb schema: %v", err))
	}
	return &InMemoryStore{db: db}
}

func (s *InMemoryStore) SaveAgent(agent api.Agent) error {
	a := agent.Clone()
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableAgents, &a); err != nil {
		return fmt.Errorf("save agent %q: %w", agent.ID, err)
	}
	txn.Commit()
	return nil
}

func (s *InMemoryStore) GetAgent(id string) (api.Agent, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableAgents, "id", id)
	if err != nil {
		return api.Agent{}, err
	}
	if raw == nil {
		return api.Agent{}, ErrAgentNotFound
	}
	return raw.(*api.Agent).Clone(), nil
}

func (s *InMemoryStore) ListAgents() ([]api.Agent, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableAgents, "id")
	if err != nil {
		return nil, err
	}
	var out []api.Agent
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*api.Agent).Clone())
	}
	return out, nil
}

func (s *InMemoryStore) SaveWorkflow(wf api.Workflow) error {
	w := wf.Clone()
	txn := s.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableWorkflows, &w); err != nil {
		return fmt.Errorf("save workflow %q: %w", wf.ID, err)
	}
	txn.Commit()
	return nil
}

func (s *InMemoryStore) GetWorkflow(id string) (api.Workflow, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableWorkflows, "id", id)
	if err != nil {
		return api.Workflow{}, err
	}
	if raw == nil {
		return api.Workflow{}, ErrWorkflowNotFound
	}
	return raw.(*api.Workflow).Clone(), nil
}

func (s *InMemoryStore) ListWorkflows() ([]api.Workflow, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableWorkflows, "id")
	if err != nil {
		return nil, err
	}
	var out []api.Workflow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*api.Workflow).Clone())
	}
	return out, nil
}

func (s *InMemoryStore) Commit(c Changeset) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if c.Execution != nil {
		if err := txn.Insert(tableExecutions, c.Execution.Clone()); err != nil {
			return fmt.Errorf("save execution %q: %w", c.Execution.ID, err)
		}
	}

	if c.AgentID != "" && c.UpdateAgent != nil {
		raw, err := txn.First(tableAgents, "id", c.AgentID)
		if err != nil {
			return err
		}
		if raw == nil {
			return fmt.Errorf("update agent %q: %w", c.AgentID, ErrAgentNotFound)
		}
		a := raw.(*api.Agent).Clone()
		c.UpdateAgent(&a)
		if err := txn.Insert(tableAgents, &a); err != nil {
			return fmt.Errorf("update agent %q: %w", c.AgentID, err)
		}
	}

	if c.AddApproval != nil {
		a := c.AddApproval.Clone()
		if err := txn.Insert(tableApprovals, &a); err != nil {
			return fmt.Errorf("save approval %q: %w", a.ID, err)
		}
	}

	if c.RemoveApproval != "" {
		raw, err := txn.First(tableApprovals, "id", c.RemoveApproval)
		if err != nil {
			return err
		}
		if raw == nil {
			return fmt.Errorf("remove approval %q: %w", c.RemoveApproval, ErrApprovalNotFound)
		}
		if err := txn.Delete(tableApprovals, raw); err != nil {
			return err
		}
	}

	txn.Commit()
	return nil
}

func (s *InMemoryStore) GetExecution(id string) (*api.WorkflowExecution, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableExecutions, "id", id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrExecutionNotFound
	}
	return raw.(*api.WorkflowExecution).Clone(), nil
}

func (s *InMemoryStore) ListExecutions(filter ExecutionFilter) ([]*api.WorkflowExecution, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	var (
		it  memdb.ResultIterator
		err error
	)
	switch {
	case filter.AgentID != "":
		it, err = txn.Get(tableExecutions, "agent", filter.AgentID)
	case filter.WorkflowID != "":
		it, err = txn.Get(tableExecutions, "workflow", filter.WorkflowID)
	case filter.Status != "":
		it, err = txn.Get(tableExecutions, "status", string(filter.Status))
	default:
		it, err = txn.Get(tableExecutions, "id")
	}
	if err != nil {
		return nil, err
	}

	var result []*api.WorkflowExecution
	for raw := it.Next(); raw != nil; raw = it.Next() {
		exec := raw.(*api.WorkflowExecution)
		if filter.AgentID != "" && exec.AgentID != filter.AgentID {
			continue
		}
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		if filter.ActiveOnly && exec.IsTerminal() {
			continue
		}
		result = append(result, exec.Clone())
	}

	// Creation order, with the ID as a stable tie-break.
	slices.SortFunc(result, func(a, b *api.WorkflowExecution) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *InMemoryStore) GetApproval(id string) (api.ApprovalRequest, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	raw, err := txn.First(tableApprovals, "id", id)
	if err != nil {
		return api.ApprovalRequest{}, err
	}
	if raw == nil {
		return api.ApprovalRequest{}, ErrApprovalNotFound
	}
	return raw.(*api.ApprovalRequest).Clone(), nil
}

func (s *InMemoryStore) ListApprovals() ([]api.ApprovalRequest, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	it, err := txn.Get(tableApprovals, "id")
	if err != nil {
		return nil, err
	}
	var out []api.ApprovalRequest
	for raw := it.Next(); raw != nil; raw = it.Next() {
		out = append(out, raw.(*api.ApprovalRequest).Clone())
	}
	slices.SortFunc(out, func(a, b api.ApprovalRequest) int {
		if c := a.RequestedAt.Compare(b.RequestedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *InMemoryStore) ClearRuntime(resetAgent func(*api.Agent)) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tableExecutions, "id"); err != nil {
		return err
	}
	if _, err := txn.DeleteAll(tableApprovals, "id"); err != nil {
		return err
	}

	if resetAgent != nil {
		it, err := txn.Get(tableAgents, "id")
		if err != nil {
			return err
		}
		// Collect first: inserting while iterating the same table is not
		// safe in a write transaction.
		var agents []api.Agent
		for raw := it.Next(); raw != nil; raw = it.Next() {
			agents = append(agents, raw.(*api.Agent).Clone())
		}
		for i := range agents {
			resetAgent(&agents[i])
			if err := txn.Insert(tableAgents, &agents[i]); err != nil {
				return err
			}
		}
	}

	txn.Commit()
	return nil
}
