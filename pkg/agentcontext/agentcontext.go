// Package agentcontext is the boundary between a simulation engine and
// presentation code such as the CLI demo.
//
// A Provider registers the catalog agents and workflows, follows the
// engine's event stream and keeps a denormalized ViewModel that is rebuilt
// on every event. Presentation code reads View() or subscribes for
// updates, and drives the simulation through the action methods.
package agentcontext

import (
	"context"
	"log/slog"
	"slices"

	"github.com/sasha-s/go-deadlock"

	"github.com/petrijr/agentsim/pkg/api"
	"github.com/petrijr/agentsim/pkg/catalog"
)

// DefaultEventBuffer is the number of events kept in the view.
const DefaultEventBuffer = 100

// Options configures a Provider.
type Options struct {
	// EventBuffer caps ViewModel.Events. Zero means DefaultEventBuffer.
	EventBuffer int

	Logger *slog.Logger

	// Agents and Workflows are registered by Init. Nil means the catalog
	// defaults.
	Agents    []api.Agent
	Workflows []api.Workflow
}

// ViewModel is a snapshot of everything a dashboard shows.
type ViewModel struct {
	Agents           []api.Agent
	ActiveWorkflows  []*api.WorkflowExecution
	PendingApprovals []api.ApprovalRequest
	// Events holds the newest events first.
	Events []api.SimulationEvent
	Status api.SimulationStatus
}

func (v ViewModel) clone() ViewModel {
	out := ViewModel{
		Agents:           make([]api.Agent, len(v.Agents)),
		ActiveWorkflows:  make([]*api.WorkflowExecution, len(v.ActiveWorkflows)),
		PendingApprovals: make([]api.ApprovalRequest, len(v.PendingApprovals)),
		Events:           slices.Clone(v.Events),
		Status:           v.Status,
	}
	for i, a := range v.Agents {
		out.Agents[i] = a.Clone()
	}
	for i, e := range v.ActiveWorkflows {
		out.ActiveWorkflows[i] = e.Clone()
	}
	for i, r := range v.PendingApprovals {
		out.PendingApprovals[i] = r.Clone()
	}
	return out
}

type viewSubscriber struct {
	id int
	fn func(ViewModel)
}

// Provider adapts an api.Engine for presentation code. It is safe for
// concurrent use.
//
// Subscribers run on the goroutine that produced the engine event and must
// not call Provider actions synchronously.
type Provider struct {
	engine    api.Engine
	logger    *slog.Logger
	buffer    int
	agents    []api.Agent
	workflows []api.Workflow

	// refreshMu orders rebuilds so an older engine read never replaces a
	// newer view.
	refreshMu deadlock.Mutex

	mu      deadlock.Mutex
	view    ViewModel
	unsub   func()
	subs    []viewSubscriber
	nextSub int
}

// New creates a Provider for engine. Call Init before use.
func New(engine api.Engine, opts Options) *Provider {
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Agents == nil {
		opts.Agents = catalog.DefaultAgents()
	}
	if opts.Workflows == nil {
		opts.Workflows = catalog.DefaultWorkflows()
	}
	return &Provider{
		engine:    engine,
		logger:    opts.Logger.With("component", "agentcontext"),
		buffer:    opts.EventBuffer,
		agents:    opts.Agents,
		workflows: opts.Workflows,
	}
}

// Init registers agents and workflows, subscribes to engine events and
// builds the first view. Calling Init again only refreshes.
func (p *Provider) Init() error {
	p.mu.Lock()
	initialized := p.unsub != nil
	p.mu.Unlock()

	if !initialized {
		for _, a := range p.agents {
			if err := p.engine.RegisterAgent(a); err != nil {
				return err
			}
		}
		for _, wf := range p.workflows {
			if err := p.engine.RegisterWorkflow(wf); err != nil {
				return err
			}
		}

		unsub := p.engine.Subscribe(p.onEvent)
		p.mu.Lock()
		p.unsub = unsub
		p.mu.Unlock()

		p.logger.Debug("provider initialized",
			"agents", len(p.agents),
			"workflows", len(p.workflows),
		)
	}

	p.RefreshData()
	return nil
}

// Close stops following engine events. The last view stays readable.
func (p *Provider) Close() {
	p.mu.Lock()
	unsub := p.unsub
	p.unsub = nil
	p.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// View returns a copy of the current view model.
func (p *Provider) View() ViewModel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.view.clone()
}

// Subscribe registers fn to receive the view after every rebuild. The
// returned function removes it.
func (p *Provider) Subscribe(fn func(ViewModel)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.subs = append(p.subs, viewSubscriber{id: id, fn: fn})
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.subs = slices.DeleteFunc(p.subs, func(s viewSubscriber) bool { return s.id == id })
	}
}

func (p *Provider) onEvent(api.SimulationEvent) {
	p.RefreshData()
}

// RefreshData rebuilds the view from the engine and notifies subscribers.
// Rebuilds are serialized; subscribers see views in the order they were
// read.
func (p *Provider) RefreshData() {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	recent := p.engine.RecentEvents(p.buffer)
	slices.Reverse(recent)

	v := ViewModel{
		Agents:           p.engine.ListAgents(),
		ActiveWorkflows:  p.engine.ListActiveExecutions(),
		PendingApprovals: p.engine.ListPendingApprovals(),
		Events:           recent,
		Status:           p.engine.Status(),
	}

	p.mu.Lock()
	p.view = v
	subs := slices.Clone(p.subs)
	p.mu.Unlock()

	for _, s := range subs {
		s.fn(v.clone())
	}
}

// StartSimulation starts (or restarts after Pause) the engine at speed.
func (p *Provider) StartSimulation(speed float64) {
	p.engine.Start(speed)
	p.logger.Info("simulation started", "speed", speed)
	p.RefreshData()
}

// StopSimulation pauses the engine. In-flight executions stop at their
// next step boundary.
func (p *Provider) StopSimulation() {
	p.engine.Pause()
	p.logger.Info("simulation paused")
	p.RefreshData()
}

// ResetSimulation discards runtime state and keeps registrations.
func (p *Provider) ResetSimulation() {
	p.engine.Reset()
	p.logger.Info("simulation reset")
	p.RefreshData()
}

// StartWorkflow runs workflowID for agentID with generated context. It
// blocks until the execution finishes or parks on an approval.
func (p *Provider) StartWorkflow(ctx context.Context, agentID, workflowID string) (*api.WorkflowExecution, error) {
	defer p.RefreshData()

	exec, err := p.engine.ExecuteWorkflow(ctx, api.ExecuteRequest{AgentID: agentID, WorkflowID: workflowID})
	if err != nil {
		p.logger.Error("start workflow failed",
			"agent_id", agentID,
			"workflow_id", workflowID,
			"error", err,
		)
	}
	return exec, err
}

// RespondToApproval answers a pending approval on behalf of the dashboard
// user.
func (p *Provider) RespondToApproval(ctx context.Context, approvalID string, action api.ApprovalAction, comments string) error {
	defer p.RefreshData()

	err := p.engine.RespondToApproval(ctx, approvalID, api.ApprovalResponse{
		Action:   action,
		Comments: comments,
	})
	if err != nil {
		p.logger.Error("respond to approval failed",
			"approval_id", approvalID,
			"action", action,
			"error", err,
		)
	}
	return err
}
