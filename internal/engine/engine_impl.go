package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/petrijr/agentsim/internal/datagen"
	"github.com/petrijr/agentsim/internal/persistence"
	"github.com/petrijr/agentsim/pkg/api"
)

const (
	DefaultMinStepDelay     = 500 * time.Millisecond
	DefaultMaxStepDelay     = 3 * time.Second
	DefaultEventLogCapacity = 1000

	// autoApprover is the responder recorded on approvals answered on
	// behalf of agents with AutoApprove set.
	autoApprover = "auto-approve"
	// defaultResponder is recorded when a response names no responder.
	defaultResponder = "user"
)

// errReset is returned to drives that were in flight when Reset ran.
var errReset = fmt.Errorf("%w: simulation was reset", api.ErrNotRunning)

// Generator synthesizes subject data and step delays.
type Generator interface {
	ExecutionContext(c *api.ContributorInfo, r *api.RepositoryInfo) api.ExecutionContext
	Duration(min, max time.Duration) time.Duration
}

// Config describes how to construct an engine.
//
// Delays are taken literally: a zero MaxStepDelay disables the simulated
// work delay. NewInMemoryEngine applies DefaultMinStepDelay and
// DefaultMaxStepDelay.
type Config struct {
	// Persistence defaults to in-memory stores when Agents is nil.
	Persistence persistence.Persistence
	Observer    api.Observer
	Logger      *slog.Logger

	MinStepDelay time.Duration
	MaxStepDelay time.Duration

	// EventLogCapacity bounds the in-memory event log. Only used when
	// Persistence is defaulted.
	EventLogCapacity int

	// ExclusiveAgents makes ExecuteWorkflow fail with ErrAgentBusy while the
	// agent has a non-terminal execution.
	ExclusiveAgents bool

	Generator Generator
	Now       func() time.Time
	Sleep     func(ctx context.Context, d time.Duration) error
}

// executionHandle owns the live state of one non-terminal execution.
// mu is held for the whole of a drive, so steps of one execution never
// run concurrently.
type executionHandle struct {
	mu      deadlock.Mutex
	exec    *api.WorkflowExecution
	agentID string
	epoch   uint64
}

// engineImpl is an in-process simulation engine. Executions are driven on
// the caller's goroutine; independent executions may be driven
// concurrently from different goroutines.
type engineImpl struct {
	agents     persistence.AgentStore
	workflows  persistence.WorkflowStore
	executions persistence.ExecutionStore
	events     persistence.EventStore

	bus      *eventBus
	observer api.Observer
	logger   *slog.Logger
	gen      Generator
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error

	minDelay  time.Duration
	maxDelay  time.Duration
	exclusive bool

	mu        deadlock.RWMutex
	running   bool
	paused    bool
	speed     float64
	gate      chan struct{} // closed while not paused
	runCtx    context.Context
	cancelRun context.CancelFunc
	handles   map[string]*executionHandle
}

var _ api.Engine = (*engineImpl)(nil)

// NewInMemoryEngine returns an engine with in-memory stores and the
// default step delays.
func NewInMemoryEngine() api.Engine {
	return NewEngineWithConfig(Config{
		MinStepDelay: DefaultMinStepDelay,
		MaxStepDelay: DefaultMaxStepDelay,
	})
}

// NewInMemoryEngineWithObserver is NewInMemoryEngine with an observer.
func NewInMemoryEngineWithObserver(obs api.Observer) api.Engine {
	return NewEngineWithConfig(Config{
		Observer:     obs,
		MinStepDelay: DefaultMinStepDelay,
		MaxStepDelay: DefaultMaxStepDelay,
	})
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	p := cfg.Persistence
	if p.Agents == nil {
		capacity := cfg.EventLogCapacity
		if capacity <= 0 {
			capacity = DefaultEventLogCapacity
		}
		p = persistence.NewInMemory(capacity)
	}

	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gen := cfg.Generator
	if gen == nil {
		gen = datagen.NewRandom()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	minDelay, maxDelay := cfg.MinStepDelay, cfg.MaxStepDelay
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	runCtx, cancel := context.WithCancel(context.Background())
	return &engineImpl{
		agents:     p.Agents,
		workflows:  p.Workflows,
		executions: p.Executions,
		events:     p.Events,
		bus:        newEventBus(p.Events, logger, now),
		observer:   obs,
		logger:     logger,
		gen:        gen,
		now:        now,
		sleep:      sleep,
		minDelay:   minDelay,
		maxDelay:   maxDelay,
		exclusive:  cfg.ExclusiveAgents,
		speed:      1,
		gate:       closedGate(),
		runCtx:     runCtx,
		cancelRun:  cancel,
		handles:    make(map[string]*executionHandle),
	}
}

func closedGate() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engineImpl) RegisterAgent(agent api.Agent) error {
	if agent.ID == "" {
		return errors.New("agent id is required")
	}
	if agent.Status == "" {
		agent.Status = api.AgentIdle
	}
	return e.agents.SaveAgent(agent)
}

func (e *engineImpl) RegisterWorkflow(wf api.Workflow) error {
	if wf.ID == "" {
		return errors.New("workflow id is required")
	}
	return e.workflows.SaveWorkflow(wf)
}

func (e *engineImpl) Subscribe(l api.Listener) func() {
	return e.bus.subscribe(l)
}

func (e *engineImpl) Start(speed float64) {
	if speed <= 0 {
		speed = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running = true
	e.speed = speed
	e.openGateLocked()
	e.logger.Debug("simulation started", slog.Float64("speed", speed))
}

func (e *engineImpl) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused {
		return
	}
	e.paused = true
	e.gate = make(chan struct{})
	e.logger.Debug("simulation paused")
}

func (e *engineImpl) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.openGateLocked()
	e.logger.Debug("simulation resumed")
}

func (e *engineImpl) openGateLocked() {
	if e.paused {
		e.paused = false
		close(e.gate)
	}
}

func (e *engineImpl) Reset() {
	e.mu.Lock()
	e.cancelRun()
	e.runCtx, e.cancelRun = context.WithCancel(context.Background())
	e.bus.advance()
	e.running = false
	e.speed = 1
	e.openGateLocked()
	e.handles = make(map[string]*executionHandle)
	err := e.executions.ClearRuntime(func(a *api.Agent) {
		a.Status = api.AgentIdle
		a.CurrentWorkflow = ""
	})
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("reset: clearing runtime state failed", slog.Any("error", err))
	}
	e.bus.clearLog()
	e.logger.Debug("simulation reset")
}

func (e *engineImpl) ExecuteWorkflow(ctx context.Context, req api.ExecuteRequest) (*api.WorkflowExecution, error) {
	if !e.isRunning() {
		return nil, api.ErrNotRunning
	}

	agent, err := e.agents.GetAgent(req.AgentID)
	if err != nil {
		if errors.Is(err, persistence.ErrAgentNotFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrAgentNotFound, req.AgentID)
		}
		return nil, err
	}
	wf, err := e.workflows.GetWorkflow(req.WorkflowID)
	if err != nil {
		if errors.Is(err, persistence.ErrWorkflowNotFound) {
			return nil, fmt.Errorf("%w: %s", api.ErrWorkflowNotFound, req.WorkflowID)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exec := &api.WorkflowExecution{
		ID:           uuid.NewString(),
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		AgentID:      agent.ID,
		Status:       api.ExecutionPending,
		Steps:        make([]api.ExecutionStep, len(wf.Steps)),
		Context:      e.gen.ExecutionContext(req.Contributor, req.Repository),
		StartedAt:    e.now(),
	}
	for i, s := range wf.Steps {
		exec.Steps[i] = api.ExecutionStep{WorkflowStep: s.Clone(), Status: api.StepPending}
	}
	if err := transitionExecution(exec, triggerStart); err != nil {
		return nil, err
	}

	h, err := e.admit(exec)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e.emit(h, "", api.WorkflowStartData{
		WorkflowID:   wf.ID,
		WorkflowName: wf.Name,
		Contributor:  exec.Context.Contributor.Login,
		Repository:   exec.Context.Repository.FullName,
		Steps:        len(exec.Steps),
	}, fmt.Sprintf("%s started %s for %s", agent.Name, wf.Name, exec.Context.Contributor.Login))
	e.observer.OnWorkflowStart(ctx, exec.Clone())

	dctx, cancel := e.driveContext(ctx)
	defer cancel()

	if err := e.drive(dctx, h); err != nil {
		if errors.Is(err, errReset) {
			return nil, err
		}
		return exec.Clone(), err
	}
	return exec.Clone(), nil
}

// admit registers a new execution and marks its agent running, atomically
// with the run-state and exclusivity checks.
func (e *engineImpl) admit(exec *api.WorkflowExecution) (*executionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running || e.paused {
		return nil, api.ErrNotRunning
	}
	if e.exclusive {
		for _, other := range e.handles {
			if other.agentID == exec.AgentID {
				return nil, fmt.Errorf("%w: %s", api.ErrAgentBusy, exec.AgentID)
			}
		}
	}

	now := exec.StartedAt
	err := e.executions.Commit(persistence.Changeset{
		Execution: exec,
		AgentID:   exec.AgentID,
		UpdateAgent: func(a *api.Agent) {
			a.Status = api.AgentRunning
			a.CurrentWorkflow = exec.ID
			a.Metrics.LastActivity = now
		},
	})
	if err != nil {
		return nil, err
	}

	h := &executionHandle{exec: exec, agentID: exec.AgentID, epoch: e.bus.currentEpoch()}
	e.handles[exec.ID] = h
	return h, nil
}

func (e *engineImpl) RespondToApproval(ctx context.Context, approvalID string, resp api.ApprovalResponse) error {
	if !e.isStarted() {
		return api.ErrNotRunning
	}

	req, err := e.executions.GetApproval(approvalID)
	if err != nil {
		if errors.Is(err, persistence.ErrApprovalNotFound) {
			return fmt.Errorf("%w: %s", api.ErrApprovalNotFound, approvalID)
		}
		return err
	}
	h := e.handle(req.ExecutionID)
	if h == nil {
		return fmt.Errorf("%w: %s", api.ErrApprovalNotFound, approvalID)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Re-check under the execution lock: a concurrent response may have won.
	step, _ := h.exec.Step(req.StepID)
	if step == nil || step.Status != api.StepWaitingApproval || step.Approval == nil || step.Approval.ID != approvalID {
		return fmt.Errorf("%w: %s", api.ErrApprovalNotFound, approvalID)
	}
	if resp.Action != api.ActionApprove && resp.Action != api.ActionReject {
		return fmt.Errorf("%w: %q", api.ErrInvalidResponse, resp.Action)
	}
	if resp.Responder == "" {
		resp.Responder = defaultResponder
	}

	dctx, cancel := e.driveContext(ctx)
	defer cancel()

	if err := e.resolveApproval(dctx, h, step, resp); err != nil {
		return err
	}
	if resp.Action == api.ActionApprove && !h.exec.IsTerminal() {
		return e.drive(dctx, h)
	}
	return nil
}

func (e *engineImpl) ListAgents() []api.Agent {
	agents, err := e.agents.ListAgents()
	if err != nil {
		e.logger.Error("list agents failed", slog.Any("error", err))
	}
	return agents
}

func (e *engineImpl) GetAgent(id string) (api.Agent, error) {
	a, err := e.agents.GetAgent(id)
	if errors.Is(err, persistence.ErrAgentNotFound) {
		return api.Agent{}, fmt.Errorf("%w: %s", api.ErrAgentNotFound, id)
	}
	return a, err
}

func (e *engineImpl) ListWorkflows() []api.Workflow {
	wfs, err := e.workflows.ListWorkflows()
	if err != nil {
		e.logger.Error("list workflows failed", slog.Any("error", err))
	}
	return wfs
}

func (e *engineImpl) ListActiveExecutions() []*api.WorkflowExecution {
	return e.listExecutions(persistence.ExecutionFilter{ActiveOnly: true})
}

func (e *engineImpl) ListExecutions() []*api.WorkflowExecution {
	return e.listExecutions(persistence.ExecutionFilter{})
}

func (e *engineImpl) listExecutions(f persistence.ExecutionFilter) []*api.WorkflowExecution {
	execs, err := e.executions.ListExecutions(f)
	if err != nil {
		e.logger.Error("list executions failed", slog.Any("error", err))
	}
	return execs
}

func (e *engineImpl) GetExecution(id string) (*api.WorkflowExecution, error) {
	exec, err := e.executions.GetExecution(id)
	if errors.Is(err, persistence.ErrExecutionNotFound) {
		return nil, fmt.Errorf("%w: %s", api.ErrExecutionNotFound, id)
	}
	return exec, err
}

func (e *engineImpl) ListPendingApprovals() []api.ApprovalRequest {
	approvals, err := e.executions.ListApprovals()
	if err != nil {
		e.logger.Error("list approvals failed", slog.Any("error", err))
	}
	return approvals
}

func (e *engineImpl) RecentEvents(limit int) []api.SimulationEvent {
	return e.events.RecentEvents(limit)
}

func (e *engineImpl) Status() api.SimulationStatus {
	e.mu.RLock()
	st := api.SimulationStatus{
		Running: e.running,
		Paused:  e.paused,
		Speed:   e.speed,
	}
	e.mu.RUnlock()

	st.Agents = len(e.ListAgents())
	st.Workflows = len(e.ListWorkflows())
	st.ActiveExecutions = len(e.ListActiveExecutions())
	st.PendingApprovals = len(e.ListPendingApprovals())
	st.TotalEvents = e.events.Len()
	return st
}

func (e *engineImpl) isRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running && !e.paused
}

func (e *engineImpl) isStarted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

func (e *engineImpl) handle(execID string) *executionHandle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handles[execID]
}

func (e *engineImpl) release(h *executionHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cur, ok := e.handles[h.exec.ID]; ok && cur == h {
		delete(e.handles, h.exec.ID)
	}
}

// driveContext derives a context that is also cancelled by Reset.
func (e *engineImpl) driveContext(ctx context.Context) (context.Context, context.CancelFunc) {
	e.mu.RLock()
	run := e.runCtx
	e.mu.RUnlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(run, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// awaitGate blocks while the simulation is paused.
func (e *engineImpl) awaitGate(ctx context.Context) error {
	e.mu.RLock()
	gate := e.gate
	e.mu.RUnlock()

	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *engineImpl) stale(h *executionHandle) bool {
	return h.epoch != e.bus.currentEpoch()
}

// persist writes the live execution, plus cs extras, in one store
// transaction. Handles that predate the last Reset are never written.
func (e *engineImpl) persist(h *executionHandle, cs persistence.Changeset) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.stale(h) {
		return errReset
	}
	cs.Execution = h.exec
	return e.executions.Commit(cs)
}

// updateCurrentAgent returns an agent update that only applies while the
// agent is still working on exec.
func updateCurrentAgent(execID string, status api.AgentStatus) func(*api.Agent) {
	return func(a *api.Agent) {
		if a.CurrentWorkflow == execID {
			a.Status = status
		}
	}
}

func (e *engineImpl) emit(h *executionHandle, stepID string, data api.EventData, msg string) {
	e.bus.emit(h.epoch, api.SimulationEvent{
		ExecutionID: h.exec.ID,
		AgentID:     h.exec.AgentID,
		StepID:      stepID,
		Data:        data,
		Message:     msg,
	})
}

func (e *engineImpl) stepDelay(agent api.Agent) time.Duration {
	if e.maxDelay <= 0 {
		return 0
	}
	e.mu.RLock()
	factor := e.speed
	e.mu.RUnlock()
	if agent.Config.Speed > 0 {
		factor *= agent.Config.Speed
	}
	d := e.gen.Duration(e.minDelay, e.maxDelay)
	// MaxStepDelay is a hard ceiling; a tiny factor would overflow int64.
	scaled := float64(d) / factor
	if scaled >= float64(e.maxDelay) {
		return e.maxDelay
	}
	return max(time.Duration(scaled), 0)
}
