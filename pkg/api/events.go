package api

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a simulation event.
type EventType string

const (
	EventStepStart         EventType = "step_start"
	EventStepComplete      EventType = "step_complete"
	EventStepError         EventType = "step_error"
	EventApprovalRequested EventType = "approval_requested"
	EventApprovalResponded EventType = "approval_responded"
	EventWorkflowStart     EventType = "workflow_start"
	EventWorkflowComplete  EventType = "workflow_complete"
)

// EventData is the typed payload of a SimulationEvent.
type EventData interface {
	EventType() EventType
}

// WorkflowStartData accompanies EventWorkflowStart.
type WorkflowStartData struct {
	WorkflowID   string `json:"workflowId"`
	WorkflowName string `json:"workflowName"`
	Contributor  string `json:"contributor"`
	Repository   string `json:"repository"`
	Steps        int    `json:"steps"`
}

// StepStartData accompanies EventStepStart.
type StepStartData struct {
	StepName  string        `json:"stepName"`
	StepType  StepType      `json:"stepType"`
	StepIndex int           `json:"stepIndex"`
	Delay     time.Duration `json:"delay"`
}

// StepCompleteData accompanies EventStepComplete.
type StepCompleteData struct {
	StepName string        `json:"stepName"`
	StepType StepType      `json:"stepType"`
	Status   StepStatus    `json:"status"`
	Output   StepOutput    `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// StepErrorData accompanies EventStepError.
type StepErrorData struct {
	StepName string   `json:"stepName"`
	StepType StepType `json:"stepType"`
	Error    string   `json:"error"`
}

// ApprovalRequestedData accompanies EventApprovalRequested.
type ApprovalRequestedData struct {
	ApprovalID string           `json:"approvalId"`
	Title      string           `json:"title"`
	Options    []ApprovalOption `json:"options"`
}

// ApprovalRespondedData accompanies EventApprovalResponded.
type ApprovalRespondedData struct {
	ApprovalID string         `json:"approvalId"`
	Response   ApprovalAction `json:"response"`
	Responder  string         `json:"responder"`
	Comments   string         `json:"comments,omitempty"`
}

// WorkflowCompleteData accompanies EventWorkflowComplete.
type WorkflowCompleteData struct {
	WorkflowID string          `json:"workflowId"`
	Status     ExecutionStatus `json:"status"`
	Duration   time.Duration   `json:"duration"`
	Reason     string          `json:"reason,omitempty"`
}

func (WorkflowStartData) EventType() EventType     { return EventWorkflowStart }
func (StepStartData) EventType() EventType         { return EventStepStart }
func (StepCompleteData) EventType() EventType      { return EventStepComplete }
func (StepErrorData) EventType() EventType         { return EventStepError }
func (ApprovalRequestedData) EventType() EventType { return EventApprovalRequested }
func (ApprovalRespondedData) EventType() EventType { return EventApprovalResponded }
func (WorkflowCompleteData) EventType() EventType  { return EventWorkflowComplete }

// SimulationEvent is an immutable, append-only log record.
type SimulationEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"workflowExecutionId,omitempty"`
	AgentID     string    `json:"agentId,omitempty"`
	StepID      string    `json:"stepId,omitempty"`
	Data        EventData `json:"data,omitempty"`
	Message     string    `json:"message"`
}

// Listener receives every event in emission order.
type Listener func(ev SimulationEvent)

// ChannelListener adapts the synchronous listener callback to a buffered
// channel. Emission never blocks: when the buffer is full the event is
// dropped and counted.
//
//	cl := api.NewChannelListener(64)
//	cl.Attach(engine)
//	defer cl.Close()
//	for ev := range cl.C() { ... }
type ChannelListener struct {
	ch      chan SimulationEvent
	dropped atomic.Int64

	mu     sync.Mutex
	closed bool
	unsub  func()
}

// NewChannelListener creates a listener with the given buffer size.
func NewChannelListener(buffer int) *ChannelListener {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelListener{ch: make(chan SimulationEvent, buffer)}
}

// Subscriber is the part of Engine a ChannelListener needs.
type Subscriber interface {
	Subscribe(l Listener) (unsubscribe func())
}

// Attach subscribes the listener to s. Close detaches it.
func (c *ChannelListener) Attach(s Subscriber) {
	unsub := s.Subscribe(c.Listen)
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
}

// Listen is the Listener callback.
func (c *ChannelListener) Listen(ev SimulationEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
	}
}

// C returns the receive side of the channel. It is closed by Close.
func (c *ChannelListener) C() <-chan SimulationEvent {
	return c.ch
}

// Dropped returns the number of events discarded because the buffer was
// full.
func (c *ChannelListener) Dropped() int64 {
	return c.dropped.Load()
}

// Close unsubscribes (if attached) and closes the channel. It is
// idempotent.
func (c *ChannelListener) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsub := c.unsub
	c.unsub = nil
	close(c.ch)
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
