package api

import (
	"slices"
	"time"
)

// AgentType is the fixed category of an agent.
type AgentType string

const (
	AgentWelcome      AgentType = "welcome"
	AgentContribution AgentType = "contribution"
	AgentTriage       AgentType = "triage"
)

// AgentStatus is a presentation hint maintained by the engine.
type AgentStatus string

const (
	AgentIdle            AgentStatus = "idle"
	AgentRunning         AgentStatus = "running"
	AgentWaitingApproval AgentStatus = "waiting_approval"
	AgentCompleted       AgentStatus = "completed"
	AgentError           AgentStatus = "error"
)

// NotificationPreferences controls where notification steps deliver
// messages when the step itself does not name channels.
type NotificationPreferences struct {
	Channels     []string `json:"channels,omitempty" yaml:"channels,omitempty"`
	OnCompletion bool     `json:"onCompletion" yaml:"onCompletion"`
	OnApproval   bool     `json:"onApproval" yaml:"onApproval"`
}

// AgentConfig holds per-agent simulation knobs.
type AgentConfig struct {
	// AutoApprove makes the engine answer the agent's approval requests
	// with "approve" as soon as they are raised.
	AutoApprove bool `json:"autoApprove" yaml:"autoApprove"`

	// Speed multiplies the global simulation speed for this agent's steps.
	// Values <= 0 are ignored.
	Speed float64 `json:"speed" yaml:"speed"`

	Notifications NotificationPreferences `json:"notifications" yaml:"notifications"`
}

// AgentMetrics are counters updated whenever one of the agent's executions
// finishes.
type AgentMetrics struct {
	TotalWorkflows        int           `json:"totalWorkflows"`
	CompletedWorkflows    int           `json:"completedWorkflows"`
	AverageCompletionTime time.Duration `json:"averageCompletionTime"`
	// SuccessRate is CompletedWorkflows / TotalWorkflows in [0, 1].
	SuccessRate  float64   `json:"successRate"`
	LastActivity time.Time `json:"lastActivity"`
}

// Agent is a named actor that runs workflows.
type Agent struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Type        AgentType    `json:"type"`
	Status      AgentStatus  `json:"status"`
	Config      AgentConfig  `json:"config"`
	Metrics     AgentMetrics `json:"metrics"`

	// CurrentWorkflow is the ID of the execution the agent is working on,
	// or empty when idle.
	CurrentWorkflow string `json:"currentWorkflow,omitempty"`
}

// Clone returns a deep copy of the agent.
func (a Agent) Clone() Agent {
	a.Config.Notifications.Channels = slices.Clone(a.Config.Notifications.Channels)
	return a
}
