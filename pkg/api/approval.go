package api

import (
	"slices"
	"time"
)

// ApprovalAction is the decision offered by an approval option.
type ApprovalAction string

const (
	ActionApprove ApprovalAction = "approve"
	ActionReject  ApprovalAction = "reject"
	ActionModify  ApprovalAction = "modify"
	ActionSkip    ApprovalAction = "skip"
)

// ApprovalStatus is the disposition of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"

	// ApprovalExpired is reserved. The engine has no timeout mechanism and
	// never assigns it.
	ApprovalExpired ApprovalStatus = "expired"
)

// ApprovalOption is one choice presented to the human approver.
type ApprovalOption struct {
	ID          string         `json:"id" yaml:"id"`
	Label       string         `json:"label" yaml:"label"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Action      ApprovalAction `json:"action" yaml:"action"`
}

// DefaultApprovalOptions is the approve/reject pair used when an approval
// step configures no options.
func DefaultApprovalOptions() []ApprovalOption {
	return []ApprovalOption{
		{ID: "approve", Label: "Approve", Action: ActionApprove},
		{ID: "reject", Label: "Reject", Action: ActionReject},
	}
}

// ApprovalRequest is one outstanding human decision point.
type ApprovalRequest struct {
	ID          string           `json:"id"`
	StepID      string           `json:"stepId"`
	ExecutionID string           `json:"workflowExecutionId"`
	AgentID     string           `json:"agentId"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Options     []ApprovalOption `json:"options"`
	Status      ApprovalStatus   `json:"status"`
	RequestedAt time.Time        `json:"requestedAt"`

	RespondedBy string    `json:"respondedBy,omitempty"`
	RespondedAt time.Time `json:"respondedAt,omitempty"`
	Comments    string    `json:"comments,omitempty"`
}

// Clone returns a deep copy of the request.
func (r ApprovalRequest) Clone() ApprovalRequest {
	r.Options = slices.Clone(r.Options)
	return r
}

// ApprovalResponse is the caller's answer to an approval request.
// Only ActionApprove and ActionReject are accepted by the engine.
type ApprovalResponse struct {
	Action    ApprovalAction `json:"action"`
	Responder string         `json:"responder,omitempty"`
	Comments  string         `json:"comments,omitempty"`
}
