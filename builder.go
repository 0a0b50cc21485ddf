package agentsim

import (
	"fmt"

	"github.com/petrijr/agentsim/pkg/api"
)

// WorkflowBuilder provides a fluent API for defining workflows. Each step
// depends on the one added before it unless After names other steps:
//
//	wf := agentsim.NewWorkflow("onboard", "Onboard contributor").
//	    ForAgent(api.AgentWelcome).
//	    Collect("profile", "Fetch profile", "github").
//	    Approval("review", "Review greeting").
//	    Notify("greet", "Send greeting", "Welcome @{{contributor}}!").
//	    MustBuild()
type WorkflowBuilder struct {
	wf    api.Workflow
	after []string
	set   bool
}

// NewWorkflow creates a new workflow builder with the given id and name.
func NewWorkflow(id, name string) *WorkflowBuilder {
	return &WorkflowBuilder{
		wf: api.Workflow{
			ID:    id,
			Name:  name,
			Steps: make([]api.WorkflowStep, 0),
		},
	}
}

// ID returns the workflow id.
func (b *WorkflowBuilder) ID() string {
	return b.wf.ID
}

// Describe sets the workflow description.
func (b *WorkflowBuilder) Describe(description string) *WorkflowBuilder {
	b.wf.Description = description
	return b
}

// ForAgent sets the agent type the workflow is meant for.
func (b *WorkflowBuilder) ForAgent(t api.AgentType) *WorkflowBuilder {
	b.wf.AgentType = t
	return b
}

// After overrides the dependencies of the next step. After() with no ids
// makes the next step independent.
func (b *WorkflowBuilder) After(ids ...string) *WorkflowBuilder {
	b.after = ids
	b.set = true
	return b
}

// Step appends a step with an explicit type and config.
func (b *WorkflowBuilder) Step(id, name string, typ api.StepType, cfg api.StepConfig) *WorkflowBuilder {
	if id == "" {
		panic("agentsim: step id must not be empty")
	}
	if cfg != nil && cfg.StepType() != typ {
		panic(fmt.Sprintf("agentsim: step %q of type %q has %q config", id, typ, cfg.StepType()))
	}

	var deps []string
	switch {
	case b.set:
		deps = append(deps, b.after...)
	case len(b.wf.Steps) > 0:
		deps = []string{b.wf.Steps[len(b.wf.Steps)-1].ID}
	}
	b.after, b.set = nil, false

	b.wf.Steps = append(b.wf.Steps, api.WorkflowStep{
		ID:           id,
		Name:         name,
		Type:         typ,
		Dependencies: deps,
		Config:       cfg,
	})
	return b
}

// Automated appends an automated step.
func (b *WorkflowBuilder) Automated(id, name, action string) *WorkflowBuilder {
	return b.Step(id, name, api.StepAutomated, api.AutomatedConfig{Action: action})
}

// Collect appends a data collection step reading from sources.
func (b *WorkflowBuilder) Collect(id, name string, sources ...string) *WorkflowBuilder {
	return b.Step(id, name, api.StepDataCollection, api.DataCollectionConfig{Sources: sources})
}

// Notify appends a notification step rendering template.
func (b *WorkflowBuilder) Notify(id, name, template string) *WorkflowBuilder {
	return b.Step(id, name, api.StepNotification, api.NotificationConfig{Template: template})
}

// Approval appends a human approval step with the default approve/reject
// options, or the given options when present.
func (b *WorkflowBuilder) Approval(id, title string, options ...api.ApprovalOption) *WorkflowBuilder {
	return b.Step(id, title, api.StepHumanApproval, api.ApprovalConfig{Title: title, Options: options})
}

// Build validates and returns a copy of the workflow.
func (b *WorkflowBuilder) Build() (Workflow, error) {
	wf := b.wf.Clone()
	if err := wf.Validate(); err != nil {
		return Workflow{}, err
	}
	return wf, nil
}

// MustBuild is like Build but panics on error.
func (b *WorkflowBuilder) MustBuild() Workflow {
	wf, err := b.Build()
	if err != nil {
		panic(err)
	}
	return wf
}

// Register validates the workflow and registers it with the given engine.
func (b *WorkflowBuilder) Register(eng Engine) error {
	wf, err := b.Build()
	if err != nil {
		return err
	}
	return eng.RegisterWorkflow(wf)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (b *WorkflowBuilder) MustRegister(eng Engine) {
	if err := b.Register(eng); err != nil {
		panic(err)
	}
}
