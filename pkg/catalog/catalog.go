// Package catalog holds the built-in agents and workflow definitions, and
// loads additional workflows from YAML.
//
// A workflow document looks like:
//
//	id: welcome-workflow
//	name: Welcome New Contributor
//	agentType: welcome
//	steps:
//	  - id: analyze-contributor
//	    type: data_collection
//	    config:
//	      sources: [github]
//	  - id: send-welcome
//	    type: notification
//	    dependencies: [analyze-contributor]
//	    config:
//	      template: "Welcome, @{{contributor}}!"
//
// The shape of config depends on type. A stream may hold several documents
// separated by "---".
package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/agentsim/pkg/api"
)

//go:embed workflows/*.yaml
var builtin embed.FS

type stepDoc struct {
	ID           string       `yaml:"id"`
	Name         string       `yaml:"name"`
	Description  string       `yaml:"description"`
	Type         api.StepType `yaml:"type"`
	Dependencies []string     `yaml:"dependencies"`
	Config       yaml.Node    `yaml:"config"`
}

type workflowDoc struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	AgentType   api.AgentType `yaml:"agentType"`
	Steps       []stepDoc     `yaml:"steps"`
}

func decodeConfig(t api.StepType, n *yaml.Node) (api.StepConfig, error) {
	if n.Kind == 0 {
		return nil, nil
	}
	switch t {
	case api.StepAutomated:
		var c api.AutomatedConfig
		if err := n.Decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case api.StepHumanApproval:
		var c api.ApprovalConfig
		if err := n.Decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case api.StepDataCollection:
		var c api.DataCollectionConfig
		if err := n.Decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case api.StepNotification:
		var c api.NotificationConfig
		if err := n.Decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: config for unknown step type %q", api.ErrInvalidWorkflow, t)
	}
}

func (d workflowDoc) workflow() (api.Workflow, error) {
	wf := api.Workflow{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		AgentType:   d.AgentType,
		Steps:       make([]api.WorkflowStep, 0, len(d.Steps)),
	}
	for _, s := range d.Steps {
		cfg, err := decodeConfig(s.Type, &s.Config)
		if err != nil {
			return api.Workflow{}, fmt.Errorf("step %q: %w", s.ID, err)
		}
		wf.Steps = append(wf.Steps, api.WorkflowStep{
			ID:           s.ID,
			Name:         s.Name,
			Description:  s.Description,
			Type:         s.Type,
			Dependencies: s.Dependencies,
			Config:       cfg,
		})
	}
	return wf, wf.Validate()
}

// Load decodes every workflow document in r. Each workflow is validated;
// forward dependencies are rejected with api.ErrForwardDependency.
func Load(r io.Reader) ([]api.Workflow, error) {
	dec := yaml.NewDecoder(r)
	var out []api.Workflow
	for i := 0; ; i++ {
		var doc workflowDoc
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if doc.ID == "" && len(doc.Steps) == 0 {
			continue
		}
		wf, err := doc.workflow()
		if err != nil {
			return nil, fmt.Errorf("workflow %q: %w", doc.ID, err)
		}
		out = append(out, wf)
	}
}

// LoadFile is Load on the named file.
func LoadFile(path string) ([]api.Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wfs, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wfs, nil
}

var loadBuiltin = sync.OnceValues(func() ([]api.Workflow, error) {
	var out []api.Workflow
	// Fixed order: welcome, contribution, triage.
	for _, name := range []string{"welcome.yaml", "contribution.yaml", "triage.yaml"} {
		f, err := builtin.Open("workflows/" + name)
		if err != nil {
			return nil, err
		}
		wfs, err := Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, wfs...)
	}
	return out, nil
})

// DefaultWorkflows returns the built-in welcome, contribution and triage
// workflows.
func DefaultWorkflows() []api.Workflow {
	wfs, err := loadBuiltin()
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in workflow: %v", err))
	}
	out := make([]api.Workflow, len(wfs))
	for i, wf := range wfs {
		out[i] = wf.Clone()
	}
	return out
}

// DefaultAgents returns one agent per agent type.
func DefaultAgents() []api.Agent {
	return []api.Agent{
		{
			ID:          "welcome-agent",
			Name:        "Welcome Agent",
			Description: "Greets new contributors and assigns mentors.",
			Type:        api.AgentWelcome,
			Status:      api.AgentIdle,
			Config: api.AgentConfig{
				Speed: 1,
				Notifications: api.NotificationPreferences{
					Channels:     []string{"github"},
					OnCompletion: true,
					OnApproval:   true,
				},
			},
		},
		{
			ID:          "contribution-agent",
			Name:        "Contribution Agent",
			Description: "Reviews pull requests and tracks contributor impact.",
			Type:        api.AgentContribution,
			Status:      api.AgentIdle,
			Config: api.AgentConfig{
				Speed: 1,
				Notifications: api.NotificationPreferences{
					Channels:   []string{"slack", "github"},
					OnApproval: true,
				},
			},
		},
		{
			ID:          "triage-agent",
			Name:        "Triage Agent",
			Description: "Classifies issues and proposes labels.",
			Type:        api.AgentTriage,
			Status:      api.AgentIdle,
			Config: api.AgentConfig{
				Speed: 1.5,
				Notifications: api.NotificationPreferences{
					Channels:     []string{"slack"},
					OnCompletion: true,
				},
			},
		},
	}
}

// WorkflowFor returns the first workflow in wfs meant for agent type t.
func WorkflowFor(wfs []api.Workflow, t api.AgentType) (api.Workflow, bool) {
	for _, wf := range wfs {
		if wf.AgentType == t {
			return wf, true
		}
	}
	return api.Workflow{}, false
}
