package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/agentsim/pkg/api"
)

func TestDefaultWorkflows(t *testing.T) {
	wfs := DefaultWorkflows()
	require.Len(t, wfs, 3)

	ids := []string{wfs[0].ID, wfs[1].ID, wfs[2].ID}
	assert.Equal(t, []string{"welcome-workflow", "contribution-workflow", "triage-workflow"}, ids)

	for _, wf := range wfs {
		require.NoError(t, wf.Validate(), wf.ID)

		var approvals int
		for _, s := range wf.Steps {
			if s.Config != nil {
				assert.Equal(t, s.Type, s.Config.StepType(), "%s/%s", wf.ID, s.ID)
			}
			if s.Type == api.StepHumanApproval {
				approvals++
			}
		}
		assert.Equal(t, 1, approvals, "%s should have one approval gate", wf.ID)
	}

	welcome := wfs[0]
	cfg, ok := welcome.Steps[0].Config.(api.DataCollectionConfig)
	require.True(t, ok)
	assert.Equal(t, []string{"github"}, cfg.Sources)

	review, ok := welcome.Steps[3].Config.(api.ApprovalConfig)
	require.True(t, ok)
	require.Len(t, review.Options, 2)
	assert.Equal(t, api.ActionApprove, review.Options[0].Action)
}

func TestDefaultWorkflows_ReturnsCopies(t *testing.T) {
	a := DefaultWorkflows()
	a[0].Steps[0].ID = "mutated"

	b := DefaultWorkflows()
	assert.Equal(t, "analyze-contributor", b[0].Steps[0].ID)
}

func TestDefaultAgentsMatchWorkflows(t *testing.T) {
	wfs := DefaultWorkflows()
	for _, a := range DefaultAgents() {
		wf, ok := WorkflowFor(wfs, a.Type)
		require.True(t, ok, "no workflow for agent type %s", a.Type)
		assert.Equal(t, a.Type, wf.AgentType)
		assert.Equal(t, api.AgentIdle, a.Status)
	}
}

func TestLoad_MultipleDocuments(t *testing.T) {
	src := `
id: first
steps:
  - id: a
    type: automated
---
id: second
steps:
  - id: a
    type: notification
    config:
      channels: [email]
      template: "hi {{contributor}}"
  - id: b
    type: automated
    dependencies: [a]
`
	wfs, err := Load(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, wfs, 2)

	assert.Nil(t, wfs[0].Steps[0].Config)
	n, ok := wfs[1].Steps[0].Config.(api.NotificationConfig)
	require.True(t, ok)
	assert.Equal(t, []string{"email"}, n.Channels)
	assert.Equal(t, []string{"a"}, wfs[1].Steps[1].Dependencies)
}

func TestLoad_RejectsForwardDependency(t *testing.T) {
	src := `
id: forward
steps:
  - id: a
    type: automated
    dependencies: [b]
  - id: b
    type: automated
`
	_, err := Load(strings.NewReader(src))
	require.ErrorIs(t, err, api.ErrForwardDependency)
}

func TestLoad_RejectsUnknownType(t *testing.T) {
	src := `
id: weird
steps:
  - id: a
    type: teleport
    config:
      where: mars
`
	_, err := Load(strings.NewReader(src))
	require.ErrorIs(t, err, api.ErrInvalidWorkflow)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(strings.NewReader("id: [unterminated"))
	require.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: file-wf\nsteps:\n  - id: only\n    type: automated\n"), 0o600))

	wfs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, wfs, 1)
	assert.Equal(t, "file-wf", wfs[0].ID)

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
