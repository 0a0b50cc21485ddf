package agentsim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/agentsim/internal/datagen"
	"github.com/petrijr/agentsim/pkg/api"
)

func newRunner(t *testing.T) *LocalRunner {
	t.Helper()
	eng := NewEngineWithConfig(EngineConfig{Generator: datagen.New(11)})
	require.NoError(t, RegisterDefaults(eng))
	eng.Start(1)

	r := NewLocalRunnerWithEngine(eng, nil)
	t.Cleanup(r.Stop)
	return r
}

// TestLocalRunner_AsyncExecuteAndRespond drives a workflow entirely through
// the queue: the execution parks on its approval, the response resumes it.
func TestLocalRunner_AsyncExecuteAndRespond(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)

	cl := NewChannelListener(256)
	cl.Attach(r.Engine)
	defer cl.Close()

	require.NoError(t, r.StartWorkers(ctx, 2))
	require.ErrorIs(t, r.StartWorkers(ctx, 1), ErrRunnerStarted)

	require.NoError(t, r.StartWorkflowAsync(ctx, ExecuteRequest{AgentID: "welcome-agent", WorkflowID: "welcome-workflow"}))

	var approval api.ApprovalRequest
	require.Eventually(t, func() bool {
		pending := r.Engine.ListPendingApprovals()
		if len(pending) == 1 {
			approval = pending[0]
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.RespondAsync(ctx, approval.ID, ApprovalResponse{Action: ActionApprove}))

	require.Eventually(t, func() bool {
		exec, err := r.Engine.GetExecution(approval.ExecutionID)
		return err == nil && exec.Status == ExecutionCompleted
	}, 2*time.Second, 5*time.Millisecond)

	var sawComplete bool
	for !sawComplete {
		select {
		case ev := <-cl.C():
			sawComplete = ev.Type == api.EventWorkflowComplete
		case <-time.After(time.Second):
			t.Fatal("workflow_complete event not delivered")
		}
	}
}

// TestLocalRunner_FailingTaskDoesNotStopWorkers checks that a task the
// engine rejects is logged and the loop moves on.
func TestLocalRunner_FailingTaskDoesNotStopWorkers(t *testing.T) {
	ctx := context.Background()
	r := newRunner(t)
	require.NoError(t, r.StartWorkers(ctx, 1))

	require.NoError(t, r.RespondAsync(ctx, "no-such-approval", ApprovalResponse{Action: ActionApprove}))
	require.NoError(t, r.StartWorkflowAsync(ctx, ExecuteRequest{AgentID: "triage-agent", WorkflowID: "triage-workflow"}))

	require.Eventually(t, func() bool {
		return len(r.Engine.ListPendingApprovals()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLocalRunner_StopIsIdempotent(t *testing.T) {
	r := newRunner(t)
	r.Stop()

	require.NoError(t, r.StartWorkers(context.Background(), 0))
	r.Stop()
	r.Stop()

	assert.NoError(t, r.StartWorkers(context.Background(), 1), "restart after Stop")
}

func TestExecuteApproveReject(t *testing.T) {
	ctx := context.Background()
	eng := NewEngineWithConfig(EngineConfig{Generator: datagen.New(2)})
	require.NoError(t, RegisterDefaults(eng))
	eng.Start(1)

	first, err := Execute(ctx, eng, "contribution-agent", "contribution-workflow")
	require.NoError(t, err)
	require.Equal(t, ExecutionRunning, first.Status)
	require.NoError(t, Approve(ctx, eng, eng.ListPendingApprovals()[0].ID, ""))

	second, err := Execute(ctx, eng, "contribution-agent", "contribution-workflow")
	require.NoError(t, err)
	require.NoError(t, Reject(ctx, eng, eng.ListPendingApprovals()[0].ID, "not now"))

	got, err := eng.GetExecution(first.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, got.Status)

	got, err = eng.GetExecution(second.ID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionFailed, got.Status)
	assert.Equal(t, api.ErrApprovalRejected.Error(), got.FailureReason)

	agent, err := eng.GetAgent("contribution-agent")
	require.NoError(t, err)
	assert.Equal(t, 2, agent.Metrics.TotalWorkflows)
	assert.Equal(t, 1, agent.Metrics.CompletedWorkflows)
	assert.InDelta(t, 0.5, agent.Metrics.SuccessRate, 1e-9)
}
