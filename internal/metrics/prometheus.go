// Package metrics exports engine lifecycle metrics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petrijr/agentsim/pkg/api"
)

const defaultNamespace = "agentsim"

// PrometheusObserver is an api.Observer that records workflow, step and
// approval metrics.
type PrometheusObserver struct {
	workflowsStarted   *prometheus.CounterVec
	workflowsCompleted *prometheus.CounterVec
	workflowsFailed    *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	pendingApprovals   prometheus.Gauge
	approvalResponses  *prometheus.CounterVec
}

var _ api.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the engine metrics on reg. An empty
// namespace means "agentsim"; a nil reg means prometheus.DefaultRegisterer.
// Collectors that are already registered under the same names are reused.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		workflowsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_started_total",
			Help:      "Workflow executions started.",
		}, []string{"workflow"}),
		workflowsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_completed_total",
			Help:      "Workflow executions that completed.",
		}, []string{"workflow"}),
		workflowsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_failed_total",
			Help:      "Workflow executions that failed.",
		}, []string{"workflow"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Simulated step duration by step type and outcome.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		}, []string{"step_type", "status"}),
		pendingApprovals: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_approvals",
			Help:      "Approval requests waiting for a human.",
		}),
		approvalResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_responses_total",
			Help:      "Approval responses by outcome.",
		}, []string{"status"}),
	}

	var err error
	if o.workflowsStarted, err = register(reg, o.workflowsStarted); err != nil {
		return nil, err
	}
	if o.workflowsCompleted, err = register(reg, o.workflowsCompleted); err != nil {
		return nil, err
	}
	if o.workflowsFailed, err = register(reg, o.workflowsFailed); err != nil {
		return nil, err
	}
	if o.stepDuration, err = register(reg, o.stepDuration); err != nil {
		return nil, err
	}
	if o.pendingApprovals, err = register(reg, o.pendingApprovals); err != nil {
		return nil, err
	}
	if o.approvalResponses, err = register(reg, o.approvalResponses); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metrics collector: %w", err)
}

func (o *PrometheusObserver) OnWorkflowStart(ctx context.Context, exec *api.WorkflowExecution) {
	o.workflowsStarted.WithLabelValues(exec.WorkflowID).Inc()
}

func (o *PrometheusObserver) OnWorkflowCompleted(ctx context.Context, exec *api.WorkflowExecution) {
	o.workflowsCompleted.WithLabelValues(exec.WorkflowID).Inc()
}

func (o *PrometheusObserver) OnWorkflowFailed(ctx context.Context, exec *api.WorkflowExecution, err error) {
	o.workflowsFailed.WithLabelValues(exec.WorkflowID).Inc()
}

func (o *PrometheusObserver) OnStepStart(ctx context.Context, exec *api.WorkflowExecution, step *api.ExecutionStep) {
}

func (o *PrometheusObserver) OnStepCompleted(ctx context.Context, exec *api.WorkflowExecution, step *api.ExecutionStep, err error, d time.Duration) {
	o.stepDuration.WithLabelValues(string(step.Type), string(step.Status)).Observe(d.Seconds())
}

func (o *PrometheusObserver) OnApprovalRequested(ctx context.Context, exec *api.WorkflowExecution, a *api.ApprovalRequest) {
	o.pendingApprovals.Inc()
}

func (o *PrometheusObserver) OnApprovalResponded(ctx context.Context, exec *api.WorkflowExecution, a *api.ApprovalRequest) {
	o.pendingApprovals.Dec()
	o.approvalResponses.WithLabelValues(string(a.Status)).Inc()
}
