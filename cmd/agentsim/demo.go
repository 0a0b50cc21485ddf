package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/k0kubun/pp/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/petrijr/agentsim"
	"github.com/petrijr/agentsim/internal/config"
	"github.com/petrijr/agentsim/internal/datagen"
	"github.com/petrijr/agentsim/internal/engine"
	"github.com/petrijr/agentsim/internal/metrics"
	"github.com/petrijr/agentsim/pkg/agentcontext"
	"github.com/petrijr/agentsim/pkg/api"
	"github.com/petrijr/agentsim/pkg/catalog"
)

type demoOptions struct {
	speed   float64
	reject  bool
	workers int
	timeout time.Duration
	dump    bool
}

func newDemoCommand(c *cli) *cobra.Command {
	opts := demoOptions{}
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run every agent's workflow once and answer its approvals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("speed") {
				c.cfg.Simulation.Speed = opts.speed
			}
			if cmd.Flags().Changed("workers") {
				c.cfg.Workers = opts.workers
			}
			return runDemo(cmd.Context(), c, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Float64Var(&opts.speed, "speed", 1, "simulation speed multiplier")
	cmd.Flags().BoolVar(&opts.reject, "reject", false, "reject approvals instead of approving them")
	cmd.Flags().IntVar(&opts.workers, "workers", 2, "number of queue workers")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "give up after this long")
	cmd.Flags().BoolVar(&opts.dump, "dump", false, "pretty-print the final view model")
	return cmd
}

func newEngine(cfg config.SimulationConfig, obs api.Observer, c *cli) api.Engine {
	var gen engine.Generator
	if cfg.Seed != 0 {
		gen = datagen.New(cfg.Seed)
	}
	return engine.NewEngineWithConfig(engine.Config{
		Observer:         obs,
		Logger:           c.logger,
		MinStepDelay:     cfg.MinStepDelay,
		MaxStepDelay:     cfg.MaxStepDelay,
		EventLogCapacity: cfg.EventLogCapacity,
		ExclusiveAgents:  cfg.ExclusiveAgents,
		Generator:        gen,
	})
}

func runDemo(ctx context.Context, c *cli, opts demoOptions, out io.Writer) error {
	wfs, err := c.workflows()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPrometheusObserver("", reg)
	if err != nil {
		return err
	}
	basic := &api.BasicMetrics{}
	obs := api.NewCompositeObserver(api.NewLoggingObserver(c.logger), prom, basic)

	eng := newEngine(c.cfg.Simulation, obs, c)
	runner := agentsim.NewLocalRunnerWithEngine(eng, c.logger)

	provider := agentcontext.New(eng, agentcontext.Options{
		EventBuffer: c.cfg.Dashboard.EventBuffer,
		Logger:      c.logger,
		Workflows:   wfs,
	})
	if err := provider.Init(); err != nil {
		return err
	}
	defer provider.Close()

	events := api.NewChannelListener(1024)
	events.Attach(eng)
	defer events.Close()

	provider.StartSimulation(c.cfg.Simulation.Speed)

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	if err := runner.StartWorkers(ctx, c.cfg.Workers); err != nil {
		return err
	}
	defer runner.Stop()

	expected := 0
	for _, a := range provider.View().Agents {
		wf, ok := catalog.WorkflowFor(wfs, a.Type)
		if !ok {
			continue
		}
		if err := runner.StartWorkflowAsync(ctx, api.ExecuteRequest{AgentID: a.ID, WorkflowID: wf.ID}); err != nil {
			return err
		}
		expected++
	}

	action := api.ActionApprove
	if opts.reject {
		action = api.ActionReject
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		done := 0
		for done < expected {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-events.C():
				if !ok {
					return errors.New("event stream closed")
				}
				printEvent(out, ev)

				switch d := ev.Data.(type) {
				case api.ApprovalRequestedData:
					resp := api.ApprovalResponse{Action: action, Responder: "demo", Comments: "answered by agentsim demo"}
					if err := runner.RespondAsync(gctx, d.ApprovalID, resp); err != nil {
						return err
					}
				case api.WorkflowCompleteData:
					done++
				}
			}
		}
		return nil
	})

	waitErr := g.Wait()
	runner.Stop()
	provider.RefreshData()

	printSummary(out, provider.View(), basic.Snapshot(), reg)
	if dropped := events.Dropped(); dropped > 0 {
		c.logger.Warn("event stream dropped events", "dropped", dropped)
	}
	if opts.dump {
		pp.Fprintln(out, provider.View())
	}

	if errors.Is(waitErr, context.DeadlineExceeded) {
		return fmt.Errorf("demo timed out after %v", opts.timeout)
	}
	return waitErr
}

func printEvent(out io.Writer, ev api.SimulationEvent) {
	ts := gray(ev.Timestamp.Format("15:04:05.000"))
	var mark string
	switch ev.Type {
	case api.EventWorkflowStart:
		mark = bold(blue("▶"))
	case api.EventStepStart:
		mark = gray("·")
	case api.EventStepComplete:
		mark = green("✓")
	case api.EventStepError:
		mark = red("✗")
	case api.EventApprovalRequested:
		mark = yellow("?")
	case api.EventApprovalResponded:
		mark = cyan("!")
	case api.EventWorkflowComplete:
		mark = bold(green("■"))
		if d, ok := ev.Data.(api.WorkflowCompleteData); ok && d.Status == api.ExecutionFailed {
			mark = bold(red("■"))
		}
	}
	fmt.Fprintf(out, "%s %s %-18s %s\n", ts, mark, gray(ev.AgentID), ev.Message)
}

func printSummary(out io.Writer, v agentcontext.ViewModel, m api.BasicMetricsSnapshot, reg prometheus.Gatherer) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, bold("Agents"))
	for _, a := range v.Agents {
		fmt.Fprintf(out, "  %-20s %-16s runs=%d completed=%d success=%.0f%% avg=%v\n",
			a.ID, a.Status,
			a.Metrics.TotalWorkflows, a.Metrics.CompletedWorkflows,
			a.Metrics.SuccessRate*100, a.Metrics.AverageCompletionTime.Round(time.Millisecond))
	}

	fmt.Fprintln(out, bold("Totals"))
	fmt.Fprintf(out, "  workflows started=%d completed=%d failed=%d\n", m.WorkflowsStarted, m.WorkflowsCompleted, m.WorkflowsFailed)
	fmt.Fprintf(out, "  steps completed=%d avg=%v approvals=%d pending=%d\n",
		m.StepsCompleted, m.AvgStepDuration.Round(time.Millisecond), m.ApprovalsRequested, m.PendingApprovals)

	families, err := reg.Gather()
	if err != nil {
		return
	}
	fmt.Fprintln(out, bold("Metrics"))
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			labels := ""
			for _, lp := range metric.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case metric.GetCounter() != nil:
				fmt.Fprintf(out, "  %s%s %v\n", mf.GetName(), labels, metric.GetCounter().GetValue())
			case metric.GetGauge() != nil:
				fmt.Fprintf(out, "  %s%s %v\n", mf.GetName(), labels, metric.GetGauge().GetValue())
			case metric.GetHistogram() != nil:
				fmt.Fprintf(out, "  %s%s count=%d\n", mf.GetName(), labels, metric.GetHistogram().GetSampleCount())
			}
		}
	}
}
