package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/petrijr/agentsim/internal/config"
	"github.com/petrijr/agentsim/internal/engine"
	"github.com/petrijr/agentsim/internal/logging"
	"github.com/petrijr/agentsim/pkg/api"
	"github.com/petrijr/agentsim/pkg/catalog"
)

type cli struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "agentsim",
		Short:         "Simulate AI agents running community workflows",
		Long:          "agentsim runs welcome, contribution and triage agents through their workflows, pausing for human approval.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&c.logFormat, "log-format", "", "log format (text, json)")

	root.AddCommand(newDemoCommand(c))
	root.AddCommand(newWorkflowsCommand(c))
	root.AddCommand(newValidateCommand(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = c.logFormat
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logger
	engine.ConfigureLockChecks(cfg.Simulation.LockChecks, logger)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		logger.Warn("set GOMAXPROCS", "error", err)
	}
	return nil
}

// workflows returns the catalog workflows followed by those in the
// configured workflow files.
func (c *cli) workflows() ([]api.Workflow, error) {
	wfs := catalog.DefaultWorkflows()
	for _, path := range c.cfg.WorkflowFiles {
		extra, err := catalog.LoadFile(path)
		if err != nil {
			return nil, err
		}
		wfs = append(wfs, extra...)
	}
	return wfs, nil
}
