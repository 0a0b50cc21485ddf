package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newWorkflowsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List available workflows and their steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wfs, err := c.workflows()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, wf := range wfs {
				fmt.Fprintf(out, "%s %s\n", bold(wf.ID), gray("("+string(wf.AgentType)+")"))
				if wf.Description != "" {
					fmt.Fprintf(out, "  %s\n", wf.Description)
				}
				for i, s := range wf.Steps {
					deps := ""
					if len(s.Dependencies) > 0 {
						deps = gray(" after " + strings.Join(s.Dependencies, ", "))
					}
					fmt.Fprintf(out, "  %d. %-24s %s%s\n", i+1, s.ID, stepTypeColor(string(s.Type)), deps)
				}
			}
			return nil
		},
	}
}

var (
	bold   = color.New(color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	blue   = color.New(color.FgBlue).SprintFunc()
)

func stepTypeColor(t string) string {
	switch t {
	case "human_approval":
		return yellow(t)
	case "notification":
		return cyan(t)
	case "data_collection":
		return blue(t)
	default:
		return t
	}
}
