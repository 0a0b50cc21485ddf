package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrijr/agentsim/pkg/catalog"
)

func newValidateCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check YAML workflow files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				wfs, err := catalog.LoadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s %s\n", red("FAIL"), err)
					continue
				}
				for _, wf := range wfs {
					fmt.Fprintf(out, "%s %s: %s (%d steps)\n", green("ok"), path, wf.ID, len(wf.Steps))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed validation", failed, len(args))
			}
			c.logger.Debug("workflow files valid", "files", len(args))
			return nil
		},
	}
}
