package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/watchrun/internal/term"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the task file",
		Long: `Check loads the config file and validates its tasks and watch groups
without running anything: every referenced task must exist, sequences must
not form cycles, globs must be well formed, and no watch group may reach
the builtin watch task.

Problems are reported with their location in the file and exit code 2.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadProject(cmd.Context())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d task(s), %d watch group(s)\n",
				term.Status(true), p.cfg.ConfigFile, len(p.taskfile.TaskOrder), len(p.taskfile.WatchOrder))

			return err
		},
	}
}
