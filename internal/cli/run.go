package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/watchrun/internal/config"
	"github.com/hupe1980/watchrun/internal/task"
	"github.com/hupe1980/watchrun/internal/term"
)

// defaultTask runs when no task names are given.
const defaultTask = "default"

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Run tasks once",
		Long: `Run executes the named tasks in order. Sequences are expanded into
their member tasks, and the first failing task stops the run.

Without arguments the task named "default" runs. When a run reaches the
builtin "watch" task, watchrun switches to watch mode after every earlier
task has succeeded.`,
		ValidArgsFunction: completeTaskNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, args)
		},
	}

	registerDebounceFlag(cmd)

	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, names []string) error {
	p, err := loadProject(ctx)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		names = []string{defaultTask}
	}

	status := cmd.ErrOrStderr()
	if p.cfg.Quiet {
		status = nil
	}

	report, err := p.newRunner(cmd.OutOrStdout(), status, cmd.ErrOrStderr()).Run(ctx, names...)
	if err != nil {
		if report != nil && !p.cfg.Quiet {
			printRunSummary(cmd, report)
		}

		return &ExitError{Code: runExitCode(err), Err: err}
	}

	if !p.cfg.Quiet {
		printRunSummary(cmd, report)
	}

	return nil
}

func printRunSummary(cmd *cobra.Command, report *task.Report) {
	w := cmd.ErrOrStderr()

	for _, r := range report.Results {
		if r.Skipped {
			fmt.Fprintf(w, "%s %s\n", term.Skipped(), r.Name)
		}
	}

	fmt.Fprintf(w, "%s %s\n", term.Status(report.OK()), report.Summary())
}

// completeTaskNames offers the configured task names for shell completion.
func completeTaskNames(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	p, err := loadProject(completionContext(cmd))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	return p.registry.Names(), cobra.ShellCompDirectiveNoFileComp
}

// completionContext loads the config for shell completion requests, which
// bypass the root command's pre-run hook.
func completionContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var file string
	if f := cmd.Flag("config"); f != nil {
		file = f.Value.String()
	}

	cfg, err := config.Load(cmd, file)
	if err != nil {
		return ctx
	}

	return config.NewContext(ctx, cfg)
}
