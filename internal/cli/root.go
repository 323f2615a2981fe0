// Package cli implements the cobra command tree for watchrun.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hupe1980/watchrun/internal/config"
	"github.com/hupe1980/watchrun/internal/logging"
	"github.com/hupe1980/watchrun/internal/term"
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", term.RedHighlight("error:"), err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return 1
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "watchrun",
		Short: "Run project tasks and re-run them when files change",
		Long: `watchrun runs the tasks declared in .watchrun.yaml: external commands,
ordered sequences of other tasks, and clean-ups of generated files.

In watch mode it monitors the files of each configured watch group and,
once a burst of changes has settled, runs that group's tasks in order.
A failing task stops its group's sequence, but the watcher keeps running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			if cfg.NoColor {
				term.SetNoColor(true)
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("configFile", cfg.ConfigFile),
				slog.Duration("debounce", cfg.Debounce),
			)

			return nil
		},
	}

	registerGlobalFlags(cmd, &cfgFile)

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	cmd.AddCommand(
		newRunCommand(),
		newWatchCommand(),
		newTasksCommand(),
		newCheckCommand(),
		newVersionCommand(),
		newCompletionCommand(),
	)

	return cmd
}
