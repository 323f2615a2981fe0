package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/watchrun/internal/config"
	"github.com/hupe1980/watchrun/internal/logging"
	"github.com/hupe1980/watchrun/internal/task"
	"github.com/hupe1980/watchrun/internal/version"
	"github.com/hupe1980/watchrun/internal/watch"
)

// project is a loaded and validated task file with its resolved root.
type project struct {
	cfg      *config.Config
	taskfile *config.Taskfile
	root     string
	registry *task.Registry
}

// loadProject reads the task sections of the active config file, checks the
// version constraint and builds the task registry. Every failure is a
// configuration error with exit code 2.
func loadProject(ctx context.Context) (*project, error) {
	cfg := config.FromContext(ctx)
	log := logging.FromContext(ctx)

	tf, err := config.LoadTaskfile(cfg.ConfigFile)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	if err := config.CheckRequires(tf.Requires, version.GetInfo().Semver()); err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	root, err := cfg.Root()
	if err != nil {
		return nil, &ExitError{Code: 2, Err: fmt.Errorf("resolving project root: %w", err)}
	}

	reg, err := task.NewRegistry(tf, root)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: fmt.Errorf("invalid task file %s:\n%w", cfg.ConfigFile, err)}
	}

	log.Debug("task file loaded",
		slog.String("file", cfg.ConfigFile),
		slog.String("root", root),
		slog.Int("tasks", len(tf.TaskOrder)),
		slog.Int("groups", len(tf.WatchOrder)),
	)

	return &project{cfg: cfg, taskfile: tf, root: root, registry: reg}, nil
}

// newRunner builds a runner whose builtin watch task starts the watch loop
// over all configured groups. status may be nil to silence per-task lines;
// the watch loop always reports its triggers and failures on console.
func (p *project) newRunner(out, status, console io.Writer) *task.Runner {
	runner := task.NewRunner(p.registry, task.RunnerOptions{Out: out, Status: status})

	runner.SetWatch(func(ctx context.Context) error {
		return watch.Run(ctx, p.watchOptions(ctx, p.registry.Groups(), console), runner)
	})

	return runner
}

func (p *project) watchOptions(ctx context.Context, groups []*task.Group, out io.Writer) watch.Options {
	return watch.Options{
		Root:     p.root,
		Groups:   groups,
		Debounce: p.cfg.Debounce,
		Logger:   logging.FromContext(ctx),
		Out:      out,
	}
}

// runExitCode maps a task run error to an exit code: unknown task names are
// usage errors, anything else is a failed run.
func runExitCode(err error) int {
	if errors.Is(err, task.ErrUnknownTask) {
		return 2
	}

	return 1
}
