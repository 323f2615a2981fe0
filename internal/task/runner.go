package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hupe1980/watchrun/internal/logging"
	"github.com/hupe1980/watchrun/internal/term"
)

// WatchFunc starts the watch loop and blocks until it shuts down.
type WatchFunc func(ctx context.Context) error

// RunError reports the task that stopped a run.
type RunError struct {
	Task string
	Err  error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Result is the outcome of one leaf task.
type Result struct {
	Name     string
	Kind     Kind
	Skipped  bool
	Duration time.Duration
	Err      error
}

// OK reports whether the task ran and succeeded.
func (r Result) OK() bool { return !r.Skipped && r.Err == nil }

// Report aggregates the results of a run.
type Report struct {
	Results  []Result
	Passed   int
	Failed   int
	Skipped  int
	Duration time.Duration
}

// OK reports whether every task ran and succeeded.
func (r *Report) OK() bool { return r.Failed == 0 && r.Skipped == 0 }

// Summary returns a one-line description such as
// "2 passed, 1 failed, 1 skipped in 1.2s".
func (r *Report) Summary() string {
	parts := []string{fmt.Sprintf("%d passed", r.Passed)}

	if r.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", r.Failed))
	}

	if r.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", r.Skipped))
	}

	return strings.Join(parts, ", ") + " in " + r.Duration.Round(time.Millisecond).String()
}

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// Out receives the output of the tasks themselves.
	Out io.Writer

	// Status receives one status line per task.
	Status io.Writer

	// Watch is invoked when a run reaches the builtin watch task.
	Watch WatchFunc
}

// Runner executes tasks from a registry one at a time.
type Runner struct {
	registry *Registry
	opts     RunnerOptions
}

// NewRunner creates a runner over reg. Nil writers discard output.
func NewRunner(reg *Registry, opts RunnerOptions) *Runner {
	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.Status == nil {
		opts.Status = io.Discard
	}

	return &Runner{registry: reg, opts: opts}
}

// Registry returns the registry the runner executes from.
func (r *Runner) Registry() *Registry { return r.registry }

// SetWatch installs the function started by the builtin watch task. It
// must be called before Run.
func (r *Runner) SetWatch(fn WatchFunc) { r.opts.Watch = fn }

// Run expands names in order and executes the resulting leaf tasks
// sequentially. The first failing task stops the run; the remaining tasks
// are reported as skipped and a *RunError is returned. Unknown names fail
// before anything runs.
func (r *Runner) Run(ctx context.Context, names ...string) (*Report, error) {
	var plan []string

	for _, name := range names {
		leaves, err := r.registry.Expand(name)
		if err != nil {
			return nil, err
		}

		plan = append(plan, leaves...)
	}

	report := &Report{Results: make([]Result, 0, len(plan))}
	start := time.Now()

	var runErr *RunError

	for _, name := range plan {
		t, _ := r.registry.Lookup(name)

		if runErr != nil {
			report.Results = append(report.Results, Result{Name: name, Kind: t.Kind, Skipped: true})
			report.Skipped++

			continue
		}

		res := r.runOne(ctx, t)
		report.Results = append(report.Results, res)

		if res.Err != nil {
			report.Failed++
			runErr = &RunError{Task: name, Err: res.Err}

			continue
		}

		report.Passed++
	}

	report.Duration = time.Since(start)

	if runErr != nil {
		return report, runErr
	}

	return report, nil
}

func (r *Runner) runOne(ctx context.Context, t *Task) Result {
	log := logging.ForTask(ctx, t.Name).With(slog.String("kind", t.Kind.String()))
	res := Result{Name: t.Name, Kind: t.Kind}

	fmt.Fprintf(r.opts.Status, "%s %s\n", term.Bold("running"), term.Highlight(t.Name))
	log.Debug("task started")

	start := time.Now()

	if err := ctx.Err(); err != nil {
		res.Err = err
	} else {
		res.Err = r.execute(ctx, t)
	}

	res.Duration = time.Since(start)
	elapsed := res.Duration.Round(time.Millisecond)

	if res.Err != nil {
		fmt.Fprintf(r.opts.Status, "%s %s: %v (%s)\n", term.Status(false), t.Name, res.Err, elapsed)
		log.Debug("task failed", slog.String("error", res.Err.Error()), slog.Duration("duration", res.Duration))

		return res
	}

	fmt.Fprintf(r.opts.Status, "%s %s (%s)\n", term.Status(true), t.Name, elapsed)
	log.Debug("task finished", slog.Duration("duration", res.Duration))

	return res
}

func (r *Runner) execute(ctx context.Context, t *Task) error {
	if t.Kind == KindWatch {
		if r.opts.Watch == nil {
			return errors.New("watch mode is not available in this context")
		}

		return r.opts.Watch(ctx)
	}

	if t.Action == nil {
		return fmt.Errorf("task %q has no action", t.Name)
	}

	return t.Action.Run(ctx, r.opts.Out)
}
