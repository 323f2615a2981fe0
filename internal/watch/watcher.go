package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/watchrun/internal/logging"
	"github.com/hupe1980/watchrun/internal/task"
	"github.com/hupe1980/watchrun/internal/term"
)

// SequenceRunner runs named tasks in order, stopping at the first failure.
// *task.Runner implements it.
type SequenceRunner interface {
	Run(ctx context.Context, names ...string) (*task.Report, error)
}

// Options configures the watch behaviour.
type Options struct {
	// Root is the directory group globs are relative to.
	Root string

	// Groups are the watch groups to monitor.
	Groups []*task.Group

	// Debounce is the quiet period before a group is triggered.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Out is the writer for user-facing status messages.
	Out io.Writer
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run starts the file watcher and blocks until the context is cancelled
// or a SIGINT/SIGTERM signal is received. No tasks run until a watched file
// changes. Task failures are reported on Out and do not end the loop.
func Run(ctx context.Context, opts Options, runner SequenceRunner) error {
	if opts.Logger == nil {
		opts.Logger = logging.FromContext(ctx)
	}

	ctx = logging.NewContext(ctx, opts.Logger)

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultOptions().Debounce
	}

	if len(opts.Groups) == 0 {
		return errors.New("no watch groups configured")
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return fmt.Errorf("resolving watch root: %w", err)
	}

	if info, statErr := os.Stat(root); statErr != nil || !info.IsDir() {
		return fmt.Errorf("watching root %q: not a directory", root)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range baseDirs(root, opts.Groups) {
		if err := addRecursive(watcher, dir); err != nil {
			return fmt.Errorf("watching directory %q: %w", dir, err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q := newQueue()

	debouncers := make(map[string]*Debouncer, len(opts.Groups))
	for _, g := range opts.Groups {
		g := g
		debouncers[g.Name] = NewDebouncer(opts.Debounce, func(changes *ChangeSet) {
			q.push(g, changes)
		})
	}

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			req, ok := q.pop(sigCtx)
			if !ok {
				return
			}

			doRun(sigCtx, opts, runner, req)
		}
	}()

	defer func() {
		for _, d := range debouncers {
			d.Stop()
		}

		q.close()
		wg.Wait()
	}()

	fmt.Fprintf(opts.Out, "watching %d group(s) in %s (debounce=%s)\n", len(opts.Groups), root, opts.Debounce)

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "\nshutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := addRecursive(watcher, event.Name); addErr != nil {
						opts.Logger.Warn("watching new directory", slog.String("dir", event.Name), slog.String("error", addErr.Error()))
					}
				}
			}

			rel, relErr := filepath.Rel(root, event.Name)
			if relErr != nil {
				continue
			}

			rel = filepath.ToSlash(rel)

			for _, g := range opts.Groups {
				if g.Match(rel) {
					debouncers[g.Name].Trigger(rel, event.Op)
				}
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// doRun executes one group's task sequence and prints the status lines.
func doRun(ctx context.Context, opts Options, runner SequenceRunner, req *request) {
	log := logging.ForGroup(ctx, req.group.Name)

	fmt.Fprintf(opts.Out, "[%s] %s: %s\n", time.Now().Format("15:04:05"),
		term.Highlight(req.group.Name), req.changes.Summary())
	log.Debug("group triggered", slog.Any("paths", req.changes.Paths()))

	report, err := runner.Run(ctx, req.group.Tasks...)

	now := time.Now().Format("15:04:05")

	if err != nil {
		if ctx.Err() != nil {
			return
		}

		fmt.Fprintf(opts.Out, "[%s] %s %s: %v\n", now, req.group.Name, term.Status(false), err)
		log.Warn("group run failed", slog.String("error", err.Error()))

		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s %s (%s)\n", now, req.group.Name, term.Status(true), report.Summary())
}

// baseDirs returns the directories to watch recursively: the static prefix
// of every group glob, or its nearest existing ancestor inside root.
// Directories nested in another returned directory are dropped.
func baseDirs(root string, groups []*task.Group) []string {
	seen := map[string]struct{}{}

	for _, g := range groups {
		for _, p := range g.Patterns {
			base, _ := doublestar.SplitPattern(p)
			dir := existingDir(root, filepath.Join(root, filepath.FromSlash(base)))
			seen[dir] = struct{}{}
		}
	}

	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}

	sort.Strings(dirs)

	var out []string

next:
	for _, d := range dirs {
		for _, o := range out {
			if within(o, d) {
				continue next
			}
		}

		out = append(out, d)
	}

	return out
}

func existingDir(root, dir string) string {
	for within(root, dir) {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}

		if dir == root {
			break
		}

		dir = filepath.Dir(dir)
	}

	return root
}

// within reports whether path equals dir or lies below it.
func within(dir, path string) bool {
	if path == dir {
		return true
	}

	return strings.HasPrefix(path, strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant filters out events that cannot change a watched file.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor temporary files. Dotfiles pass through; they only
	// trigger groups whose patterns name them.
	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
