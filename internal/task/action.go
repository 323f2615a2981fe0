package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Action is the executable part of a leaf task. Output of the action is
// written to out.
type Action interface {
	Run(ctx context.Context, out io.Writer) error
}

// ActionFunc adapts an in-process function to Action.
type ActionFunc func(ctx context.Context, out io.Writer) error

// Run calls f.
func (f ActionFunc) Run(ctx context.Context, out io.Writer) error { return f(ctx, out) }

// ExitCodeError is returned when a command terminates with a non-zero exit
// code.
type ExitCodeError struct {
	Command  string
	ExitCode int
}

func (e *ExitCodeError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

// ExecAction runs an external command and streams its combined output.
type ExecAction struct {
	Command string
	Args    []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env entries are added to the inherited environment.
	Env map[string]string
}

// Run executes the command and waits for it to finish. Cancelling ctx kills
// the process.
func (a *ExecAction) Run(ctx context.Context, out io.Writer) error {
	cmd := exec.CommandContext(ctx, a.Command, a.Args...) //nolint:gosec
	cmd.Dir = a.Dir
	cmd.Stdout = out
	cmd.Stderr = out

	if len(a.Env) > 0 {
		cmd.Env = append(os.Environ(), envList(a.Env)...)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitCodeError{Command: a.String(), ExitCode: exitErr.ExitCode()}
	}

	return fmt.Errorf("running %s: %w", a.String(), err)
}

func (a *ExecAction) String() string {
	if len(a.Args) == 0 {
		return a.Command
	}

	return a.Command + " " + strings.Join(a.Args, " ")
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}

	return list
}

// CleanAction removes every file and directory under Root matching one of
// Patterns. Patterns use doublestar syntax and are relative to Root.
type CleanAction struct {
	Root     string
	Patterns []string
}

// Run deletes the matches and reports how many paths were removed. All
// patterns are expanded before anything is deleted.
func (a *CleanAction) Run(ctx context.Context, out io.Writer) error {
	fsys := os.DirFS(a.Root)
	seen := map[string]struct{}{}

	for _, pattern := range a.Patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFailOnIOErrors())
		if err != nil {
			return fmt.Errorf("expanding %q: %w", pattern, err)
		}

		for _, m := range matches {
			if m == "." || !isBelowRoot(m) {
				continue
			}

			seen[m] = struct{}{}
		}
	}

	paths := make([]string, 0, len(seen))
	for m := range seen {
		paths = append(paths, m)
	}

	// Parents sort before their children.
	sort.Strings(paths)

	removed := 0

	for _, m := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := filepath.Join(a.Root, filepath.FromSlash(m))

		if _, err := os.Lstat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("removing %s: %w", m, err)
		}

		removed++
	}

	_, err := fmt.Fprintf(out, "removed %d path(s)\n", removed)

	return err
}

// isBelowRoot reports whether a slash-separated match lies strictly below
// the clean root.
func isBelowRoot(match string) bool {
	c := path.Clean(match)

	return c != "." && c != ".." && !strings.HasPrefix(c, "../") && !path.IsAbs(c)
}
