package task

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/hupe1980/watchrun/internal/config"
)

// WatchTask is the name of the builtin task that starts the watch loop.
const WatchTask = "watch"

// ErrUnknownTask is wrapped by errors about task names that do not resolve.
var ErrUnknownTask = errors.New("unknown task")

// Task is a resolved task definition.
type Task struct {
	Name        string
	Kind        Kind
	Description string

	// Steps lists the member task names of a sequence.
	Steps []string

	// Action executes leaf tasks. It is nil for sequences and the watch task.
	Action Action
}

// Group is a named association of file globs to an ordered task list.
type Group struct {
	Name     string
	Patterns []string
	Tasks    []string
}

// Match reports whether a slash-separated path relative to the watch root
// matches any of the group's patterns.
func (g *Group) Match(rel string) bool {
	rel = path.Clean(filepath.ToSlash(rel))

	for _, p := range g.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}

	return false
}

// Registry is the immutable set of tasks and watch groups loaded at startup.
type Registry struct {
	root   string
	tasks  map[string]*Task
	order  []string
	groups []*Group
	plans  map[string][]string
}

// Option customises registry construction.
type Option func(*options)

type options struct {
	funcs     map[string]Action
	funcOrder []string
}

// WithAction registers an in-process task under name. The name may be
// referenced from sequences and watch groups like any configured task.
func WithAction(name string, action Action) Option {
	return func(o *options) {
		if _, ok := o.funcs[name]; !ok {
			o.funcOrder = append(o.funcOrder, name)
		}

		o.funcs[name] = action
	}
}

// NewRegistry resolves tf into a registry rooted at root. Every task
// referenced by a sequence or watch group must resolve, sequences must be
// acyclic, globs must be well formed, and watch groups must not reach the
// builtin watch task. All problems found are reported together.
func NewRegistry(tf *config.Taskfile, root string, opts ...Option) (*Registry, error) {
	o := &options{funcs: map[string]Action{}}
	for _, opt := range opts {
		opt(o)
	}

	if tf == nil {
		tf = &config.Taskfile{}
	}

	r := &Registry{
		root:  root,
		tasks: map[string]*Task{},
		plans: map[string][]string{},
	}

	var errs []error

	fail := func(p, format string, args ...any) {
		errs = append(errs, &config.FieldError{Path: p, Line: tf.Line(p), Msg: fmt.Sprintf(format, args...)})
	}

	unknown := func(p, name string) {
		errs = append(errs, &config.FieldError{
			Path: p,
			Line: tf.Line(p),
			Msg:  fmt.Sprintf("%s %q", ErrUnknownTask, name),
			Err:  ErrUnknownTask,
		})
	}

	for _, name := range tf.TaskOrder {
		def := tf.Tasks[name]
		p := "tasks." + name

		if name == WatchTask {
			fail(p, "%q is a builtin task and cannot be redefined", WatchTask)
			continue
		}

		t := &Task{Name: name, Kind: kindOf(def), Description: def.Description}

		switch t.Kind {
		case KindExec:
			t.Action = &ExecAction{
				Command: def.Exec.Command,
				Args:    def.Exec.Args,
				Dir:     r.resolveDir(def.Exec.Dir),
				Env:     def.Exec.Env,
			}
		case KindClean:
			for i, g := range def.Clean {
				if msg := checkCleanGlob(g); msg != "" {
					fail(fmt.Sprintf("%s.clean[%d]", p, i), "%s", msg)
				}
			}

			t.Action = &CleanAction{Root: root, Patterns: def.Clean}
		case KindSequence:
			t.Steps = def.Sequence
		}

		r.add(t)
	}

	for _, name := range o.funcOrder {
		if _, dup := r.tasks[name]; dup || name == WatchTask {
			fail("tasks."+name, "in-process task conflicts with a configured task")
			continue
		}

		r.add(&Task{Name: name, Kind: KindFunc, Action: o.funcs[name]})
	}

	r.add(&Task{Name: WatchTask, Kind: KindWatch, Description: "watch files and run the configured groups"})

	for _, name := range r.order {
		t := r.tasks[name]
		for i, step := range t.Steps {
			if _, ok := r.tasks[step]; !ok {
				unknown(fmt.Sprintf("tasks.%s.sequence[%d]", name, i), step)
			}
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, name := range r.order {
		if _, err := r.expand(name, nil); err != nil {
			fail("tasks."+name, "%v", err)
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	for _, name := range tf.WatchOrder {
		def := tf.Watch[name]
		p := "watch." + name
		g := &Group{Name: name, Tasks: def.Tasks}

		for i, pattern := range def.Files {
			if msg := checkGlob(pattern); msg != "" {
				fail(fmt.Sprintf("%s.files[%d]", p, i), "%s", msg)
				continue
			}

			g.Patterns = append(g.Patterns, path.Clean(pattern))
		}

		for i, tn := range def.Tasks {
			tp := fmt.Sprintf("%s.tasks[%d]", p, i)

			plan, ok := r.plans[tn]
			if !ok {
				unknown(tp, tn)
				continue
			}

			for _, leaf := range plan {
				if leaf == WatchTask {
					fail(tp, "task %q starts the watch loop and cannot run from a watch group", tn)
					break
				}
			}
		}

		r.groups = append(r.groups, g)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return r, nil
}

func (r *Registry) add(t *Task) {
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
}

func (r *Registry) resolveDir(dir string) string {
	switch {
	case dir == "":
		return r.root
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(r.root, dir)
	}
}

// expand flattens name into its leaf tasks, memoising results in r.plans.
// stack holds the sequence chain being expanded, for cycle detection.
func (r *Registry) expand(name string, stack []string) ([]string, error) {
	if plan, ok := r.plans[name]; ok {
		return plan, nil
	}

	for _, s := range stack {
		if s == name {
			return nil, fmt.Errorf("sequence cycle: %s", strings.Join(append(stack, name), " -> "))
		}
	}

	t := r.tasks[name]
	if t.Kind.IsLeaf() {
		r.plans[name] = []string{name}
		return r.plans[name], nil
	}

	var plan []string

	for _, step := range t.Steps {
		sub, err := r.expand(step, append(stack, name))
		if err != nil {
			return nil, err
		}

		plan = append(plan, sub...)
	}

	r.plans[name] = plan

	return plan, nil
}

func checkGlob(pattern string) string {
	if strings.TrimSpace(pattern) == "" {
		return "glob must not be empty"
	}

	if path.IsAbs(pattern) || filepath.IsAbs(pattern) {
		return fmt.Sprintf("glob %q must be relative to the config directory", pattern)
	}

	if c := path.Clean(filepath.ToSlash(pattern)); c == ".." || strings.HasPrefix(c, "../") {
		return fmt.Sprintf("glob %q must not leave the config directory", pattern)
	}

	if !doublestar.ValidatePattern(pattern) {
		return fmt.Sprintf("malformed glob %q", pattern)
	}

	return ""
}

// checkCleanGlob is checkGlob plus a guard against patterns that would
// delete the config directory itself.
func checkCleanGlob(pattern string) string {
	if msg := checkGlob(pattern); msg != "" {
		return msg
	}

	c := path.Clean(filepath.ToSlash(pattern))
	for strings.HasSuffix(c, "/**") {
		c = strings.TrimSuffix(c, "/**")
	}

	if ok, _ := doublestar.Match(pattern, "."); ok || c == "." || c == "**" {
		return fmt.Sprintf("clean glob %q matches the config directory itself", pattern)
	}

	return ""
}

// Root returns the directory relative paths are resolved against.
func (r *Registry) Root() string { return r.root }

// Lookup returns the task registered under name.
func (r *Registry) Lookup(name string) (*Task, bool) {
	t, ok := r.tasks[name]
	return t, ok
}

// Names returns all task names in declaration order, builtin tasks last.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)

	return out
}

// Expand returns the leaf tasks name runs, in execution order.
func (r *Registry) Expand(name string) ([]string, error) {
	plan, ok := r.plans[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTask, name)
	}

	out := make([]string, len(plan))
	copy(out, plan)

	return out, nil
}

// Groups returns the watch groups in declaration order.
func (r *Registry) Groups() []*Group {
	out := make([]*Group, len(r.groups))
	copy(out, r.groups)

	return out
}

// Group returns the watch group registered under name.
func (r *Registry) Group(name string) (*Group, bool) {
	for _, g := range r.groups {
		if g.Name == name {
			return g, true
		}
	}

	return nil, false
}
