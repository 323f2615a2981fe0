package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ErrNoTaskfile is returned when no config file was found to read tasks from.
var ErrNoTaskfile = errors.New("no config file found (create .watchrun.yaml or pass --config)")

// Taskfile holds the task definitions and watch groups declared in the
// config file. Map iteration order is not meaningful; TaskOrder and
// WatchOrder keep declaration order.
type Taskfile struct {
	// Requires is an optional semver constraint on the watchrun version.
	Requires string `json:"requires,omitempty"`

	// Tasks maps task names to their definitions.
	Tasks map[string]TaskDef `json:"tasks,omitempty"`

	// Watch maps watch group names to their definitions.
	Watch map[string]WatchDef `json:"watch,omitempty"`

	TaskOrder  []string `json:"-"`
	WatchOrder []string `json:"-"`

	root *yaml.Node
}

// TaskDef declares a single task. Exactly one of Exec, Sequence or Clean
// must be set. A task written as a plain YAML list is a sequence.
type TaskDef struct {
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Exec        *ExecDef `yaml:"exec,omitempty" json:"exec,omitempty"`
	Sequence    []string `yaml:"sequence,omitempty" json:"sequence,omitempty"`
	Clean       []string `yaml:"clean,omitempty" json:"clean,omitempty"`
}

// ExecDef describes an external command invocation.
type ExecDef struct {
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir     string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// WatchDef associates file globs with an ordered list of task names.
type WatchDef struct {
	Files []string `yaml:"files" json:"files"`
	Tasks []string `yaml:"tasks" json:"tasks"`
}

// FieldError reports a problem with a specific entry of the task file.
type FieldError struct {
	Path string
	Line int
	Msg  string
	// Err optionally classifies the problem for errors.Is.
	Err error
}

func (e *FieldError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Path, e.Msg, e.Line)
	}

	return fmt.Sprintf("%s: %s", e.Path, e.Msg)
}

func (e *FieldError) Unwrap() error { return e.Err }

// LoadTaskfile reads and parses the task sections of the config file at path.
func LoadTaskfile(path string) (*Taskfile, error) {
	if path == "" {
		return nil, ErrNoTaskfile
	}

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("reading task file: %w", err)
	}

	tf, err := ParseTaskfile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return tf, nil
}

// ParseTaskfile parses the requires, tasks and watch sections from raw config
// file bytes and checks their structure. Cross references between tasks and
// groups are resolved later when the task registry is built.
func ParseTaskfile(data []byte) (*Taskfile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing task file: %w", err)
	}

	tf := &Taskfile{
		Tasks: map[string]TaskDef{},
		Watch: map[string]WatchDef{},
	}

	if len(doc.Content) == 0 {
		return tf, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &FieldError{Path: "(root)", Line: root.Line, Msg: "expected a mapping"}
	}

	tf.root = root

	if n := mapValue(root, "requires"); n != nil {
		if err := n.Decode(&tf.Requires); err != nil {
			return nil, &FieldError{Path: "requires", Line: n.Line, Msg: "must be a string"}
		}
	}

	if n := mapValue(root, "tasks"); n != nil {
		if err := tf.parseTasks(n); err != nil {
			return nil, err
		}
	}

	if n := mapValue(root, "watch"); n != nil {
		if err := tf.parseWatch(n); err != nil {
			return nil, err
		}
	}

	return tf, nil
}

func (tf *Taskfile) parseTasks(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return &FieldError{Path: "tasks", Line: n.Line, Msg: "expected a mapping of task names"}
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		name := key.Value
		path := "tasks." + name

		if strings.TrimSpace(name) == "" {
			return &FieldError{Path: "tasks", Line: key.Line, Msg: "task name must not be empty"}
		}

		if _, dup := tf.Tasks[name]; dup {
			return &FieldError{Path: path, Line: key.Line, Msg: "duplicate task"}
		}

		var def TaskDef

		switch val.Kind {
		case yaml.SequenceNode:
			if err := val.Decode(&def.Sequence); err != nil {
				return &FieldError{Path: path, Line: val.Line, Msg: "sequence must be a list of task names"}
			}
		case yaml.MappingNode:
			if err := checkTaskKeys(path, val); err != nil {
				return err
			}

			if err := val.Decode(&def); err != nil {
				return &FieldError{Path: path, Line: val.Line, Msg: err.Error()}
			}
		default:
			return &FieldError{Path: path, Line: val.Line, Msg: "expected a mapping or a list of task names"}
		}

		if err := validateTaskDef(path, val.Line, def); err != nil {
			return err
		}

		tf.Tasks[name] = def
		tf.TaskOrder = append(tf.TaskOrder, name)
	}

	return nil
}

func validateTaskDef(path string, line int, def TaskDef) error {
	set := 0
	if def.Exec != nil {
		set++
	}

	if def.Sequence != nil {
		set++
	}

	if def.Clean != nil {
		set++
	}

	if set != 1 {
		return &FieldError{Path: path, Line: line, Msg: "exactly one of exec, sequence, clean must be set"}
	}

	switch {
	case def.Exec != nil && strings.TrimSpace(def.Exec.Command) == "":
		return &FieldError{Path: path + ".exec.command", Line: line, Msg: "must not be empty"}
	case def.Sequence != nil && len(def.Sequence) == 0:
		return &FieldError{Path: path + ".sequence", Line: line, Msg: "must not be empty"}
	case def.Clean != nil && len(def.Clean) == 0:
		return &FieldError{Path: path + ".clean", Line: line, Msg: "must not be empty"}
	}

	return nil
}

func (tf *Taskfile) parseWatch(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return &FieldError{Path: "watch", Line: n.Line, Msg: "expected a mapping of group names"}
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		name := key.Value
		path := "watch." + name

		if _, dup := tf.Watch[name]; dup {
			return &FieldError{Path: path, Line: key.Line, Msg: "duplicate watch group"}
		}

		if err := checkKeys(path, val, "files", "tasks"); err != nil {
			return err
		}

		var def WatchDef
		if err := val.Decode(&def); err != nil {
			return &FieldError{Path: path, Line: val.Line, Msg: err.Error()}
		}

		if len(def.Files) == 0 {
			return &FieldError{Path: path + ".files", Line: val.Line, Msg: "must list at least one glob"}
		}

		if len(def.Tasks) == 0 {
			return &FieldError{Path: path + ".tasks", Line: val.Line, Msg: "must list at least one task"}
		}

		tf.Watch[name] = def
		tf.WatchOrder = append(tf.WatchOrder, name)
	}

	return nil
}

func checkTaskKeys(path string, n *yaml.Node) error {
	if err := checkKeys(path, n, "description", "exec", "sequence", "clean"); err != nil {
		return err
	}

	if exec := mapValue(n, "exec"); exec != nil && exec.Kind == yaml.MappingNode {
		return checkKeys(path+".exec", exec, "command", "args", "dir", "env")
	}

	return nil
}

// checkKeys rejects mapping keys outside allowed, so that a misspelt field
// fails instead of being dropped.
func checkKeys(path string, n *yaml.Node, allowed ...string) error {
	if n.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i]
		if !slices.Contains(allowed, key.Value) {
			return &FieldError{
				Path: path + "." + key.Value,
				Line: key.Line,
				Msg:  fmt.Sprintf("unknown field (allowed: %s)", strings.Join(allowed, ", ")),
			}
		}
	}

	return nil
}

// Line returns the source line of the entry addressed by a dotted path such
// as "watch.scripts.tasks[1]", or 0 when it cannot be located. Paths ending
// in a mapping key resolve to the key's line.
func (tf *Taskfile) Line(path string) int {
	if tf == nil || tf.root == nil {
		return 0
	}

	n := tf.root
	parts := strings.Split(path, ".")

	for i, part := range parts {
		key, idx := splitIndex(part)

		// "tasks.x.sequence[i]" also addresses the list shorthand "tasks.x[i]".
		if key == "sequence" && n.Kind == yaml.SequenceNode {
			key = ""
		}

		if key != "" {
			if i == len(parts)-1 && idx < 0 {
				if k := mapKey(n, key); k != nil {
					return k.Line
				}

				return 0
			}

			n = mapValue(n, key)
			if n == nil {
				return 0
			}
		}

		if idx >= 0 {
			if n.Kind != yaml.SequenceNode || idx >= len(n.Content) {
				return 0
			}

			n = n.Content[idx]
		}
	}

	return n.Line
}

// splitIndex splits "tasks[2]" into ("tasks", 2). Parts without an index
// return -1.
func splitIndex(part string) (string, int) {
	open := strings.IndexByte(part, '[')
	if open < 0 || !strings.HasSuffix(part, "]") {
		return part, -1
	}

	idx, err := strconv.Atoi(part[open+1 : len(part)-1])
	if err != nil {
		return part, -1
	}

	return part[:open], idx
}

func mapKey(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i]
		}
	}

	return nil
}

func mapValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}

	return nil
}

// CheckRequires verifies that current satisfies the semver constraint.
// Development builds whose version is not valid semver skip the check.
func CheckRequires(constraint, current string) error {
	if strings.TrimSpace(constraint) == "" {
		return nil
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &FieldError{Path: "requires", Msg: fmt.Sprintf("invalid version constraint %q: %v", constraint, err)}
	}

	v, err := semver.NewVersion(current)
	if err != nil {
		return nil
	}

	if !c.Check(v) {
		return fmt.Errorf("config requires watchrun %s, running %s", constraint, current)
	}

	return nil
}
