package watch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind classifies a changed path.
type ChangeKind string

// ChangeKind values.
const (
	ChangeCreated  ChangeKind = "created"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
)

// ChangeSet records the distinct paths changed within one debounce window.
type ChangeSet struct {
	changes map[string]ChangeKind
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{changes: map[string]ChangeKind{}}
}

// Add records an fsnotify operation on path. A file created and then
// written within the window stays "created".
func (c *ChangeSet) Add(path string, op fsnotify.Op) {
	kind := kindOf(op)

	if prev, ok := c.changes[path]; ok && prev == ChangeCreated && kind == ChangeModified {
		return
	}

	c.changes[path] = kind
}

// Merge folds other into c.
func (c *ChangeSet) Merge(other *ChangeSet) {
	if other == nil {
		return
	}

	for _, p := range other.Paths() {
		kind := other.changes[p]

		if prev, ok := c.changes[p]; ok && prev == ChangeCreated && kind == ChangeModified {
			continue
		}

		c.changes[p] = kind
	}
}

// Len returns the number of distinct paths.
func (c *ChangeSet) Len() int { return len(c.changes) }

// Kind returns how path changed.
func (c *ChangeSet) Kind(path string) (ChangeKind, bool) {
	k, ok := c.changes[path]
	return k, ok
}

// Paths returns the changed paths sorted.
func (c *ChangeSet) Paths() []string {
	paths := make([]string, 0, len(c.changes))
	for p := range c.changes {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// Summary returns a one-line description such as
// "geomagio/io.py modified" or "+1 created, ~2 modified".
func (c *ChangeSet) Summary() string {
	if len(c.changes) == 0 {
		return "no changes"
	}

	if len(c.changes) == 1 {
		p := c.Paths()[0]
		return fmt.Sprintf("%s %s", p, c.changes[p])
	}

	var created, modified, removed int

	for _, k := range c.changes {
		switch k {
		case ChangeCreated:
			created++
		case ChangeModified:
			modified++
		case ChangeRemoved:
			removed++
		}
	}

	parts := make([]string, 0, 3)

	if created > 0 {
		parts = append(parts, fmt.Sprintf("+%d created", created))
	}

	if modified > 0 {
		parts = append(parts, fmt.Sprintf("~%d modified", modified))
	}

	if removed > 0 {
		parts = append(parts, fmt.Sprintf("-%d removed", removed))
	}

	return strings.Join(parts, ", ")
}

func kindOf(op fsnotify.Op) ChangeKind {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return ChangeRemoved
	case op.Has(fsnotify.Create):
		return ChangeCreated
	default:
		return ChangeModified
	}
}
