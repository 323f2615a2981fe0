package task

import (
	"fmt"

	"github.com/hupe1980/watchrun/internal/config"
)

// Kind identifies how a task is executed.
type Kind string

// Kind values enumerate the supported task kinds.
const (
	// KindExec runs an external command.
	KindExec Kind = "exec"
	// KindSequence runs other tasks in order.
	KindSequence Kind = "sequence"
	// KindClean removes files matching globs.
	KindClean Kind = "clean"
	// KindFunc runs an in-process function registered with WithAction.
	KindFunc Kind = "func"
	// KindWatch starts the watch loop. Only the builtin watch task has it.
	KindWatch Kind = "watch"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{KindExec, KindSequence, KindClean, KindFunc, KindWatch}

func (k Kind) String() string { return string(k) }

// IsLeaf reports whether tasks of this kind execute an action themselves
// rather than delegating to other tasks.
func (k Kind) IsLeaf() bool { return k != KindSequence }

// ParseKind converts a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}

	return "", fmt.Errorf("unknown task kind %q (available: exec, sequence, clean, func, watch)", s)
}

func kindOf(def config.TaskDef) Kind {
	switch {
	case def.Exec != nil:
		return KindExec
	case def.Clean != nil:
		return KindClean
	default:
		return KindSequence
	}
}
