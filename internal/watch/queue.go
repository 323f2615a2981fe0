package watch

import (
	"context"
	"sync"

	"github.com/hupe1980/watchrun/internal/task"
)

// request asks the executor to run a group's tasks for a set of changes.
type request struct {
	group   *task.Group
	changes *ChangeSet
}

// queue holds run requests in arrival order. A group has at most one queued
// request; further changes for it are merged into that request until the
// executor picks it up.
type queue struct {
	mu      sync.Mutex
	pending map[string]*request
	order   []string
	notify  chan struct{}
	closed  bool
}

func newQueue() *queue {
	return &queue{
		pending: map[string]*request{},
		notify:  make(chan struct{}, 1),
	}
}

func (q *queue) push(g *task.Group, changes *ChangeSet) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return
	}

	if r, ok := q.pending[g.Name]; ok {
		r.changes.Merge(changes)
	} else {
		merged := NewChangeSet()
		merged.Merge(changes)

		q.pending[g.Name] = &request{group: g, changes: merged}
		q.order = append(q.order, g.Name)
	}

	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop blocks until a request is available, the queue is closed, or ctx is
// done.
func (q *queue) pop(ctx context.Context) (*request, bool) {
	for {
		q.mu.Lock()

		if q.closed {
			q.mu.Unlock()
			return nil, false
		}

		if len(q.order) > 0 {
			name := q.order[0]
			q.order = q.order[1:]
			r := q.pending[name]
			delete(q.pending, name)
			q.mu.Unlock()

			return r, true
		}

		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-q.notify:
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.order)
}
