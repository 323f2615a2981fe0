package watch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debouncer coalesces rapid events into a single callback invocation.
// Every path seen since the last invocation is handed to the callback once
// no new event arrived for the configured interval.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func(*ChangeSet)
	pending  *ChangeSet
	// gen identifies the current quiet period. A timer from an earlier
	// period that fires late must not take the pending changes.
	gen uint64
}

// NewDebouncer creates a debouncer that waits for interval of quiet before
// firing callback with the accumulated changes.
func NewDebouncer(interval time.Duration, callback func(*ChangeSet)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: callback,
	}
}

// Trigger records an event for path and restarts the quiet period.
func (d *Debouncer) Trigger(path string, op fsnotify.Op) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending == nil {
		d.pending = NewChangeSet()
	}

	d.pending.Add(path, op)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen

	d.timer = time.AfterFunc(d.interval, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debouncer callback panicked", slog.Any("error", r))
		}
	}()

	d.mu.Lock()

	if gen != d.gen {
		d.mu.Unlock()
		return
	}

	changes := d.pending
	d.pending = nil
	d.mu.Unlock()

	if changes == nil || changes.Len() == 0 {
		return
	}

	d.callback(changes)
}

// Stop cancels any pending debounced callback and drops recorded changes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.gen++
	d.pending = nil
}
