package machine

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs at most one task after the current key event has been
// fully handled. Scheduling replaces any pending task.
type Scheduler interface {
	Schedule(task func(ctx context.Context))
	Cancel()
}

// Task is a fired deferred task, delivered to the owning loop.
type Task struct {
	d   *Deferred
	gen uint64
	fn  func(ctx context.Context)
}

// Run executes the task if it has not been cancelled or superseded since
// it was scheduled. It must be called from the loop that owns the machine.
func (t Task) Run(ctx context.Context) {
	t.d.mu.Lock()
	live := t.gen == t.d.gen && t.d.pending
	if live {
		t.d.pending = false
	}
	t.d.mu.Unlock()
	if live {
		t.fn(ctx)
	}
}

// Deferred is a single-slot Scheduler backed by time.AfterFunc(0). Fired
// tasks are handed to the owning loop through C so the machine is only
// ever touched from one goroutine.
type Deferred struct {
	mu      sync.Mutex
	gen     uint64
	pending bool
	timer   *time.Timer
	ch      chan Task
	done    chan struct{}
	once    sync.Once
}

// NewDeferred creates a Deferred.
func NewDeferred() *Deferred {
	return &Deferred{ch: make(chan Task, 1), done: make(chan struct{})}
}

// C delivers fired tasks.
func (d *Deferred) C() <-chan Task { return d.ch }

// Schedule replaces the pending task with task.
func (d *Deferred) Schedule(task func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
	d.pending = true
	t := Task{d: d, gen: d.gen, fn: task}
	d.timer = time.AfterFunc(0, func() {
		select {
		case d.ch <- t:
		case <-d.done:
		}
	})
}

// Cancel drops the pending task, if any.
func (d *Deferred) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
	d.pending = false
}

// Close cancels the pending task and unblocks any timer still trying to
// deliver. Safe to call more than once.
func (d *Deferred) Close() {
	d.Cancel()
	d.once.Do(func() { close(d.done) })
}

func (d *Deferred) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
