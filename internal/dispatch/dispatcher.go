// Package dispatch serializes work onto the debugger thread.
//
// Debuggers expose their memory, symbols and types from a single thread.
// Other goroutines (a rendering loop, an RPC handler) hand closures to a
// Dispatcher, and the debugger thread runs them in submission order, either
// by calling Run or by pumping Drain from its own event loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/DataExMachina-dev/bufwatch/internal/fifo"
)

// ErrClosed is returned by Post after Close.
var ErrClosed = errors.New("dispatcher closed")

// Dispatcher is a queue of tasks drained by one thread.
type Dispatcher struct {
	onPanic func(error)

	mu struct {
		sync.Mutex
		q      fifo.Queue[func()]
		closed bool
	}
	// draining is only touched on the debugger thread.
	draining bool
	// owner is the goroutine id of the debugger thread while it runs tasks or
	// Own, 0 otherwise.
	owner atomic.Uint64

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New returns a Dispatcher. onPanic, if not nil, is called with the recovered
// value of a task that panicked; the dispatcher keeps going.
func New(onPanic func(error)) *Dispatcher {
	if onPanic == nil {
		onPanic = func(error) {}
	}
	return &Dispatcher{
		onPanic: onPanic,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Post queues task for the debugger thread. It is safe to call from any
// goroutine. There is no delivery guarantee: tasks still queued when the
// dispatcher closes are dropped.
func (d *Dispatcher) Post(task func()) error {
	d.mu.Lock()
	if d.mu.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.mu.q.PushBack(task)
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the number of queued tasks.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mu.q.Len()
}

// Drain runs the tasks queued at the time of the call and returns how many
// ran. Tasks posted while draining wait for the next Drain. It must be called
// on the debugger thread; a call from inside a running task returns 0 so that
// tasks never nest.
func (d *Dispatcher) Drain() int {
	if d.draining {
		return 0
	}
	d.draining = true
	defer func() { d.draining = false }()

	d.mu.Lock()
	n := d.mu.q.Len()
	d.mu.Unlock()

	ran := 0
	d.Own(func() {
		for ; ran < n; ran++ {
			d.mu.Lock()
			task, ok := d.mu.q.PopFront()
			d.mu.Unlock()
			if !ok {
				break
			}
			d.runTask(task)
		}
	})
	return ran
}

// Own runs f on the calling goroutine, which must be the debugger thread,
// with OnThread reporting true for the duration. Drain does this for every
// task; bindings that call into the debugger thread's code outside of a task
// wrap the call in Own. Calls nest.
func (d *Dispatcher) Own(f func()) {
	prev := d.owner.Swap(goroutineID())
	defer d.owner.Store(prev)
	f()
}

// OnThread reports whether the caller is the debugger thread running a task
// or Own. A request that would wait for the debugger thread must run inline
// instead when OnThread is true, or it waits for itself.
func (d *Dispatcher) OnThread() bool {
	owner := d.owner.Load()
	return owner != 0 && owner == goroutineID()
}

func (d *Dispatcher) runTask(task func()) {
	defer func() {
		if p := recover(); p != nil {
			d.onPanic(fmt.Errorf("queued request panicked: %v", p))
		}
	}()
	task()
}

// Run makes the calling goroutine the debugger thread: it is locked to its
// OS thread and runs tasks until ctx is done or the dispatcher is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		d.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return nil
		case <-d.wake:
		}
	}
}

// Done is closed when the dispatcher is closed.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Close stops accepting tasks and drops the ones still queued.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.mu.closed = true
		d.mu.q.Clear()
		d.mu.Unlock()
		close(d.done)
	})
}
