package bufwatch

import (
	"sync"
	"time"
)

// StopEvent describes the debuggee pausing: a breakpoint hit, a step
// finished, a signal delivered.
type StopEvent struct {
	// Reason is the debugger's description of the stop, if it gives one.
	Reason string
	At     time.Time
}

// RegisterStopHandler adds a function called every time the debuggee stops.
// Handlers run on the debugger thread in registration order, so requests
// they make run inline. The registration is queued like any other request.
func (b *Bridge) RegisterStopHandler(h func(StopEvent)) error {
	return b.QueueRequest(func() {
		b.stopHandlers = append(b.stopHandlers, h)
	})
}

// HandleStop is called by the debugger binding when the debuggee stops. It
// runs the stop handlers and notifies stop subscribers. A zero At is set to
// the current time. It must be called on the debugger thread.
func (b *Bridge) HandleStop(ev StopEvent) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	for _, h := range b.stopHandlers {
		h := h
		b.runHandler("stop", func() { h(ev) })
	}
	b.stops.publish(ev)
}

// SubscribeStops returns a channel receiving every subsequent stop and a
// function that ends the subscription. Stops are dropped for a subscriber
// that falls more than a few events behind. The channel is closed when the
// subscription ends or the Bridge closes.
func (b *Bridge) SubscribeStops() (<-chan StopEvent, func()) {
	return b.stops.subscribe()
}

const stopFeedBuffer = 16

// stopFeed fans stop events out to subscribers on other goroutines.
type stopFeed struct {
	mu struct {
		sync.Mutex
		subs   map[chan StopEvent]struct{}
		closed bool
	}
}

func (f *stopFeed) init() {
	f.mu.subs = make(map[chan StopEvent]struct{})
}

func (f *stopFeed) subscribe() (<-chan StopEvent, func()) {
	ch := make(chan StopEvent, stopFeedBuffer)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mu.closed {
		close(ch)
		return ch, func() {}
	}
	f.mu.subs[ch] = struct{}{}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if _, ok := f.mu.subs[ch]; ok {
				delete(f.mu.subs, ch)
				close(ch)
			}
		})
	}
}

func (f *stopFeed) publish(ev StopEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.mu.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *stopFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mu.closed {
		return
	}
	f.mu.closed = true
	for ch := range f.mu.subs {
		close(ch)
	}
	f.mu.subs = nil
}
