package bufwatch

import (
	"context"
	"fmt"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// RequestFetch runs Fetch on the debugger thread and waits for the result.
// It can be called from any goroutine. Concurrent requests for the same name
// share one fetch. On the debugger thread itself (inside a queued request or
// a handler) it calls Fetch inline.
func (b *Bridge) RequestFetch(ctx context.Context, name string) (*debuggee.Descriptor, error) {
	if b.d.OnThread() {
		// Joining a shared fetch here would wait for this thread.
		return b.Fetch(name)
	}
	ch := b.fetches.DoChan("fetch\x00"+name, func() (interface{}, error) {
		return onDebuggerThread(context.Background(), b, func() (*debuggee.Descriptor, error) {
			return b.Fetch(name)
		})
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*debuggee.Descriptor), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RequestEnumerate runs EnumerateAvailable on the debugger thread and waits
// for the result. Like EnumerateAvailable it reads the bytes of every buffer
// it lists. It can be called from any goroutine; on the debugger thread it
// enumerates inline.
func (b *Bridge) RequestEnumerate(ctx context.Context) (*debuggee.SymbolTable, error) {
	if b.d.OnThread() {
		return b.EnumerateAvailable(), nil
	}
	ch := b.fetches.DoChan("enumerate", func() (interface{}, error) {
		return onDebuggerThread(context.Background(), b, func() (*debuggee.SymbolTable, error) {
			return b.EnumerateAvailable(), nil
		})
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers sharing the result each get their own table.
		t := debuggee.NewSymbolTable()
		t.Merge(res.Val.(*debuggee.SymbolTable))
		return t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// onDebuggerThread queues f and waits until it has run, ctx is done or the
// Bridge is closed. Called on the debugger thread, it runs f inline. Requests
// shared through singleflight pass a background context since several
// callers wait on them.
func onDebuggerThread[T any](ctx context.Context, b *Bridge, f func() (T, error)) (T, error) {
	if b.d.OnThread() {
		return f()
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	err := b.QueueRequest(func() {
		var r result
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("request panicked: %v", p)
			}
			ch <- r
		}()
		r.v, r.err = f()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-b.d.Done():
		var zero T
		return zero, ErrClosed
	}
}
