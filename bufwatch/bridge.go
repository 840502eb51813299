// Package bufwatch finds image buffers in a program under a debugger and
// copies them out for visualization.
//
// A debugger binding implements debuggee.Runtime and hands it, together with
// a debuggee.Inspector, to New. The resulting Bridge answers the questions a
// visualization window asks: which buffers are visible from the current
// frame, and what are the bytes and layout of the buffer with a given name.
//
// Everything that touches debuggee memory runs on the debugger thread. Code
// running elsewhere uses QueueRequest, RequestFetch or RequestEnumerate, and
// the debugger thread runs the queued work from Run or Drain.
package bufwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/dispatch"
	"github.com/DataExMachina-dev/bufwatch/internal/memread"
	"github.com/DataExMachina-dev/bufwatch/internal/scopewalk"
	"github.com/DataExMachina-dev/bufwatch/internal/validate"
)

// ErrClosed is returned for requests made after Close.
var ErrClosed = dispatch.ErrClosed

// Bridge connects a debugger binding to buffer consumers.
type Bridge struct {
	rt        debuggee.Runtime
	inspector debuggee.Inspector
	cfg       config
	sessionID uuid.UUID
	validator *validate.Validator
	walker    *scopewalk.Walker
	d         *dispatch.Dispatcher
	fetches   singleflight.Group
	now       func() time.Time

	// Only touched on the debugger thread.
	stopHandlers []func(StopEvent)
	plot         plotCommand

	stops stopFeed

	viewer struct {
		sync.Mutex
		server *grpc.Server
		wg     *sync.WaitGroup
	}
}

var _ debuggee.Caster = (*Bridge)(nil)

// New constructs a Bridge over rt. The inspector decides which values are
// buffers.
func New(rt debuggee.Runtime, inspector debuggee.Inspector, opts ...Option) (*Bridge, error) {
	cfg, err := makeDefaultConfig()
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return nil, err
		}
	}
	sessionID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}
	b := &Bridge{
		rt:        rt,
		inspector: inspector,
		cfg:       cfg,
		sessionID: sessionID,
		validator: validate.New(rt.FreeSystemMemory, cfg.maxBufferBytes),
		d:         dispatch.New(cfg.errorLogger),
		now:       time.Now,
	}
	b.stops.init()
	b.walker = scopewalk.New(rt, inspector, b.capture, scopewalk.Config{
		SelfName: cfg.selfName,
		OnSkip:   cfg.skipLogger,
	})
	return b, nil
}

// SessionID identifies this Bridge. It changes every time a Bridge is
// created, so remote viewers can tell a restarted debugger session apart.
func (b *Bridge) SessionID() uuid.UUID {
	return b.sessionID
}

// Fetch resolves name in the selected frame and copies out the buffer it
// holds. Failures are reported as a *debuggee.FetchError wrapping one of the
// debuggee error kinds. It must be called on the debugger thread.
func (b *Bridge) Fetch(name string) (*debuggee.Descriptor, error) {
	v, err := b.rt.ResolveSymbol(name)
	if err != nil {
		if !errors.Is(err, debuggee.ErrInvalidSymbol) {
			err = fmt.Errorf("%w: %v", debuggee.ErrInvalidSymbol, err)
		}
		return nil, &debuggee.FetchError{Name: name, Err: err}
	}
	d, err := b.capture(name, v)
	if err != nil {
		return nil, &debuggee.FetchError{Name: name, Err: err}
	}
	return d, nil
}

// capture extracts, validates and copies the buffer held by v.
func (b *Bridge) capture(name string, v debuggee.Value) (_ *debuggee.Descriptor, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: inspecting %s panicked: %v", debuggee.ErrNotABuffer, name, p)
		}
	}()
	f, ok := b.inspector.ExtractBufferFields(b, v)
	if !ok {
		return nil, debuggee.ErrNotABuffer
	}
	size, err := b.validator.Validate(f)
	if err != nil {
		return nil, err
	}
	data, err := memread.Copy(b.rt, f.Pointer, size)
	if err != nil {
		return nil, err
	}
	return debuggee.NewDescriptor(name, f, data, b.now()), nil
}

// EnumerateAvailable returns every buffer visible from the selected frame.
// Candidates that cannot be captured are left out. It must be called on the
// debugger thread.
func (b *Bridge) EnumerateAvailable() *debuggee.SymbolTable {
	scope, err := b.rt.CurrentScope()
	if err != nil {
		b.cfg.errorLogger(fmt.Errorf("failed to get current scope: %w", err))
		return debuggee.NewSymbolTable()
	}
	return b.walker.EnumerateAvailable(scope)
}

// Cast reinterprets v as a pointer to the type named typeName. It must be
// called on the debugger thread.
func (b *Bridge) Cast(typeName string, v debuggee.Value) (debuggee.Value, error) {
	t, err := b.rt.LookupType(typeName)
	if err != nil {
		if !errors.Is(err, debuggee.ErrUnknownType) {
			err = fmt.Errorf("%w: %v", debuggee.ErrUnknownType, err)
		}
		return nil, err
	}
	return v.Cast(t.Pointer())
}

// QueueRequest schedules task to run on the debugger thread. It is the only
// way to reach the debuggee from another goroutine. Requests still queued
// when the Bridge closes are dropped.
func (b *Bridge) QueueRequest(task func()) error {
	return b.d.Post(task)
}

// Run makes the calling goroutine the debugger thread and runs queued
// requests until ctx is done or the Bridge is closed.
func (b *Bridge) Run(ctx context.Context) error {
	return b.d.Run(ctx)
}

// Drain runs the requests queued so far and returns how many ran. Bindings
// whose debugger has its own event loop call it from there instead of Run.
func (b *Bridge) Drain() int {
	return b.d.Drain()
}

// Close stops the viewer server, if any, and drops pending requests.
func (b *Bridge) Close() {
	b.stopViewer()
	b.stops.close()
	b.d.Close()
}
