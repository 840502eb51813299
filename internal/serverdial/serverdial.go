// Package serverdial serves from connections this side dials. A Listener
// dials a peer and hands the connection to Accept, so a gRPC server can serve
// a viewer that cannot reach the debugger (for example because the debugger
// runs in a container). Only one dialed connection is open at a time; when it
// closes, the peer is dialed again.
package serverdial

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// header is written on every dialed connection before any other traffic.
var header = []byte("bufwatch\x01")

// ReadHeader consumes the header written by a Listener on conn. The
// accepting side calls it before speaking gRPC.
func ReadHeader(conn net.Conn) error {
	got := make([]byte, len(header))
	if _, err := io.ReadFull(conn, got); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	if !bytes.Equal(got, header) {
		return fmt.Errorf("unexpected header %q", got)
	}
	return nil
}

func writeHeader(conn net.Conn) error {
	toWrite := header
	for len(toWrite) > 0 {
		n, err := conn.Write(toWrite)
		if err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		toWrite = toWrite[n:]
	}
	return nil
}

// Status is the state of a Listener's outbound connection.
type Status int32

const (
	Connecting Status = iota
	Connected
	Closed
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("Status(%d)", int32(s))
	}
}

// Listener implements net.Listener over connections it dials.
type Listener struct {
	addr     dialAddr
	dialChan <-chan net.Conn
	status   atomic.Int32

	dialingCtx    context.Context
	cancelDialing context.CancelFunc
	done          <-chan struct{}
}

var _ net.Listener = (*Listener)(nil)

// NewListener starts dialing addr, a URL with an http (plain TCP) or https
// (TLS) scheme and no path or query. Failed dials are reported to
// onDialError and retried every interval.
func NewListener(
	addr string, interval time.Duration, onDialError func(error),
) (*Listener, error) {
	d, dAddr, err := newDialer(addr)
	if err != nil {
		return nil, err
	}
	if onDialError == nil {
		onDialError = func(error) {}
	}
	dialChan := make(chan net.Conn)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		addr:          dAddr,
		dialChan:      dialChan,
		dialingCtx:    ctx,
		cancelDialing: cancel,
		done:          done,
	}
	go l.run(ctx, d, interval, dialChan, onDialError, done)
	return l, nil
}

func (l *Listener) run(
	ctx context.Context,
	d dialer,
	interval time.Duration,
	dialChan chan<- net.Conn,
	onDialError func(error),
	done chan<- struct{},
) {
	defer close(done)
	defer l.status.Store(int32(Closed))
	var lastDial time.Time
	for {
		if since := time.Since(lastDial); since < interval {
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval - since):
			}
		}
		lastDial = time.Now()
		l.status.Store(int32(Connecting))
		conn, err := d.DialContext(ctx, "tcp", l.addr.addr)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			onDialError(fmt.Errorf("failed to dial %s: %w", l.addr.addr, err))
			continue
		}
		if err := writeHeader(conn); err != nil {
			_ = conn.Close()
			onDialError(err)
			continue
		}
		onClose := make(chan struct{})
		wc := &wrappedConn{Conn: conn, onClose: onClose}
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return
		case dialChan <- wc:
		}
		l.status.Store(int32(Connected))
		select {
		case <-ctx.Done():
			return
		case <-onClose:
		}
	}
}

// Status reports whether a dialed connection is currently open.
func (l *Listener) Status() Status {
	return Status(l.status.Load())
}

// Accept implements net.Listener. It returns once a dial succeeds.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case <-l.dialingCtx.Done():
		return nil, net.ErrClosed
	case conn := <-l.dialChan:
		return conn, nil
	}
}

// Addr implements net.Listener. It is the dialed address.
func (l *Listener) Addr() net.Addr {
	return &l.addr
}

// Close implements net.Listener. It stops dialing; a connection already
// returned by Accept stays open until its owner closes it.
func (l *Listener) Close() error {
	l.cancelDialing()
	<-l.done
	return nil
}

// wrappedConn signals the dialing loop when it is closed.
type wrappedConn struct {
	net.Conn
	closeOnce sync.Once
	onClose   chan<- struct{}
	closeErr  error
}

func (w *wrappedConn) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.Conn.Close()
		close(w.onClose)
	})
	return w.closeErr
}

type dialAddr struct {
	scheme string
	addr   string
}

// Network implements net.Addr.
func (a *dialAddr) Network() string {
	return "serverdial"
}

// String implements net.Addr.
func (a *dialAddr) String() string {
	return a.scheme + "://" + a.addr
}

type dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

func newDialer(addr string) (dialer, dialAddr, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, dialAddr{}, fmt.Errorf("failed to parse url: %w", err)
	}
	if u.Path != "" {
		return nil, dialAddr{}, fmt.Errorf("unsupported path: %s", u.Path)
	}
	if u.RawQuery != "" {
		return nil, dialAddr{}, fmt.Errorf("unsupported query: %s", u.RawQuery)
	}
	var d dialer
	switch u.Scheme {
	case "http":
		d = &net.Dialer{}
	case "https":
		d = &tls.Dialer{}
	default:
		return nil, dialAddr{}, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return d, dialAddr{scheme: u.Scheme, addr: u.Host}, nil
}
