// Package bufwatchclient talks to the viewer service of a running Bridge.
package bufwatchclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/framing"
	"github.com/DataExMachina-dev/bufwatch/internal/serverdial"
	"github.com/DataExMachina-dev/bufwatch/internal/viewerrpc"
)

// BufferInfo describes one enumerated buffer, without its bytes.
type BufferInfo = framing.BufferInfo

// Table is the result of Enumerate.
type Table struct {
	// SessionID identifies the Bridge that answered.
	SessionID string
	// Buffers are in discovery order.
	Buffers []BufferInfo
}

// Client is a connection to a viewer service.
type Client struct {
	conn   *grpc.ClientConn
	client viewerrpc.ViewerClient
}

type clientOpts struct {
	target      string
	dialOptions []grpc.DialOption
}

// Option configures Dial.
type Option interface {
	apply(*clientOpts) error
}

// WithTarget sets the address of the viewer service.
type WithTarget string

var _ Option = WithTarget("")

func (t WithTarget) apply(opts *clientOpts) error {
	opts.target = string(t)
	return nil
}

// WithTargetFromEnv reads the address of the viewer service from
// BUFWATCH_VIEWER_ADDR.
type WithTargetFromEnv struct{}

var _ Option = WithTargetFromEnv{}

func (w WithTargetFromEnv) apply(opts *clientOpts) error {
	addr, ok := os.LookupEnv("BUFWATCH_VIEWER_ADDR")
	if !ok {
		return fmt.Errorf("BUFWATCH_VIEWER_ADDR environment variable required by WithTargetFromEnv is not set")
	}
	opts.target = addr
	return nil
}

// WithDialOptions adds options passed to grpc.Dial.
type WithDialOptions []grpc.DialOption

var _ Option = WithDialOptions(nil)

func (w WithDialOptions) apply(opts *clientOpts) error {
	opts.dialOptions = append(opts.dialOptions, w...)
	return nil
}

const defaultTarget = "127.0.0.1:9713"

// Dial connects to a viewer service. The connection is established lazily.
func Dial(option ...Option) (*Client, error) {
	opts := clientOpts{target: defaultTarget}
	for _, o := range option {
		if err := o.apply(&opts); err != nil {
			return nil, err
		}
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts.dialOptions...)
	conn, err := grpc.Dial(opts.target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", opts.target, err)
	}
	return &Client{conn: conn, client: viewerrpc.NewViewerClient(conn)}, nil
}

// Accept waits on lis for a Bridge calling in with DialViewer and returns a
// Client over that connection. Options other than WithDialOptions are
// ignored. The Client does not reconnect: once the connection drops, call
// Accept again.
func Accept(ctx context.Context, lis net.Listener, option ...Option) (*Client, error) {
	var opts clientOpts
	for _, o := range option {
		if err := o.apply(&opts); err != nil {
			return nil, err
		}
	}

	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := lis.Accept()
		ch <- accepted{conn, err}
	}()
	var conn net.Conn
	select {
	case <-ctx.Done():
		go func() {
			if a := <-ch; a.conn != nil {
				_ = a.conn.Close()
			}
		}()
		return nil, ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return nil, fmt.Errorf("failed to accept debugger connection: %w", a.err)
		}
		conn = a.conn
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	if err := serverdial.ReadHeader(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	var once sync.Once
	dialer := func(context.Context, string) (net.Conn, error) {
		var c net.Conn
		once.Do(func() { c = conn })
		if c == nil {
			return nil, fmt.Errorf("debugger connection from %s is gone", conn.RemoteAddr())
		}
		return c, nil
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(dialer),
	}, opts.dialOptions...)
	cc, err := grpc.Dial("passthrough:///"+conn.RemoteAddr().String(), dialOpts...)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set up connection: %w", err)
	}
	return &Client{conn: cc, client: viewerrpc.NewViewerClient(cc)}, nil
}

func (c *Client) Close() {
	_ /* err */ = c.conn.Close()
}

// Enumerate lists the buffers visible from the selected frame of the
// debuggee.
func (c *Client) Enumerate(ctx context.Context) (Table, error) {
	res, err := c.client.Enumerate(ctx, &emptypb.Empty{})
	if err != nil {
		return Table{}, fmt.Errorf("failed to enumerate buffers: %w", err)
	}
	session, infos, err := framing.DecodeTable(res)
	if err != nil {
		return Table{}, err
	}
	return Table{SessionID: session, Buffers: infos}, nil
}

// Fetch copies the buffer named name out of the debuggee. Failures reported
// by the Bridge are returned as a *debuggee.FetchError wrapping the same
// debuggee error kind.
func (c *Client) Fetch(ctx context.Context, name string) (*debuggee.Descriptor, error) {
	stream, err := c.client.Fetch(ctx, wrapperspb.String(name))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	var data []byte
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			err = viewerrpc.FromStatus(err, stream.Trailer())
			if debuggee.Kind(err) != "" {
				return nil, &debuggee.FetchError{Name: name, Err: err}
			}
			return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
		}
		data = append(data, chunk.GetValue()...)
	}
	md, err := stream.Header()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	h, err := framing.Decode(md)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
	}
	if uint64(len(data)) != h.ByteSize {
		return nil, fmt.Errorf("failed to fetch %s: received %d of %d bytes", name, len(data), h.ByteSize)
	}
	d := debuggee.NewDescriptor(h.Name, debuggee.BufferFields{
		Width:       uint64(h.Width),
		Height:      uint64(h.Height),
		Channels:    uint64(h.Channels),
		ElementType: h.ElementType,
		RowStride:   uint64(h.RowStride),
		PixelLayout: h.PixelLayout,
	}, data, h.CapturedAt)
	if d.Digest() != h.Digest {
		return nil, fmt.Errorf("failed to fetch %s: digest mismatch", name)
	}
	return d, nil
}

// WatchStops calls f with the time of every debuggee stop until ctx is done
// or the Bridge goes away.
func (c *Client) WatchStops(ctx context.Context, f func(at time.Time)) error {
	stream, err := c.client.WatchStops(ctx, &emptypb.Empty{})
	if err != nil {
		return fmt.Errorf("failed to watch stops: %w", err)
	}
	for {
		ts, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to watch stops: %w", err)
		}
		f(ts.AsTime())
	}
}
