// Package server implements the Viewer service on top of a Bridge.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/framing"
	"github.com/DataExMachina-dev/bufwatch/internal/viewerrpc"
)

// Backend is what the server needs from a Bridge. All methods are called
// from RPC goroutines.
type Backend interface {
	SessionID() uuid.UUID
	RequestEnumerate(ctx context.Context) (*debuggee.SymbolTable, error)
	RequestFetch(ctx context.Context, name string) (*debuggee.Descriptor, error)
	// SubscribeStops returns a channel of stop times, closed when the
	// backend shuts down, and a function ending the subscription.
	SubscribeStops() (<-chan time.Time, func())
}

// Server implements the viewerrpc.ViewerServer interface.
type Server struct {
	backend Backend

	viewerrpc.UnimplementedViewerServer
}

var _ viewerrpc.ViewerServer = (*Server)(nil)

// NewServer constructs a new Server object.
func NewServer(backend Backend) *Server {
	return &Server{backend: backend}
}

const chunkSize = 128 << 10

// Enumerate implements viewerrpc.ViewerServer.
func (s *Server) Enumerate(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	table, err := s.backend.RequestEnumerate(ctx)
	if err != nil {
		return nil, viewerrpc.StatusError(fmt.Errorf("failed to enumerate buffers: %w", err))
	}
	out, err := framing.EncodeTable(s.backend.SessionID().String(), table)
	if err != nil {
		return nil, viewerrpc.StatusError(err)
	}
	return out, nil
}

// Fetch implements viewerrpc.ViewerServer.
func (s *Server) Fetch(req *wrapperspb.StringValue, stream viewerrpc.Viewer_FetchServer) error {
	ctx := stream.Context()
	d, err := s.backend.RequestFetch(ctx, req.GetValue())
	if err != nil {
		stream.SetTrailer(viewerrpc.Trailer(err))
		return viewerrpc.StatusError(err)
	}
	h := framing.HeaderOf(s.backend.SessionID().String(), d)
	if err := stream.SendHeader(h.Encode()); err != nil {
		return fmt.Errorf("failed to send header: %w", err)
	}
	data := d.Bytes()
	for len(data) > 0 {
		n := len(data)
		if n > chunkSize {
			n = chunkSize
		}
		if err := stream.Send(wrapperspb.Bytes(data[:n])); err != nil {
			return fmt.Errorf("failed to send buffer: %w", err)
		}
		data = data[n:]
	}
	return nil
}

// WatchStops implements viewerrpc.ViewerServer.
func (s *Server) WatchStops(_ *emptypb.Empty, stream viewerrpc.Viewer_WatchStopsServer) error {
	ctx := stream.Context()
	stops, cancel := s.backend.SubscribeStops()
	defer cancel()
	// Flush the header so the client knows it is subscribed.
	if err := stream.SendHeader(nil); err != nil {
		return fmt.Errorf("failed to send header: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case at, ok := <-stops:
			if !ok {
				return nil
			}
			if err := stream.Send(timestamppb.New(at)); err != nil {
				return fmt.Errorf("failed to send stop: %w", err)
			}
		}
	}
}

// Register registers a Server for backend with s.
func Register(s grpc.ServiceRegistrar, backend Backend) *Server {
	srv := NewServer(backend)
	viewerrpc.RegisterViewerServer(s, srv)
	return srv
}
