package bufwatch

import (
	"fmt"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"

	"github.com/DataExMachina-dev/bufwatch/internal/server"
	"github.com/DataExMachina-dev/bufwatch/internal/serverdial"
)

// viewerDialInterval is the minimum time between two dials of a viewer by
// DialViewer.
const viewerDialInterval = 2 * time.Second

// ListenViewer listens on the configured viewer address and serves remote
// viewers from it. See ServeViewer.
func (b *Bridge) ListenViewer() (net.Addr, error) {
	lis, err := net.Listen("tcp", b.cfg.viewerAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", b.cfg.viewerAddress, err)
	}
	if err := b.ServeViewer(lis); err != nil {
		_ = lis.Close()
		return nil, err
	}
	return lis.Addr(), nil
}

// DialViewer serves a viewer that listens at url instead of waiting for it
// to connect. url has an http (plain TCP) or https (TLS) scheme and no path.
// The viewer is dialed again whenever the connection drops, until
// StopViewer or Close is called. Dial failures go to the error logger.
func (b *Bridge) DialViewer(url string) error {
	lis, err := serverdial.NewListener(url, viewerDialInterval, b.cfg.errorLogger)
	if err != nil {
		return fmt.Errorf("failed to dial viewer: %w", err)
	}
	return b.ServeViewer(lis)
}

// ServeViewer starts serving the viewer service on lis. A goroutine is
// started to handle incoming RPCs; it stops when StopViewer or Close is
// called. A viewer that was already being served is stopped first.
func (b *Bridge) ServeViewer(lis net.Listener) error {
	b.stopViewer()

	s := grpc.NewServer()
	server.Register(s, viewerBackend{b})

	wg := &sync.WaitGroup{}
	wg.Add(1)
	b.viewer.Lock()
	b.viewer.server = s
	b.viewer.wg = wg
	b.viewer.Unlock()

	go func() {
		defer wg.Done() // unblock StopViewer()
		if err := s.Serve(lis); err != nil {
			b.cfg.errorLogger(fmt.Errorf("failed to serve viewer: %w", err))
		}
	}()
	return nil
}

// StopViewer stops the viewer server, closing open streams. It's a no-op if
// no viewer is being served.
func (b *Bridge) StopViewer() {
	b.stopViewer()
}

func (b *Bridge) stopViewer() {
	b.viewer.Lock()
	s, wg := b.viewer.server, b.viewer.wg
	b.viewer.server, b.viewer.wg = nil, nil
	b.viewer.Unlock()
	if s == nil {
		return
	}
	s.Stop()
	// Synchronize with the goroutine handling RPCs.
	wg.Wait()
}

// viewerBackend adapts a Bridge to server.Backend.
type viewerBackend struct {
	*Bridge
}

var _ server.Backend = viewerBackend{}

func (v viewerBackend) SubscribeStops() (<-chan time.Time, func()) {
	events, cancel := v.Bridge.SubscribeStops()
	out := make(chan time.Time, stopFeedBuffer)
	go func() {
		defer close(out)
		for ev := range events {
			select {
			case out <- ev.At:
			default:
			}
		}
	}()
	return out, cancel
}
