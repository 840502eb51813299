package serverdial

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenerRedials(t *testing.T) {
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer peer.Close()

	l, err := NewListener("http://"+peer.Addr().String(), 10*time.Millisecond, nil)
	require.NoError(t, err)
	require.Equal(t, "serverdial", l.Addr().Network())
	require.Equal(t, "http://"+peer.Addr().String(), l.Addr().String())

	for i := 0; i < 2; i++ {
		accepted := make(chan net.Conn, 1)
		go func() {
			c, err := l.Accept()
			if err == nil {
				accepted <- c
			}
		}()
		remote, err := peer.Accept()
		require.NoError(t, err)
		require.NoError(t, ReadHeader(remote))

		local := <-accepted
		require.Eventually(t, func() bool { return l.Status() == Connected }, 5*time.Second, time.Millisecond)
		_, err = local.Write([]byte("ping"))
		require.NoError(t, err)
		buf := make([]byte, 4)
		_, err = io.ReadFull(remote, buf)
		require.NoError(t, err)
		require.Equal(t, "ping", string(buf))

		// Closing the served side makes the listener dial again.
		require.NoError(t, local.Close())
		require.NoError(t, local.Close())
		_ = remote.Close()
	}

	require.NoError(t, l.Close())
	require.Equal(t, Closed, l.Status())
	_, err = l.Accept()
	require.ErrorIs(t, err, net.ErrClosed)
}

func TestListenerReportsDialErrors(t *testing.T) {
	// Grab a free port and release it so dials are refused.
	peer, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := peer.Addr().String()
	require.NoError(t, peer.Close())

	errs := make(chan error, 16)
	l, err := NewListener("http://"+addr, time.Millisecond, func(err error) {
		select {
		case errs <- err:
		default:
		}
	})
	require.NoError(t, err)
	require.ErrorContains(t, <-errs, "failed to dial")
	require.NoError(t, l.Close())
}

func TestReadHeaderRejectsOtherTraffic(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	go func() {
		_, _ = b.Write([]byte("GET / HTTP/1.1\r\n"))
		_ = b.Close()
	}()
	require.ErrorContains(t, ReadHeader(a), "unexpected header")
}

func TestNewListenerErrors(t *testing.T) {
	for _, addr := range []string{
		"ftp://127.0.0.1:1",
		"http://127.0.0.1:1/path",
		"http://127.0.0.1:1?q=1",
		"://",
	} {
		_, err := NewListener(addr, time.Second, nil)
		require.Error(t, err, addr)
	}
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "connecting", Connecting.String())
	require.Equal(t, "connected", Connected.String())
	require.Equal(t, "closed", Closed.String())
	require.Equal(t, "Status(7)", Status(7).String())
}
