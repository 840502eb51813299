package bufwatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStopHandlersRunInOrder(t *testing.T) {
	b := newTestBridge(t)
	at := time.Unix(1700000000, 0)
	b.now = func() time.Time { return at }

	var calls []string
	require.NoError(t, b.RegisterStopHandler(func(ev StopEvent) {
		calls = append(calls, "first:"+ev.Reason)
		require.Equal(t, at, ev.At)
	}))
	require.NoError(t, b.RegisterStopHandler(func(ev StopEvent) {
		panic("second handler")
	}))
	require.NoError(t, b.RegisterStopHandler(func(ev StopEvent) {
		calls = append(calls, "third:"+ev.Reason)
	}))

	b.HandleStop(StopEvent{Reason: "ignored"})
	require.Empty(t, calls, "registrations have not run yet")

	require.Equal(t, 3, b.Drain())
	b.HandleStop(StopEvent{Reason: "breakpoint"})
	require.Equal(t, []string{"first:breakpoint", "third:breakpoint"}, calls)
}

func TestSubscribeStops(t *testing.T) {
	b := newTestBridge(t)
	ch, cancel := b.SubscribeStops()
	other, cancelOther := b.SubscribeStops()

	at := time.Unix(10, 0)
	b.HandleStop(StopEvent{Reason: "step", At: at})
	require.Equal(t, StopEvent{Reason: "step", At: at}, <-ch)
	require.Equal(t, StopEvent{Reason: "step", At: at}, <-other)

	cancel()
	cancel()
	_, ok := <-ch
	require.False(t, ok)

	// A slow subscriber loses events instead of blocking the debugger thread.
	for i := 0; i < stopFeedBuffer*2; i++ {
		b.HandleStop(StopEvent{At: at})
	}
	require.Len(t, other, stopFeedBuffer)

	b.Close()
	for range other {
	}
	cancelOther()

	late, _ := b.SubscribeStops()
	_, ok = <-late
	require.False(t, ok)
}
