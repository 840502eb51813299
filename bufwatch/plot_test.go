package bufwatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DataExMachina-dev/bufwatch/internal/fakedebuggee"
)

func newTestBridge(t *testing.T, opts ...Option) *Bridge {
	t.Helper()
	b, err := New(fakedebuggee.NewProcess(), fakedebuggee.Inspector{}, opts...)
	require.NoError(t, err)
	t.Cleanup(b.Close)
	return b
}

func TestSplitArgv(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   \t", nil},
		{"img", []string{"img"}},
		{"  img  extra ", []string{"img", "extra"}},
		{`"my image" x`, []string{"my image", "x"}},
		{`'a "b"' c`, []string{`a "b"`, "c"}},
		{`a\ b`, []string{"a b"}},
		{`"a\"b"`, []string{`a"b`}},
		{`''`, []string{""}},
		{`"unterminated rest`, []string{"unterminated rest"}},
		{`this->frames[0]`, []string{"this->frames[0]"}},
	} {
		require.Equal(t, tc.want, splitArgv(tc.in), "input %q", tc.in)
	}
}

func TestPlotBeforeHandlerIsRegistered(t *testing.T) {
	b := newTestBridge(t)
	require.NoError(t, b.Plot("img"))
	require.Equal(t, PlotIdle, b.PlotState())
}

func TestPlot(t *testing.T) {
	b := newTestBridge(t)
	var got []string
	var states []PlotState
	require.NoError(t, b.RegisterPlotHandler(func(name string) {
		got = append(got, name)
		states = append(states, b.PlotState())
	}))

	// The registration is queued.
	require.NoError(t, b.Plot("img"))
	require.Empty(t, got)
	require.Equal(t, 1, b.Drain())

	require.NoError(t, b.Plot(`"my img" ignored`))
	require.Equal(t, []string{"my img"}, got)
	require.Equal(t, []PlotState{PlotDispatched}, states)
	require.Equal(t, PlotIdle, b.PlotState())

	require.ErrorIs(t, b.Plot("  "), ErrMissingPlotArgument)
	require.Equal(t, PlotIdle, b.PlotState())
	require.Len(t, got, 1)
}

func TestPlotHandlerIsReplaced(t *testing.T) {
	b := newTestBridge(t)
	var first, second []string
	require.NoError(t, b.RegisterPlotHandler(func(name string) { first = append(first, name) }))
	require.NoError(t, b.RegisterPlotHandler(func(name string) { second = append(second, name) }))
	b.Drain()

	require.NoError(t, b.Plot("img"))
	require.Empty(t, first)
	require.Equal(t, []string{"img"}, second)
}

func TestPlotHandlerPanics(t *testing.T) {
	var logged []error
	b := newTestBridge(t, WithErrorLogger(func(err error) { logged = append(logged, err) }))
	require.NoError(t, b.RegisterPlotHandler(func(string) { panic("boom") }))
	b.Drain()

	require.NoError(t, b.Plot("img"))
	require.Equal(t, PlotIdle, b.PlotState())
	require.Len(t, logged, 1)
	require.ErrorContains(t, logged[0], "plot handler panicked: boom")
}
