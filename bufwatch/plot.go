package bufwatch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingPlotArgument is returned by Plot when the command has no
// variable name.
var ErrMissingPlotArgument = errors.New("plot: missing variable name")

// PlotState is the phase of a plot command.
type PlotState int

const (
	// PlotIdle means no plot command is being handled.
	PlotIdle PlotState = iota
	// PlotInvoked means the command was entered and is being parsed.
	PlotInvoked
	// PlotDispatched means the plot handler is running.
	PlotDispatched
)

func (s PlotState) String() string {
	switch s {
	case PlotIdle:
		return "idle"
	case PlotInvoked:
		return "invoked"
	case PlotDispatched:
		return "dispatched"
	default:
		return fmt.Sprintf("PlotState(%d)", int(s))
	}
}

type plotCommand struct {
	state   PlotState
	handler func(name string)
}

// RegisterPlotHandler sets the function called with the variable name when
// the user runs the plot command. It replaces any previous handler. The
// registration is queued, so the handler takes effect once the debugger
// thread runs it. The handler runs on the debugger thread: it may call Fetch
// directly, and RequestFetch or RequestEnumerate run inline there.
func (b *Bridge) RegisterPlotHandler(h func(name string)) error {
	return b.QueueRequest(func() {
		b.plot.handler = h
	})
}

// Plot handles the debugger command "plot <arg>". The first word of arg is
// the variable name passed to the plot handler. If no handler is registered
// yet the command is dropped without error. It must be called on the
// debugger thread.
func (b *Bridge) Plot(arg string) error {
	b.plot.state = PlotInvoked
	defer func() { b.plot.state = PlotIdle }()

	args := splitArgv(arg)
	if len(args) == 0 {
		return ErrMissingPlotArgument
	}
	if b.plot.handler == nil {
		return nil
	}
	b.plot.state = PlotDispatched
	b.runHandler("plot", func() { b.plot.handler(args[0]) })
	return nil
}

// PlotState returns the phase of the plot command. It must be called on the
// debugger thread.
func (b *Bridge) PlotState() PlotState {
	return b.plot.state
}

// runHandler calls f as the debugger thread, reporting a panic to the error
// logger. Requests made by f run inline.
func (b *Bridge) runHandler(what string, f func()) {
	b.d.Own(func() {
		defer func() {
			if p := recover(); p != nil {
				b.cfg.errorLogger(fmt.Errorf("%s handler panicked: %v", what, p))
			}
		}()
		f()
	})
}

// splitArgv splits s into words the way gdb splits command arguments:
// words are separated by whitespace, single and double quotes group
// characters and a backslash escapes the next character. An unterminated
// quote runs to the end of s.
func splitArgv(s string) []string {
	var (
		args  []string
		cur   strings.Builder
		inArg bool
		quote rune
		esc   bool
	)
	for _, r := range s {
		switch {
		case esc:
			cur.WriteRune(r)
			esc = false
		case r == '\\':
			esc = true
			inArg = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args
}
