// Command bufwatch-demo serves a simulated debuggee to remote viewers.
//
// The debuggee is stopped in a method of a Renderer holding a color frame and
// a depth map, with a few locals around it. Every -step it "steps": the
// frame contents change and a stop event is delivered, so connected viewers
// refresh. Lines of the form "plot <name>" on standard input run the plot
// command.
//
//	bufwatch-demo -http 127.0.0.1:9714 -inspector renderer.lua
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/DataExMachina-dev/bufwatch/bufwatch"
	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/inspector/luainspect"
	"github.com/DataExMachina-dev/bufwatch/internal/fakedebuggee"
)

var (
	configPath    = flag.String("config", "", "TOML configuration file.")
	httpAddr      = flag.String("http", "127.0.0.1:9714", "Address of the status page. Empty disables it.")
	inspectorPath = flag.String("inspector", "", "Lua inspector script, reloaded when it changes. Defaults to the built-in inspector.")
	dialViewer    = flag.String("dial-viewer", "", "URL of a listening viewer to dial instead of listening, e.g. http://10.0.0.2:9713.")
	step          = flag.Duration("step", 2*time.Second, "Interval between simulated stops.")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	errorLogger := func(err error) { log.Printf("bufwatch error: %s", err) }

	p, frame := newDebuggee()

	var inspector debuggee.Inspector = fakedebuggee.Inspector{}
	if *inspectorPath != "" {
		li, err := luainspect.Load(*inspectorPath, luainspect.WithErrorLogger(errorLogger))
		if err != nil {
			return err
		}
		defer li.Close()
		go func() {
			if err := li.Watch(ctx, *inspectorPath); err != nil && !errors.Is(err, context.Canceled) {
				errorLogger(err)
			}
		}()
		inspector = li
	}

	opts := []bufwatch.Option{
		bufwatch.WithErrorLogger(errorLogger),
		bufwatch.WithSkipLogger(func(name string, err error) {
			log.Printf("%s is not observable: %s", name, err)
		}),
	}
	if *configPath != "" {
		opts = append([]bufwatch.Option{bufwatch.WithConfigFile(*configPath)}, opts...)
	}
	b, err := bufwatch.New(p, inspector, opts...)
	if err != nil {
		return err
	}
	defer b.Close()

	if err := b.RegisterStopHandler(func(ev bufwatch.StopEvent) {
		log.Printf("stopped: %s", ev.Reason)
	}); err != nil {
		return err
	}
	if err := b.RegisterPlotHandler(func(name string) {
		d, err := b.Fetch(name)
		if err != nil {
			errorLogger(err)
			return
		}
		log.Printf("plot %s: %dx%dx%d %s, %d bytes",
			name, d.Width, d.Height, d.Channels, d.ElementType, d.ByteSize())
	}); err != nil {
		return err
	}

	if *dialViewer != "" {
		if err := b.DialViewer(*dialViewer); err != nil {
			return err
		}
		log.Printf("session %s: dialing viewer at %s", b.SessionID(), *dialViewer)
	} else {
		addr, err := b.ListenViewer()
		if err != nil {
			return err
		}
		log.Printf("session %s: viewer listening on %s", b.SessionID(), addr)
	}

	if *httpAddr != "" {
		srv := &http.Server{Addr: *httpAddr, Handler: bufwatch.HTTPHandler(b)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errorLogger(fmt.Errorf("failed to serve status page: %w", err))
			}
		}()
		defer srv.Close()
		log.Printf("status page on http://%s/", *httpAddr)
	}

	go func() {
		t := time.NewTicker(*step)
		defer t.Stop()
		for n := 1; ; n++ {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			n := n
			_ = b.QueueRequest(func() {
				paint(frame, byte(n))
				b.HandleStop(bufwatch.StopEvent{Reason: fmt.Sprintf("step %d", n)})
			})
		}
	}()

	go readCommands(b, errorLogger)

	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readCommands runs the plot commands read from standard input.
func readCommands(b *bufwatch.Bridge, errorLogger func(error)) {
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		switch cmd {
		case "":
		case "plot":
			err := b.QueueRequest(func() {
				if err := b.Plot(arg); err != nil {
					errorLogger(err)
				}
			})
			if err != nil {
				return
			}
		default:
			log.Printf("unknown command %q", cmd)
		}
	}
}

const (
	frameWidth  = 320
	frameHeight = 240
	// Rows of the color frame are padded to 336 pixels.
	frameStride = 336
)

// newDebuggee builds the simulated process and returns it with the color
// frame's backing memory.
func newDebuggee() (*fakedebuggee.Process, []byte) {
	p := fakedebuggee.NewProcess()

	frame := make([]byte, frameHeight*3*frameStride)
	paint(frame, 0)
	color := p.NewBuffer(fakedebuggee.BufferSpec{
		Width: frameWidth, Height: frameHeight, Channels: 3,
		ElementType: debuggee.Uint8, RowStride: frameStride, Layout: "bgra",
		Data: frame,
	})
	depth := p.NewBuffer(fakedebuggee.BufferSpec{
		Width: frameWidth / 2, Height: frameHeight / 2, Channels: 1,
		ElementType: debuggee.Float32, Seed: 7,
	})

	bt := p.BufferType()
	rendererT := p.Named("Renderer",
		fakedebuggee.Member("color", bt),
		fakedebuggee.Member("depth", bt),
		fakedebuggee.Member("frames", p.Named("unsigned long")),
	)
	renderer := p.Object(rendererT, map[string]*fakedebuggee.Value{
		"color":  color,
		"depth":  depth,
		"frames": p.Scalar("unsigned long", 0),
	})

	p.SetFrame(
		[]fakedebuggee.Local{
			{Name: "mask", Kind: debuggee.SymbolVariable, Value: p.NewBuffer(fakedebuggee.BufferSpec{
				Width: 64, Height: 64, Channels: 1, ElementType: debuggee.Uint8, Seed: 3,
			})},
			{Name: "pending", Kind: debuggee.SymbolVariable, Value: p.NewBuffer(fakedebuggee.BufferSpec{
				Width: 64, Height: 64, Channels: 1, ElementType: debuggee.Uint8, Null: true,
			})},
		},
		[]fakedebuggee.Local{
			{Name: "this", Kind: debuggee.SymbolArgument, Value: p.PointerTo(renderer, 0x7ff0000)},
			{Name: "i", Kind: debuggee.SymbolVariable, Value: p.Scalar("int", 0)},
		},
	)
	return p, frame
}

// paint draws a diagonal gradient shifted by phase into a color frame.
func paint(frame []byte, phase byte) {
	for y := 0; y < frameHeight; y++ {
		row := frame[y*3*frameStride:]
		for x := 0; x < frameWidth; x++ {
			row[3*x] = byte(x) + phase
			row[3*x+1] = byte(y) + phase
			row[3*x+2] = byte(x+y) - phase
		}
	}
}
