package bufwatch

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"
)

// HTTPHandler returns a handler rendering the buffers visible from the
// selected frame. A POST with a "plot" form value runs the plot command with
// that argument.
//
// Every page view enumerates the frame through RequestEnumerate, which copies
// the bytes of every visible buffer out of the debuggee, even though the page
// only shows their layout.
//
// The debugger thread must be running queued requests (see Run) for the page
// to render.
func HTTPHandler(b *Bridge) http.Handler {
	return httpHandler{b: b}
}

type httpHandler struct {
	b *Bridge
}

const httpRequestTimeout = 5 * time.Second

func (h httpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// GETs render the current buffers.
	if req.Method == http.MethodGet {
		h.handleGet(req.Context(), w, "")
		return
	}
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if err := req.ParseForm(); err != nil {
		h.b.cfg.errorLogger(fmt.Errorf("failed to parse form: %w", err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	arg, ok := req.Form["plot"]
	if !ok {
		h.b.cfg.errorLogger(fmt.Errorf("invalid POST: missing plot"))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), httpRequestTimeout)
	defer cancel()
	_, err := onDebuggerThread(ctx, h.b, func() (struct{}, error) {
		return struct{}{}, h.b.Plot(arg[0])
	})
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	// Generate the page after the command.
	h.handleGet(ctx, w, msg)
}

func (h httpHandler) handleGet(ctx context.Context, w http.ResponseWriter, msg string) {
	ctx, cancel := context.WithTimeout(ctx, httpRequestTimeout)
	defer cancel()
	table, err := h.b.RequestEnumerate(ctx)
	if err != nil {
		h.b.cfg.errorLogger(fmt.Errorf("failed to enumerate buffers: %w", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	sb := strings.Builder{}
	sb.WriteString(`<html>
<head>
	<title>bufwatch</title>
	<style>
	td, th { padding: 2px 8px; text-align: left; }
	</style>
</head>
<body>
<h1>bufwatch</h1>
`)
	sb.WriteString(fmt.Sprintf("<div>Session: %s</div>\n", h.b.SessionID()))
	if msg != "" {
		sb.WriteString(fmt.Sprintf(`<div style="color:red">%s</div>`+"\n", html.EscapeString(msg)))
	}
	sb.WriteString(`<table>
<tr><th>Name</th><th>Width</th><th>Height</th><th>Channels</th><th>Type</th><th>Row stride</th><th>Layout</th><th>Bytes</th><th>Digest</th></tr>
`)
	for _, name := range table.Names() {
		d, _ := table.Get(name)
		sb.WriteString(fmt.Sprintf(
			"<tr><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td>%s</td><td>%d</td><td>%s</td><td>%d</td><td>%016x</td></tr>\n",
			html.EscapeString(name), d.Width, d.Height, d.Channels, d.ElementType,
			d.RowStride, html.EscapeString(d.PixelLayout), d.ByteSize(), d.Digest()))
	}
	sb.WriteString(`</table>
<form action="" method="POST">
<input type="text" name="plot"/>
<input type="submit" value="Plot"/>
</form>
</body>
</html>`)

	if _, err := w.Write([]byte(sb.String())); err != nil {
		h.b.cfg.errorLogger(fmt.Errorf("failed to write response: %w", err))
	}
}
