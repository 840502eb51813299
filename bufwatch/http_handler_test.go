package bufwatch_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DataExMachina-dev/bufwatch/bufwatch"
	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/fakedebuggee"
)

func TestHTTPHandler(t *testing.T) {
	p := fakedebuggee.NewProcess()
	p.SetFrame([]fakedebuggee.Local{
		local("<frame>", p.NewBuffer(fakedebuggee.BufferSpec{
			Width: 2, Height: 3, Channels: 1, ElementType: debuggee.Int16, Layout: "rgba",
		})),
	})
	b := newBridge(t, p)
	plotted := make(chan string, 1)
	require.NoError(t, b.RegisterPlotHandler(func(name string) { plotted <- name }))
	runDebuggerThread(t, b)
	h := bufwatch.HTTPHandler(b)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "<td>&lt;frame&gt;</td><td>2</td><td>3</td><td>1</td><td>int16</td>")
	require.Contains(t, body, b.SessionID().String())

	form := url.Values{"plot": {"img"}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "img", <-plotted)

	form = url.Values{"plot": {""}}
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), bufwatch.ErrMissingPlotArgument.Error())

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPPageReadsVisibleBuffers(t *testing.T) {
	p := fakedebuggee.NewProcess()
	spec := fakedebuggee.BufferSpec{Width: 2, Height: 2, Channels: 1, ElementType: debuggee.Uint8}
	p.SetFrame([]fakedebuggee.Local{
		local("a", p.NewBuffer(spec)),
		local("b", p.NewBuffer(spec)),
	})
	b := newBridge(t, p)
	runDebuggerThread(t, b)
	h := bufwatch.HTTPHandler(b)

	for views := 1; views <= 2; views++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, 2*views, p.Reads())
	}
}
