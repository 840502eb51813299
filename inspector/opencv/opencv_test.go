package opencv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DataExMachina-dev/bufwatch/bufwatch"
	"github.com/DataExMachina-dev/bufwatch/debuggee"
	"github.com/DataExMachina-dev/bufwatch/internal/fakedebuggee"
)

func TestBaseTypeName(t *testing.T) {
	for _, tc := range []struct {
		in      string
		base    string
		pointer bool
	}{
		{"cv::Mat", "cv::Mat", false},
		{"const cv::Mat &", "cv::Mat", false},
		{"cv::Mat const&", "cv::Mat", false},
		{"volatile cv::Mat *", "cv::Mat", true},
		{"cv::Mat_<float>", "cv::Mat_<float>", false},
		{"constexpr_t", "constexpr_t", false},
	} {
		base, pointer := baseTypeName(tc.in)
		require.Equal(t, tc.base, base, tc.in)
		require.Equal(t, tc.pointer, pointer, tc.in)
	}
}

// mat builds a cv::Mat value in p.
func mat(p *fakedebuggee.Process, typeName string, flags, rows, cols, step, data uint64) *fakedebuggee.Value {
	sizeT := p.Named("size_t")
	stepT := p.Named("cv::MatStep", fakedebuggee.Member("buf", p.Named("size_t[2]")))
	matT := p.Named(typeName,
		fakedebuggee.Member("flags", p.Named("int")),
		fakedebuggee.Member("rows", p.Named("int")),
		fakedebuggee.Member("cols", p.Named("int")),
		fakedebuggee.Member("data", p.Named("uchar *")),
		fakedebuggee.Member("step", stepT),
	)
	return p.Object(matT, map[string]*fakedebuggee.Value{
		"flags": p.Scalar("int", flags),
		"rows":  p.Scalar("int", rows),
		"cols":  p.Scalar("int", cols),
		"data":  p.Scalar("uchar *", data),
		"step": p.Object(stepT, map[string]*fakedebuggee.Value{
			"buf": p.Array(sizeT, p.Scalar("size_t", step), p.Scalar("size_t", 1)),
		}),
	})
}

func TestIsObservable(t *testing.T) {
	p := fakedebuggee.NewProcess()
	var insp Inspector
	for name, want := range map[string]bool{
		"cv::Mat":         true,
		"const cv::Mat &": true,
		"cv::Mat *":       true,
		"cv::MatExpr":     false,
		"int":             false,
	} {
		sym := debuggee.Symbol{Name: "m", Type: p.Named(name), Kind: debuggee.SymbolVariable}
		require.Equal(t, want, insp.IsObservable(sym), name)
	}
	require.False(t, insp.IsObservable(debuggee.Symbol{Name: "m"}))
}

func TestExtractBufferFields(t *testing.T) {
	p := fakedebuggee.NewProcess()
	var insp Inspector

	// CV_8UC3, rows padded to 660 pixels.
	f, ok := insp.ExtractBufferFields(nil, mat(p, TypeName, 2<<3, 480, 640, 3*660, 0x1000))
	require.True(t, ok)
	require.Equal(t, debuggee.BufferFields{
		Pointer:     0x1000,
		Width:       640,
		Height:      480,
		Channels:    3,
		ElementType: debuggee.Uint8,
		RowStride:   660,
		PixelLayout: "bgra",
	}, f)

	// CV_32FC1 behind a pointer.
	m := mat(p, TypeName, cv32F, 2, 5, 4*5, 0x2000)
	ptr := p.PointerTo(m, 0x3000)
	f, ok = insp.ExtractBufferFields(nil, ptr)
	require.True(t, ok)
	require.Equal(t, debuggee.Float32, f.ElementType)
	require.Equal(t, uint64(1), f.Channels)
	require.Equal(t, uint64(5), f.RowStride)

	// CV_8S has no element type.
	_, ok = insp.ExtractBufferFields(nil, mat(p, TypeName, cv8S, 2, 2, 2, 0x1000))
	require.False(t, ok)

	_, ok = insp.ExtractBufferFields(nil, p.Scalar("int", 3))
	require.False(t, ok)
}

func TestFetchMat(t *testing.T) {
	p := fakedebuggee.NewProcess()
	data := fakedebuggee.Pattern(4*4*2*2, 1)
	addr := p.Map(data)
	// CV_16UC2, 3x4 with one pixel of padding per row.
	m := mat(p, "const cv::Mat &", cv16U|1<<3, 4, 3, 4*2*2, addr)
	p.SetFrame([]fakedebuggee.Local{{Name: "frame", Kind: debuggee.SymbolArgument, Value: m}})

	b, err := bufwatch.New(p, Inspector{})
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, []string{"frame"}, b.EnumerateAvailable().Names())
	d, err := b.Fetch("frame")
	require.NoError(t, err)
	require.Equal(t, debuggee.Uint16, d.ElementType)
	require.Equal(t, 2, d.Channels)
	require.Equal(t, 3, d.Width)
	require.Equal(t, 4, d.RowStride)
	require.Equal(t, data, d.Bytes())
}
