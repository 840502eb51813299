// Package opencv recognizes OpenCV cv::Mat values as buffers.
package opencv

import (
	"strings"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// TypeName is the type recognized by Inspector.
const TypeName = "cv::Mat"

// Inspector implements debuggee.Inspector for cv::Mat.
type Inspector struct{}

var _ debuggee.Inspector = Inspector{}

// Matrix depths, the low three bits of cv::Mat::flags.
const (
	cv8U = iota
	cv8S
	cv16U
	cv16S
	cv32S
	cv32F
	cv64F
)

const (
	depthMask    = 7
	channelMask  = 0xFF8
	channelShift = 3
)

// baseTypeName strips qualifiers, references and pointers from a type name.
func baseTypeName(name string) (base string, pointer bool) {
	pointer = strings.Contains(name, "*")
	var words []string
	for _, w := range strings.Fields(strings.NewReplacer("&", " ", "*", " ").Replace(name)) {
		if w != "const" && w != "volatile" {
			words = append(words, w)
		}
	}
	return strings.Join(words, ""), pointer
}

// IsObservable implements debuggee.Inspector.
func (Inspector) IsObservable(sym debuggee.Symbol) bool {
	if sym.Type == nil {
		return false
	}
	base, _ := baseTypeName(sym.Type.Name())
	return base == TypeName
}

// ExtractBufferFields implements debuggee.Inspector.
func (Inspector) ExtractBufferFields(_ debuggee.Caster, v debuggee.Value) (debuggee.BufferFields, bool) {
	if v.Type() == nil {
		return debuggee.BufferFields{}, false
	}
	base, pointer := baseTypeName(v.Type().Name())
	if base != TypeName {
		return debuggee.BufferFields{}, false
	}
	if pointer {
		var err error
		if v, err = v.Dereference(); err != nil {
			return debuggee.BufferFields{}, false
		}
	}

	flags, ok := intField(v, "flags")
	if !ok {
		return debuggee.BufferFields{}, false
	}
	var f debuggee.BufferFields
	switch flags & depthMask {
	case cv8U:
		f.ElementType = debuggee.Uint8
	case cv16U:
		f.ElementType = debuggee.Uint16
	case cv16S:
		f.ElementType = debuggee.Int16
	case cv32S:
		f.ElementType = debuggee.Int32
	case cv32F:
		f.ElementType = debuggee.Float32
	case cv64F:
		f.ElementType = debuggee.Float64
	default:
		// cv8S has no element type.
		return debuggee.BufferFields{}, false
	}
	f.Channels = uint64((flags&channelMask)>>channelShift) + 1

	cols, ok := intField(v, "cols")
	if !ok {
		return debuggee.BufferFields{}, false
	}
	rows, ok := intField(v, "rows")
	if !ok {
		return debuggee.BufferFields{}, false
	}
	// Negative sizes turn into huge ones and fail validation.
	f.Width, f.Height = uint64(cols), uint64(rows)

	data, err := v.Field("data")
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	if f.Pointer, err = data.Uint64(); err != nil {
		return debuggee.BufferFields{}, false
	}

	step, err := v.Field("step")
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	buf, err := step.Field("buf")
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	rowBytes, err := buf.Index(0)
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	stepBytes, err := rowBytes.Uint64()
	if err != nil {
		return debuggee.BufferFields{}, false
	}
	f.RowStride = stepBytes / (f.Channels * f.ElementType.Size())
	f.PixelLayout = "bgra"
	return f, true
}

func intField(v debuggee.Value, name string) (int64, bool) {
	fv, err := v.Field(name)
	if err != nil {
		return 0, false
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false
	}
	return n, true
}
