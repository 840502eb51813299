// Package framing contains the encodings of buffer layouts sent to a remote
// viewer: the header that precedes the chunks of a fetched buffer, carried
// as gRPC header metadata, and the table returned by an enumeration.
package framing

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/DataExMachina-dev/bufwatch/debuggee"
)

// BufferHeader describes the bytes that follow it.
type BufferHeader struct {
	SessionID   string
	Name        string
	Width       int
	Height      int
	Channels    int
	ElementType debuggee.ElementType
	RowStride   int
	PixelLayout string
	ByteSize    uint64
	Digest      uint64
	CapturedAt  time.Time
}

const (
	keySession    = "bufwatch-session"
	keyName       = "bufwatch-name"
	keyWidth      = "bufwatch-width"
	keyHeight     = "bufwatch-height"
	keyChannels   = "bufwatch-channels"
	keyElemType   = "bufwatch-element-type"
	keyRowStride  = "bufwatch-row-stride"
	keyLayout     = "bufwatch-pixel-layout"
	keyByteSize   = "bufwatch-byte-size"
	keyDigest     = "bufwatch-digest"
	keyCapturedAt = "bufwatch-captured-at"
)

// HeaderOf returns the header for d.
func HeaderOf(sessionID string, d *debuggee.Descriptor) BufferHeader {
	return BufferHeader{
		SessionID:   sessionID,
		Name:        d.Name,
		Width:       d.Width,
		Height:      d.Height,
		Channels:    d.Channels,
		ElementType: d.ElementType,
		RowStride:   d.RowStride,
		PixelLayout: d.PixelLayout,
		ByteSize:    d.ByteSize(),
		Digest:      d.Digest(),
		CapturedAt:  d.CapturedAt,
	}
}

// Encode returns h as metadata.
func (h BufferHeader) Encode() metadata.MD {
	return metadata.Pairs(
		keySession, h.SessionID,
		keyName, h.Name,
		keyWidth, strconv.Itoa(h.Width),
		keyHeight, strconv.Itoa(h.Height),
		keyChannels, strconv.Itoa(h.Channels),
		keyElemType, strconv.Itoa(int(h.ElementType)),
		keyRowStride, strconv.Itoa(h.RowStride),
		keyLayout, h.PixelLayout,
		keyByteSize, strconv.FormatUint(h.ByteSize, 10),
		keyDigest, strconv.FormatUint(h.Digest, 16),
		keyCapturedAt, h.CapturedAt.UTC().Format(time.RFC3339Nano),
	)
}

// Decode parses a header encoded by Encode.
func Decode(md metadata.MD) (BufferHeader, error) {
	var h BufferHeader
	var err error
	get := func(key string) string {
		vals := md.Get(key)
		if len(vals) == 0 {
			if err == nil {
				err = fmt.Errorf("missing %s", key)
			}
			return ""
		}
		return vals[0]
	}
	atoi := func(key string) int {
		s := get(key)
		if err != nil {
			return 0
		}
		n, perr := strconv.Atoi(s)
		if perr != nil {
			err = fmt.Errorf("failed to parse %s: %w", key, perr)
		}
		return n
	}
	parseUint := func(key string, base int) uint64 {
		s := get(key)
		if err != nil {
			return 0
		}
		n, perr := strconv.ParseUint(s, base, 64)
		if perr != nil {
			err = fmt.Errorf("failed to parse %s: %w", key, perr)
		}
		return n
	}

	h.SessionID = get(keySession)
	h.Name = get(keyName)
	h.Width = atoi(keyWidth)
	h.Height = atoi(keyHeight)
	h.Channels = atoi(keyChannels)
	h.ElementType = debuggee.ElementType(atoi(keyElemType))
	h.RowStride = atoi(keyRowStride)
	h.PixelLayout = get(keyLayout)
	h.ByteSize = parseUint(keyByteSize, 10)
	h.Digest = parseUint(keyDigest, 16)
	if s := get(keyCapturedAt); err == nil {
		t, perr := time.Parse(time.RFC3339Nano, s)
		if perr != nil {
			err = fmt.Errorf("failed to parse %s: %w", keyCapturedAt, perr)
		}
		h.CapturedAt = t
	}
	if err != nil {
		return BufferHeader{}, fmt.Errorf("invalid buffer header: %w", err)
	}
	return h, nil
}

// BufferInfo is one entry of an enumeration.
type BufferInfo struct {
	Name        string
	Width       int
	Height      int
	Channels    int
	ElementType debuggee.ElementType
	RowStride   int
	PixelLayout string
	ByteSize    uint64
	Digest      uint64
}

// EncodeTable describes the buffers of t, in discovery order, as
//
//	{"session": ..., "names": [...], "buffers": {name: {layout}}}
//
// The bytes themselves are not included.
func EncodeTable(sessionID string, t *debuggee.SymbolTable) (*structpb.Struct, error) {
	names := t.Names()
	nameVals := make([]interface{}, 0, len(names))
	buffers := make(map[string]interface{}, len(names))
	for _, name := range names {
		d, _ := t.Get(name)
		nameVals = append(nameVals, name)
		buffers[name] = map[string]interface{}{
			"width":        d.Width,
			"height":       d.Height,
			"channels":     d.Channels,
			"element_type": d.ElementType.String(),
			"row_stride":   d.RowStride,
			"pixel_layout": d.PixelLayout,
			"byte_size":    strconv.FormatUint(d.ByteSize(), 10),
			"digest":       strconv.FormatUint(d.Digest(), 16),
		}
	}
	s, err := structpb.NewStruct(map[string]interface{}{
		"session": sessionID,
		"names":   nameVals,
		"buffers": buffers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode buffer table: %w", err)
	}
	return s, nil
}

// DecodeTable parses the output of EncodeTable.
func DecodeTable(s *structpb.Struct) (sessionID string, _ []BufferInfo, _ error) {
	fields := s.GetFields()
	sessionID = fields["session"].GetStringValue()
	buffers := fields["buffers"].GetStructValue().GetFields()
	var infos []BufferInfo
	for _, v := range fields["names"].GetListValue().GetValues() {
		name := v.GetStringValue()
		b, ok := buffers[name]
		if !ok {
			return "", nil, fmt.Errorf("invalid buffer table: no layout for %q", name)
		}
		info, err := decodeInfo(name, b.GetStructValue().GetFields())
		if err != nil {
			return "", nil, fmt.Errorf("invalid buffer table: %s: %w", name, err)
		}
		infos = append(infos, info)
	}
	return sessionID, infos, nil
}

func decodeInfo(name string, f map[string]*structpb.Value) (BufferInfo, error) {
	et, err := debuggee.ParseElementType(f["element_type"].GetStringValue())
	if err != nil {
		return BufferInfo{}, err
	}
	size, err := strconv.ParseUint(f["byte_size"].GetStringValue(), 10, 64)
	if err != nil {
		return BufferInfo{}, fmt.Errorf("failed to parse byte_size: %w", err)
	}
	digest, err := strconv.ParseUint(f["digest"].GetStringValue(), 16, 64)
	if err != nil {
		return BufferInfo{}, fmt.Errorf("failed to parse digest: %w", err)
	}
	return BufferInfo{
		Name:        name,
		Width:       int(f["width"].GetNumberValue()),
		Height:      int(f["height"].GetNumberValue()),
		Channels:    int(f["channels"].GetNumberValue()),
		ElementType: et,
		RowStride:   int(f["row_stride"].GetNumberValue()),
		PixelLayout: f["pixel_layout"].GetStringValue(),
		ByteSize:    size,
		Digest:      digest,
	}, nil
}
