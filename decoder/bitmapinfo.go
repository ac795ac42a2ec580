package decoder

import (
	"encoding/binary"
	"fmt"
)

const bitmapInfoHeaderSize = 40

// BitmapInfoHeader is the video format header found in AVI-like containers.
type BitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   [4]byte
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32

	// ExtraData is the codec specific data trailing the header.
	ExtraData []byte
}

func ParseBitmapInfoHeader(b []byte) (*BitmapInfoHeader, error) {
	if len(b) < bitmapInfoHeaderSize {
		return nil, fmt.Errorf("the header is too short: %d < %d", len(b), bitmapInfoHeaderSize)
	}
	le := binary.LittleEndian
	h := &BitmapInfoHeader{
		Size:          le.Uint32(b[0:]),
		Width:         int32(le.Uint32(b[4:])),
		Height:        int32(le.Uint32(b[8:])),
		Planes:        le.Uint16(b[12:]),
		BitCount:      le.Uint16(b[14:]),
		SizeImage:     le.Uint32(b[20:]),
		XPelsPerMeter: int32(le.Uint32(b[24:])),
		YPelsPerMeter: int32(le.Uint32(b[28:])),
		ClrUsed:       le.Uint32(b[32:]),
		ClrImportant:  le.Uint32(b[36:]),
	}
	copy(h.Compression[:], b[16:20])
	if h.Size > bitmapInfoHeaderSize {
		if int(h.Size) > len(b) {
			return nil, fmt.Errorf("the header declares %d bytes, but only %d are available", h.Size, len(b))
		}
		h.ExtraData = append([]byte(nil), b[bitmapInfoHeaderSize:h.Size]...)
	}
	return h, nil
}

// ApplyBitmapInfoHeader fills the geometry, the codec (if not set yet) and
// the extradata from the header.
func (in *Input) ApplyBitmapInfoHeader(h *BitmapInfoHeader) {
	in.Width = int(h.Width)
	in.Height = int(h.Height)
	if in.Height < 0 {
		in.Height = -in.Height
	}
	if in.Codec == "" {
		if name, ok := CodecFromFourCC(string(h.Compression[:])); ok {
			in.Codec = name
		}
	}
	if len(h.ExtraData) > 0 {
		in.ExtraData = h.ExtraData
	}
}
