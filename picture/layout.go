// Package picture describes raw planar pictures as produced by decoders and
// consumed by display surfaces.
package picture

import (
	"fmt"
)

type Layout int

const (
	LayoutUnknown = Layout(iota)

	// LayoutI420 is full-resolution luma plus one chroma sample per 2x2 luma
	// block. It is the canonical layout every conversion targets.
	LayoutI420

	LayoutI422
	LayoutI444

	// LayoutI410 has one chroma sample per 4x4 luma block.
	LayoutI410

	// LayoutRV24 is packed 8-bit RGB.
	LayoutRV24

	// LayoutGray is luma only.
	LayoutGray

	// LayoutNV12 is luma plus one interleaved CbCr plane.
	LayoutNV12
)

func (l Layout) String() string {
	switch l {
	case LayoutUnknown:
		return "unknown"
	case LayoutI420:
		return "I420"
	case LayoutI422:
		return "I422"
	case LayoutI444:
		return "I444"
	case LayoutI410:
		return "I410"
	case LayoutRV24:
		return "RV24"
	case LayoutGray:
		return "GREY"
	case LayoutNV12:
		return "NV12"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

func LayoutFromString(s string) (Layout, error) {
	for l := LayoutI420; l <= LayoutNV12; l++ {
		if l.String() == s {
			return l, nil
		}
	}
	return LayoutUnknown, fmt.Errorf("unknown layout '%s'", s)
}

func (l Layout) NumPlanes() int {
	switch l {
	case LayoutI420, LayoutI422, LayoutI444, LayoutI410:
		return 3
	case LayoutNV12:
		return 2
	case LayoutRV24, LayoutGray:
		return 1
	default:
		return 0
	}
}

// chromaShift returns log2 of the horizontal and vertical chroma subsampling.
func (l Layout) chromaShift() (int, int) {
	switch l {
	case LayoutI420, LayoutNV12:
		return 1, 1
	case LayoutI422:
		return 1, 0
	case LayoutI410:
		return 2, 2
	default:
		return 0, 0
	}
}

// PlaneGeometry returns the visible bytes per row and the number of rows of
// plane i of a width x height picture.
func (l Layout) PlaneGeometry(i int, width, height int) (rowBytes int, lines int) {
	if i < 0 || i >= l.NumPlanes() {
		return 0, 0
	}
	if i == 0 {
		if l == LayoutRV24 {
			return width * 3, height
		}
		return width, height
	}
	sx, sy := l.chromaShift()
	cw := (width + (1 << sx) - 1) >> sx
	ch := (height + (1 << sy) - 1) >> sy
	if l == LayoutNV12 {
		cw *= 2
	}
	return cw, ch
}
