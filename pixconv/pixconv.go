// Package pixconv converts decoded pictures into the layout of a display
// surface buffer.
package pixconv

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
)

var ErrUnsupportedConversion = errors.New("unsupported layout conversion")

// CanonicalLayout is the layout every non-direct conversion targets.
const CanonicalLayout = picture.LayoutI420

// SinkLayout returns the layout a surface is asked for to accept pictures of
// the native layout directly, or LayoutUnknown if they need a conversion.
func SinkLayout(native picture.Layout) picture.Layout {
	switch native {
	case picture.LayoutI420,
		picture.LayoutI422,
		picture.LayoutI444,
		picture.LayoutRV24,
		picture.LayoutGray:
		return native
	default:
		return picture.LayoutUnknown
	}
}

// CanConvert reports whether Convert supports src -> dst.
func CanConvert(src, dst picture.Layout) bool {
	if SinkLayout(src) != picture.LayoutUnknown && src == dst {
		return true
	}
	return src == picture.LayoutI410 && dst == picture.LayoutI420
}

// Convert fills dst with the content of src.
func Convert(
	ctx context.Context,
	src *picture.Picture,
	dst *picture.Picture,
) error {
	logger.Tracef(ctx, "Convert(%s -> %s)", src, dst)
	switch {
	case SinkLayout(src.Layout) != picture.LayoutUnknown && src.Layout == dst.Layout:
		return copyPlanes(src, dst)
	case src.Layout == picture.LayoutI410 && dst.Layout == picture.LayoutI420:
		return convertI410ToI420(src, dst)
	default:
		return fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, src.Layout, dst.Layout)
	}
}

func copyPlanes(src, dst *picture.Picture) error {
	if len(src.Planes) < len(dst.Planes) {
		return fmt.Errorf("the source has %d planes, but the destination has %d", len(src.Planes), len(dst.Planes))
	}
	for i := range dst.Planes {
		copyPlane(&dst.Planes[i], &src.Planes[i])
	}
	return nil
}

// copyPlane copies row by row, min(source stride, destination stride) bytes
// per row.
func copyPlane(dst, src *picture.Plane) {
	rowBytes := min(src.Stride, dst.Stride)
	lines := min(src.Lines, dst.Lines)
	for y := 0; y < lines; y++ {
		copy(dst.Row(y, rowBytes), src.Row(y, rowBytes))
	}
}
