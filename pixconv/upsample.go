package pixconv

import (
	"fmt"

	"github.com/xaionaro-go/avpresent/picture"
)

// The I410 -> I420 path is a separable two-pass interpolation, not a proper
// reconstruction filter.

// UpsampleRowH doubles the row horizontally: every sample is kept and
// followed by the average with its right neighbour; the last sample is
// repeated. len(dst) must be at least 2*len(src).
func UpsampleRowH(dst, src []byte) {
	if len(src) == 0 {
		return
	}
	last := len(src) - 1
	for x := 0; x < last; x++ {
		dst[2*x] = src[x]
		dst[2*x+1] = byte((int(src[x]) + int(src[x+1])) / 2)
	}
	dst[2*last] = src[last]
	dst[2*last+1] = src[last]
}

// UpsampleI410Chroma upsamples a cols x lines chroma plane into a
// (2*cols) x (2*lines) plane with the given stride. Even output rows are the
// horizontally expanded source rows, odd rows average the even rows around
// them, and the last row repeats the last expanded source row.
func UpsampleI410Chroma(dst []byte, dstStride int, src *picture.Plane, cols, lines int) {
	outCols := 2 * cols
	for y := 0; y < lines; y++ {
		UpsampleRowH(dst[2*y*dstStride:2*y*dstStride+outCols], src.Row(y, cols))
	}
	for y := 0; y < lines-1; y++ {
		above := dst[2*y*dstStride:]
		below := dst[2*(y+1)*dstStride:]
		out := dst[(2*y+1)*dstStride:]
		for x := 0; x < outCols; x++ {
			out[x] = byte((int(above[x]) + int(below[x])) / 2)
		}
	}
	if lines > 0 {
		lastEven := dst[2*(lines-1)*dstStride:]
		copy(dst[(2*lines-1)*dstStride:(2*lines-1)*dstStride+outCols], lastEven[:outCols])
	}
}

func convertI410ToI420(src, dst *picture.Picture) error {
	if len(src.Planes) < 3 || len(dst.Planes) < 3 {
		return fmt.Errorf("planar pictures with 3 planes are expected, got %d -> %d", len(src.Planes), len(dst.Planes))
	}

	luma := min(src.Width, src.Planes[0].Stride, dst.Planes[0].Stride)
	for y := 0; y < min(src.Height, src.Planes[0].Lines, dst.Planes[0].Lines); y++ {
		copy(dst.Planes[0].Row(y, luma), src.Planes[0].Row(y, luma))
	}

	cols, lines := picture.LayoutI410.PlaneGeometry(1, src.Width, src.Height)
	for i := 1; i < 3; i++ {
		srcPlane := &src.Planes[i]
		c := min(cols, srcPlane.Stride)
		l := min(lines, srcPlane.Lines)
		if c <= 0 || l <= 0 {
			continue
		}
		tmpStride := 2 * c
		tmp := make([]byte, tmpStride*2*l)
		UpsampleI410Chroma(tmp, tmpStride, srcPlane, c, l)

		dstPlane := &dst.Planes[i]
		rowBytes := min(tmpStride, dstPlane.Stride)
		for y := 0; y < min(2*l, dstPlane.Lines); y++ {
			copy(dstPlane.Row(y, rowBytes), tmp[y*tmpStride:y*tmpStride+rowBytes])
		}
	}
	return nil
}
