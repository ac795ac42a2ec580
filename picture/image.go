package picture

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
)

// ToImage copies the picture into a Go image.
func (p *Picture) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, p.Width, p.Height)
	switch p.Layout {
	case LayoutI420, LayoutI422, LayoutI444, LayoutI410:
		var ratio image.YCbCrSubsampleRatio
		switch p.Layout {
		case LayoutI420:
			ratio = image.YCbCrSubsampleRatio420
		case LayoutI422:
			ratio = image.YCbCrSubsampleRatio422
		case LayoutI444:
			ratio = image.YCbCrSubsampleRatio444
		case LayoutI410:
			return nil, fmt.Errorf("layout %s has no image.YCbCr counterpart", p.Layout)
		}
		img := image.NewYCbCr(rect, ratio)
		copyPlane(img.Y, img.YStride, &p.Planes[0], p.Layout, 0, p.Width, p.Height)
		copyPlane(img.Cb, img.CStride, &p.Planes[1], p.Layout, 1, p.Width, p.Height)
		copyPlane(img.Cr, img.CStride, &p.Planes[2], p.Layout, 2, p.Width, p.Height)
		return img, nil
	case LayoutGray:
		img := image.NewGray(rect)
		copyPlane(img.Pix, img.Stride, &p.Planes[0], p.Layout, 0, p.Width, p.Height)
		return img, nil
	case LayoutRV24:
		img := image.NewRGBA(rect)
		for y := 0; y < p.Height; y++ {
			row := p.Planes[0].Row(y, p.Width*3)
			for x := 0; x < len(row)/3; x++ {
				img.SetRGBA(x, y, color.RGBA{R: row[3*x], G: row[3*x+1], B: row[3*x+2], A: 0xff})
			}
		}
		return img, nil
	default:
		return nil, fmt.Errorf("conversion of layout %s into an image is not supported", p.Layout)
	}
}

func copyPlane(dst []byte, dstStride int, src *Plane, layout Layout, idx int, width, height int) {
	rowBytes, lines := layout.PlaneGeometry(idx, width, height)
	rowBytes = min(rowBytes, dstStride)
	for y := 0; y < min(lines, src.Lines); y++ {
		off := y * dstStride
		if off >= len(dst) {
			return
		}
		copy(dst[off:min(off+rowBytes, len(dst))], src.Row(y, rowBytes))
	}
}

// FromImage converts decoded Go images into a picture, referencing the
// image memory instead of copying it. Images with no planar counterpart
// (4:1:1, 4:4:0 and Go's 4x2 4:1:0 chroma, CMYK, ...) are copied into RV24.
func FromImage(img image.Image) (*Picture, error) {
	b := img.Bounds()
	switch img := img.(type) {
	case *image.YCbCr:
		var layout Layout
		switch img.SubsampleRatio {
		case image.YCbCrSubsampleRatio420:
			layout = LayoutI420
		case image.YCbCrSubsampleRatio422:
			layout = LayoutI422
		case image.YCbCrSubsampleRatio444:
			layout = LayoutI444
		default:
			return toRV24(img), nil
		}
		_, cLines := layout.PlaneGeometry(1, b.Dx(), b.Dy())
		yOff, cOff := img.YOffset(b.Min.X, b.Min.Y), img.COffset(b.Min.X, b.Min.Y)
		return &Picture{
			Layout: layout,
			Width:  b.Dx(),
			Height: b.Dy(),
			Planes: []Plane{
				{Data: img.Y[yOff:], Stride: img.YStride, Lines: b.Dy()},
				{Data: img.Cb[cOff:], Stride: img.CStride, Lines: cLines},
				{Data: img.Cr[cOff:], Stride: img.CStride, Lines: cLines},
			},
		}, nil
	case *image.Gray:
		return &Picture{
			Layout: LayoutGray,
			Width:  b.Dx(),
			Height: b.Dy(),
			Planes: []Plane{{Data: img.Pix[img.PixOffset(b.Min.X, b.Min.Y):], Stride: img.Stride, Lines: b.Dy()}},
		}, nil
	default:
		return toRV24(img), nil
	}
}

func toRV24(img image.Image) *Picture {
	rgba := clone.AsRGBA(img)
	w, h := rgba.Rect.Dx(), rgba.Rect.Dy()
	pix := make([]byte, w*3*h)
	for y := 0; y < h; y++ {
		src := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		dst := pix[y*w*3 : (y+1)*w*3]
		for x := 0; x < w; x++ {
			copy(dst[3*x:3*x+3], src[4*x:4*x+3])
		}
	}
	return &Picture{
		Layout: LayoutRV24,
		Width:  w,
		Height: h,
		Planes: []Plane{{Data: pix, Stride: w * 3, Lines: h}},
	}
}
