package picture

import (
	"fmt"
)

// AspectCode is the source aspect-ratio code reported by decoders.
type AspectCode int

const (
	AspectSquare = AspectCode(iota)
	Aspect4x3_625
	Aspect4x3_525
	Aspect16x9_625
	Aspect16x9_525
)

func (c AspectCode) String() string {
	switch c {
	case AspectSquare:
		return "square"
	case Aspect4x3_625:
		return "4:3/625"
	case Aspect4x3_525:
		return "4:3/525"
	case Aspect16x9_625:
		return "16:9/625"
	case Aspect16x9_525:
		return "16:9/525"
	default:
		return fmt.Sprintf("AspectCode(%d)", int(c))
	}
}

type Plane struct {
	Data   []byte
	Stride int
	Lines  int
}

// Row returns row y of the plane, at most n bytes long and never past the
// end of Data.
func (p *Plane) Row(y int, n int) []byte {
	start := y * p.Stride
	if start >= len(p.Data) || y < 0 {
		return nil
	}
	end := min(start+n, len(p.Data))
	return p.Data[start:end]
}

type Picture struct {
	Layout     Layout
	Width      int
	Height     int
	AspectCode AspectCode
	Planes     []Plane
}

func (p *Picture) String() string {
	if p == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%dx%d:%s", p.Width, p.Height, p.Layout)
}

// Alloc allocates a picture whose strides are rounded up to align bytes.
func Alloc(layout Layout, width, height int, align int) (*Picture, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid geometry %dx%d", width, height)
	}
	if layout.NumPlanes() == 0 {
		return nil, fmt.Errorf("cannot allocate a picture of layout %s", layout)
	}
	if align <= 0 {
		align = 1
	}
	pic := &Picture{
		Layout: layout,
		Width:  width,
		Height: height,
		Planes: make([]Plane, layout.NumPlanes()),
	}
	for i := range pic.Planes {
		rowBytes, lines := layout.PlaneGeometry(i, width, height)
		stride := (rowBytes + align - 1) / align * align
		pic.Planes[i] = Plane{
			Data:   make([]byte, stride*lines),
			Stride: stride,
			Lines:  lines,
		}
	}
	return pic, nil
}
