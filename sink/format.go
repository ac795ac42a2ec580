// Package sink negotiates the display surface a pipeline presents its
// pictures to.
package sink

import (
	"fmt"

	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/types"
)

type Format struct {
	Width  int
	Height int
	Layout picture.Layout
	Aspect types.Rational
}

func (f Format) String() string {
	return fmt.Sprintf("%dx%d:%s@%s", f.Width, f.Height, f.Layout, f.Aspect)
}

// Equal reports whether the formats are structurally the same; aspect
// ratios are compared as fractions, so 8:6 equals 4:3.
func (f Format) Equal(other Format) bool {
	return f.Width == other.Width &&
		f.Height == other.Height &&
		f.Layout == other.Layout &&
		f.Aspect.Equal(other.Aspect)
}

func (f Format) Resolution() types.Resolution {
	return types.Resolution{Width: uint32(f.Width), Height: uint32(f.Height)}
}

var (
	aspect4x3  = types.NewRational(4, 3)
	aspect16x9 = types.NewRational(16, 9)
)

// DisplayAspect maps the aspect code reported by a decoder to the display
// aspect ratio of the picture.
func DisplayAspect(width, height int, code picture.AspectCode) types.Rational {
	switch code {
	case picture.Aspect4x3_625, picture.Aspect4x3_525:
		return aspect4x3
	case picture.Aspect16x9_625, picture.Aspect16x9_525:
		return aspect16x9
	default:
		if height == 0 {
			return types.Rational{}
		}
		return types.NewRational(width, height).Reduce()
	}
}
