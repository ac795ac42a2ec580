// Package decoder defines how the pipeline drives an external single-frame
// video decoder.
package decoder

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avpresent/picture"
)

type DegradeHint int

const (
	DegradeNone = DegradeHint(iota)

	// DegradeFast asks for a cheaper decode that still yields a displayable
	// picture.
	DegradeFast
)

func (h DegradeHint) String() string {
	switch h {
	case DegradeNone:
		return "none"
	case DegradeFast:
		return "fast"
	default:
		return fmt.Sprintf("DegradeHint(%d)", int(h))
	}
}

// Params is what the pipeline may read of the decoder state.
type Params struct {
	Width      int
	Height     int
	Layout     picture.Layout
	AspectCode picture.AspectCode
}

func (p Params) String() string {
	return fmt.Sprintf("%dx%d:%s:%s", p.Width, p.Height, p.Layout, p.AspectCode)
}

// Decoder is an owned handle to a stateful decoder. It must not be shared
// between workers.
type Decoder interface {
	fmt.Stringer

	// Decode consumes one compressed frame. A nil picture with a nil error
	// means the decoder needs more data before it can emit a picture. The
	// returned picture is valid until the next call of Decode.
	Decode(ctx context.Context, data []byte, hint DegradeHint) (*picture.Picture, error)

	Params() Params
	Close(ctx context.Context) error
}

type Input struct {
	Codec     Name
	Width     int
	Height    int
	ExtraData []byte
	Grayscale bool
	Options   map[string]string
}

type Factory interface {
	fmt.Stringer
	NewDecoder(ctx context.Context, input Input) (Decoder, error)
}
