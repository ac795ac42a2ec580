// Package mjpeg is a pure-Go Motion-JPEG decoder.
package mjpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/anthonynsimon/bild/effect"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
)

type Factory struct{}

var _ decoder.Factory = Factory{}

func (Factory) String() string {
	return "MJPEG"
}

func (Factory) NewDecoder(ctx context.Context, input decoder.Input) (decoder.Decoder, error) {
	if codec := input.Codec.Canonical(); codec != "" && codec != decoder.NameMJPEG {
		return nil, fmt.Errorf("codec '%s' is not supported by the MJPEG decoder", input.Codec)
	}
	return &Decoder{
		Grayscale: input.Grayscale,
		params: decoder.Params{
			Width:  input.Width,
			Height: input.Height,
		},
	}, nil
}

// Decoder is stateless apart from the geometry of the last picture: every
// JPEG is an intra frame.
type Decoder struct {
	Grayscale bool
	params    decoder.Params
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) String() string {
	return fmt.Sprintf("MJPEG(%s)", d.params)
}

func (d *Decoder) Decode(
	ctx context.Context,
	data []byte,
	hint decoder.DegradeHint,
) (_ret *picture.Picture, _err error) {
	logger.Tracef(ctx, "Decode(%d bytes, %s)", len(data), hint)
	defer func() { logger.Tracef(ctx, "/Decode: %v %v", _ret, _err) }()

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode JPEG: %w", err)
	}
	if d.Grayscale {
		img = toGray(img)
	}
	pic, err := picture.FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("unable to represent the decoded image: %w", err)
	}
	d.params = decoder.Params{
		Width:      pic.Width,
		Height:     pic.Height,
		Layout:     pic.Layout,
		AspectCode: picture.AspectSquare,
	}
	pic.AspectCode = picture.AspectSquare
	return pic, nil
}

func toGray(img image.Image) image.Image {
	switch img := img.(type) {
	case *image.Gray:
		return img
	case *image.YCbCr:
		b := img.Bounds()
		return &image.Gray{
			Pix:    img.Y[img.YOffset(b.Min.X, b.Min.Y):],
			Stride: img.YStride,
			Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
		}
	default:
		return effect.Grayscale(img)
	}
}

func (d *Decoder) Params() decoder.Params {
	return d.params
}

func (d *Decoder) Close(ctx context.Context) error {
	return nil
}
