package mjpeg

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/picture"
)

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 4), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	ctx := context.Background()
	d, err := Factory{}.NewDecoder(ctx, decoder.Input{Codec: decoder.NameMJPEG})
	require.NoError(t, err)
	defer d.Close(ctx)

	pic, err := d.Decode(ctx, encodeTestJPEG(t, 34, 20), decoder.DegradeFast)
	require.NoError(t, err)
	require.Equal(t, 34, pic.Width)
	require.Equal(t, 20, pic.Height)
	require.Equal(t, picture.LayoutI420, pic.Layout)
	require.Len(t, pic.Planes, 3)
	require.Equal(t, decoder.Params{Width: 34, Height: 20, Layout: picture.LayoutI420}, d.Params())

	_, err = d.Decode(ctx, []byte{1, 2, 3}, decoder.DegradeNone)
	require.Error(t, err)
}

func TestDecodeGrayscale(t *testing.T) {
	ctx := context.Background()
	d, err := Factory{}.NewDecoder(ctx, decoder.Input{Grayscale: true})
	require.NoError(t, err)

	pic, err := d.Decode(ctx, encodeTestJPEG(t, 16, 16), decoder.DegradeNone)
	require.NoError(t, err)
	require.Equal(t, picture.LayoutGray, pic.Layout)
	require.Len(t, pic.Planes, 1)
}

func TestFactoryRejectsOtherCodecs(t *testing.T) {
	_, err := Factory{}.NewDecoder(context.Background(), decoder.Input{Codec: decoder.NameH264})
	require.Error(t, err)
}
