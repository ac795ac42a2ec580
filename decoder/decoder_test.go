package decoder

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpresent/picture"
)

func TestParseBitmapInfoHeader(t *testing.T) {
	b := make([]byte, 44)
	le := binary.LittleEndian
	le.PutUint32(b[0:], 44)
	le.PutUint32(b[4:], 352)
	le.PutUint32(b[8:], uint32(0xFFFFFFFF-288+1)) // -288: top-down
	le.PutUint16(b[12:], 1)
	le.PutUint16(b[14:], 24)
	copy(b[16:], "XVID")
	copy(b[40:], []byte{0xde, 0xad, 0xbe, 0xef})

	h, err := ParseBitmapInfoHeader(b)
	require.NoError(t, err)
	require.Equal(t, int32(352), h.Width)
	require.Equal(t, int32(-288), h.Height)
	require.Equal(t, [4]byte{'X', 'V', 'I', 'D'}, h.Compression)
	require.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, h.ExtraData)

	var in Input
	in.ApplyBitmapInfoHeader(h)
	require.Equal(t, NameMPEG4, in.Codec)
	require.Equal(t, 352, in.Width)
	require.Equal(t, 288, in.Height)
	require.Equal(t, h.ExtraData, in.ExtraData)

	_, err = ParseBitmapInfoHeader(b[:20])
	require.Error(t, err)

	le.PutUint32(b[0:], 100)
	_, err = ParseBitmapInfoHeader(b)
	require.Error(t, err)
}

func TestCodecFromFourCC(t *testing.T) {
	name, ok := CodecFromFourCC("DIV3")
	require.True(t, ok)
	require.Equal(t, NameMSMPEG4V3, name)
	_, ok = CodecFromFourCC("ZZZZ")
	require.False(t, ok)
	require.Equal(t, NameH264, Name(" H264 ").Canonical())
}

type dummyDecoder struct{ name string }

func (d *dummyDecoder) String() string { return d.name }
func (d *dummyDecoder) Decode(context.Context, []byte, DegradeHint) (*picture.Picture, error) {
	return nil, nil
}
func (d *dummyDecoder) Params() Params              { return Params{} }
func (d *dummyDecoder) Close(context.Context) error { return nil }

type dummyFactory struct{ name string }

func (f dummyFactory) String() string { return f.name }
func (f dummyFactory) NewDecoder(context.Context, Input) (Decoder, error) {
	return &dummyDecoder{name: f.name}, nil
}

func TestFactories(t *testing.T) {
	ctx := context.Background()
	f := &Factories{
		ByCodec: map[Name]Factory{NameMJPEG: dummyFactory{"mjpeg"}},
	}
	d, err := f.NewDecoder(ctx, Input{Codec: "MJPEG"})
	require.NoError(t, err)
	require.Equal(t, "mjpeg", d.String())

	_, err = f.NewDecoder(ctx, Input{Codec: NameH264})
	require.Error(t, err)

	f.Default = dummyFactory{"libav"}
	d, err = f.NewDecoder(ctx, Input{Codec: NameH264})
	require.NoError(t, err)
	require.Equal(t, "libav", d.String())
}
