// Package libav drives ffmpeg decoders through go-astiav.
package libav

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/xsync"
)

type Factory struct{}

var _ decoder.Factory = Factory{}

func (Factory) String() string {
	return "libav"
}

func (Factory) NewDecoder(
	ctx context.Context,
	input decoder.Input,
) (_ret decoder.Decoder, _err error) {
	logger.Debugf(ctx, "NewDecoder(%s)", input.Codec)
	defer func() { logger.Debugf(ctx, "/NewDecoder(%s): %v", input.Codec, _err) }()

	codec := astiav.FindDecoderByName(string(input.Codec.Canonical()))
	if codec == nil {
		return nil, fmt.Errorf("decoder '%s' not found", input.Codec)
	}

	codecContext := astiav.AllocCodecContext(codec)
	if codecContext == nil {
		return nil, fmt.Errorf("unable to allocate a codec context for '%s'", input.Codec)
	}
	if input.Width > 0 && input.Height > 0 {
		codecContext.SetWidth(input.Width)
		codecContext.SetHeight(input.Height)
	}
	if len(input.ExtraData) > 0 {
		codecContext.SetExtraData(input.ExtraData)
	}
	if input.Grayscale {
		codecContext.SetFlags(codecContext.Flags() | astiav.CodecContextFlags(astiav.CodecContextFlagGray))
	}

	var options *astiav.Dictionary
	if len(input.Options) > 0 {
		options = astiav.NewDictionary()
		defer options.Free()
		for k, v := range input.Options {
			logger.Tracef(ctx, "setting codec option: %s=%s", k, v)
			options.Set(k, v, 0)
		}
	}

	closer := astikit.NewCloser()
	closer.Add(codecContext.Free)
	if err := codecContext.Open(codec, options); err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("unable to open the codec context of '%s': %w", input.Codec, err)
	}

	d := &Decoder{
		closer:       closer,
		codec:        codec,
		codecContext: codecContext,
		packet:       astiav.AllocPacket(),
		frame:        astiav.AllocFrame(),
		params: decoder.Params{
			Width:  input.Width,
			Height: input.Height,
		},
	}
	closer.Add(d.packet.Free)
	closer.Add(d.frame.Free)
	runtime.SetFinalizer(d, func(d *Decoder) {
		_ = d.free()
	})
	return d, nil
}

type Decoder struct {
	locker       xsync.Mutex
	closer       *astikit.Closer
	codec        *astiav.Codec
	codecContext *astiav.CodecContext
	packet       *astiav.Packet
	frame        *astiav.Frame
	frameData    []byte
	degraded     bool
	params       decoder.Params
}

var _ decoder.Decoder = (*Decoder)(nil)

func (d *Decoder) String() string {
	return fmt.Sprintf("libav(%s)", d.codec.Name())
}

func (d *Decoder) Decode(
	ctx context.Context,
	data []byte,
	hint decoder.DegradeHint,
) (*picture.Picture, error) {
	return xsync.DoA3R2(xsync.WithNoLogging(ctx, true), &d.locker, d.decode, ctx, data, hint)
}

func (d *Decoder) decode(
	ctx context.Context,
	data []byte,
	hint decoder.DegradeHint,
) (_ret *picture.Picture, _err error) {
	logger.Tracef(ctx, "decode(%d bytes, %s)", len(data), hint)
	defer func() { logger.Tracef(ctx, "/decode: %v %v", _ret, _err) }()
	if d.codecContext == nil {
		return nil, fmt.Errorf("the decoder is closed")
	}

	d.setDegraded(ctx, hint == decoder.DegradeFast)

	d.packet.Unref()
	if err := d.packet.FromData(data); err != nil {
		return nil, fmt.Errorf("unable to wrap the data into a packet: %w", err)
	}
	if err := d.codecContext.SendPacket(d.packet); err != nil && !errors.Is(err, astiav.ErrEagain) {
		return nil, fmt.Errorf("unable to send the packet to the decoder: %w", err)
	}

	d.frame.Unref()
	if err := d.codecContext.ReceiveFrame(d.frame); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to receive a frame from the decoder: %w", err)
	}

	layout := layoutFromPixelFormat(d.frame.PixelFormat())
	d.params = decoder.Params{
		Width:      d.frame.Width(),
		Height:     d.frame.Height(),
		Layout:     layout,
		AspectCode: aspectCode(d.frame.Width(), d.frame.Height(), d.frame.SampleAspectRatio()),
	}
	if layout == picture.LayoutUnknown {
		// the picture is still reported, so the pipeline drops it as an
		// unconvertible one
		logger.Debugf(ctx, "pixel format %s is not supported", d.frame.PixelFormat())
		return splitPlanes(nil, layout, d.params)
	}

	// align 1 gives tightly packed planes one after another
	buf, err := d.frame.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("unable to copy the frame data: %w", err)
	}
	d.frameData = buf
	return splitPlanes(buf, layout, d.params)
}

func (d *Decoder) setDegraded(ctx context.Context, v bool) {
	if d.degraded == v {
		return
	}
	logger.Debugf(ctx, "degraded decoding: %t", v)
	flags2 := d.codecContext.Flags2()
	if v {
		flags2 |= astiav.CodecContextFlags2(astiav.CodecFlag2Fast)
	} else {
		flags2 &^= astiav.CodecContextFlags2(astiav.CodecFlag2Fast)
	}
	d.codecContext.SetFlags2(flags2)
	d.degraded = v
}

func splitPlanes(
	buf []byte,
	layout picture.Layout,
	params decoder.Params,
) (*picture.Picture, error) {
	pic := &picture.Picture{
		Layout:     layout,
		Width:      params.Width,
		Height:     params.Height,
		AspectCode: params.AspectCode,
		Planes:     make([]picture.Plane, layout.NumPlanes()),
	}
	offset := 0
	for i := range pic.Planes {
		rowBytes, lines := layout.PlaneGeometry(i, params.Width, params.Height)
		size := rowBytes * lines
		if offset+size > len(buf) {
			return nil, fmt.Errorf("the frame buffer is too short for plane #%d: %d < %d", i, len(buf), offset+size)
		}
		pic.Planes[i] = picture.Plane{
			Data:   buf[offset : offset+size],
			Stride: rowBytes,
			Lines:  lines,
		}
		offset += size
	}
	return pic, nil
}

func layoutFromPixelFormat(pixFmt astiav.PixelFormat) picture.Layout {
	switch pixFmt {
	case astiav.PixelFormatYuv420P, astiav.PixelFormatYuvj420P:
		return picture.LayoutI420
	case astiav.PixelFormatYuv422P, astiav.PixelFormatYuvj422P:
		return picture.LayoutI422
	case astiav.PixelFormatYuv444P, astiav.PixelFormatYuvj444P:
		return picture.LayoutI444
	case astiav.PixelFormatYuv410P:
		return picture.LayoutI410
	case astiav.PixelFormatRgb24:
		return picture.LayoutRV24
	case astiav.PixelFormatGray8:
		return picture.LayoutGray
	case astiav.PixelFormatNv12:
		return picture.LayoutNV12
	default:
		return picture.LayoutUnknown
	}
}

func aspectCode(width, height int, sar astiav.Rational) picture.AspectCode {
	if width == 0 || height == 0 || sar.Num() == 0 || sar.Den() == 0 {
		return picture.AspectSquare
	}
	dar := float64(width*sar.Num()) / float64(height*sar.Den())
	switch {
	case math.Abs(dar-4.0/3.0) < 0.01 && width*3 != height*4:
		if height == 480 {
			return picture.Aspect4x3_525
		}
		return picture.Aspect4x3_625
	case math.Abs(dar-16.0/9.0) < 0.01:
		if height == 480 {
			return picture.Aspect16x9_525
		}
		return picture.Aspect16x9_625
	default:
		return picture.AspectSquare
	}
}

func (d *Decoder) Params() decoder.Params {
	return d.params
}

func (d *Decoder) Close(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Close")
	defer func() { logger.Debugf(ctx, "/Close: %v", _err) }()
	return xsync.DoR1(ctx, &d.locker, d.free)
}

func (d *Decoder) free() error {
	if d.closer == nil {
		return nil
	}
	err := d.closer.Close()
	d.closer = nil
	d.codecContext = nil
	d.packet = nil
	d.frame = nil
	d.frameData = nil
	if err != nil {
		return fmt.Errorf("unable to free the decoder resources: %w", err)
	}
	return nil
}
