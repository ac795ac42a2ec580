// Package webrtc feeds the video of a remote WebRTC track into a frame queue.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/source/rtpframer"
)

type Queue interface {
	rtpframer.Sink
	Close(ctx context.Context)
}

// CodecFor returns the decoder input and the depacketizer for a track codec.
func CodecFor(codec webrtc.RTPCodecParameters) (decoder.Input, rtp.Depacketizer, error) {
	switch strings.ToLower(codec.MimeType) {
	case strings.ToLower(webrtc.MimeTypeH264):
		return decoder.Input{Codec: decoder.NameH264}, &codecs.H264Packet{}, nil
	case strings.ToLower(webrtc.MimeTypeVP8):
		return decoder.Input{Codec: decoder.NameVP8}, &codecs.VP8Packet{}, nil
	default:
		return decoder.Input{}, nil, fmt.Errorf("unsupported codec '%s'", codec.MimeType)
	}
}

// ReadTrack pushes the packets of the track into the queue until the track
// ends or ctx is cancelled. The queue is closed on return.
func ReadTrack(
	ctx context.Context,
	track *webrtc.TrackRemote,
	queue Queue,
) (_err error) {
	logger.Debugf(ctx, "ReadTrack(%s)", track.ID())
	defer func() { logger.Debugf(ctx, "/ReadTrack(%s): %v", track.ID(), _err) }()

	_, depacketizer, err := CodecFor(track.Codec())
	if err != nil {
		queue.Close(ctx)
		return err
	}
	framer := rtpframer.New(queue, track.Codec().ClockRate)
	framer.Depacketizer = depacketizer
	return ReadPackets(ctx, func() (*rtp.Packet, error) {
		pkt, _, err := track.ReadRTP()
		return pkt, err
	}, framer, queue)
}

// ReadPackets drives the framer with the packets of read until io.EOF.
func ReadPackets(
	ctx context.Context,
	read func() (*rtp.Packet, error),
	framer *rtpframer.Framer,
	queue Queue,
) error {
	defer queue.Close(ctx)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		pkt, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return framer.Flush(ctx)
			}
			return fmt.Errorf("unable to read an RTP packet: %w", err)
		}
		if err := framer.Push(ctx, pkt); err != nil {
			return err
		}
	}
}
