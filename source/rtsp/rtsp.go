// Package rtsp pulls a video stream from an RTSP server into a frame queue.
package rtsp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/description"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtph264"
	"github.com/bluenviron/gortsplib/v4/pkg/format/rtpmjpeg"
	"github.com/bluenviron/mediacommon/pkg/codecs/h264"
	"github.com/pion/rtp"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/observability"
	"go.uber.org/atomic"
)

type Queue interface {
	EnqueueFrame(ctx context.Context, fragments []*framequeue.Fragment) error
	Close(ctx context.Context)
}

// Source reads the first H264 or MJPEG video media of an RTSP stream.
type Source struct {
	URL   string
	Queue Queue
	Clock clock.Clock

	FramesEnqueued atomic.Uint64
	PacketsLost    atomic.Uint64

	client     *gortsplib.Client
	input      decoder.Input
	media      *description.Media
	forma      format.Format
	baseTime   time.Time
	waitingIDR bool
}

func New(url string, queue Queue) *Source {
	return &Source{
		URL:   url,
		Queue: queue,
		Clock: clock.New(),
	}
}

func (s *Source) String() string {
	return fmt.Sprintf("RTSP(%s)", s.URL)
}

// Open connects to the server and selects the video media. The returned
// decoder input describes the selected codec.
func (s *Source) Open(ctx context.Context) (_ret decoder.Input, _err error) {
	logger.Debugf(ctx, "Open(%s)", s.URL)
	defer func() { logger.Debugf(ctx, "/Open(%s): %v %v", s.URL, _ret.Codec, _err) }()

	u, err := base.ParseURL(s.URL)
	if err != nil {
		return decoder.Input{}, fmt.Errorf("unable to parse the URL '%s': %w", s.URL, err)
	}

	c := &gortsplib.Client{
		OnPacketLost: func(err error) {
			s.PacketsLost.Inc()
			logger.Debugf(ctx, "packet lost: %v", err)
		},
	}
	if err := c.Start(u.Scheme, u.Host); err != nil {
		return decoder.Input{}, fmt.Errorf("unable to connect to '%s': %w", u.Host, err)
	}

	desc, _, err := c.Describe(u)
	if err != nil {
		c.Close()
		return decoder.Input{}, fmt.Errorf("unable to describe '%s': %w", s.URL, err)
	}

	if err := s.selectMedia(ctx, desc); err != nil {
		c.Close()
		return decoder.Input{}, err
	}

	if _, err := c.Setup(desc.BaseURL, s.media, 0, 0); err != nil {
		c.Close()
		return decoder.Input{}, fmt.Errorf("unable to setup the media: %w", err)
	}
	s.client = c
	return s.input, nil
}

func (s *Source) selectMedia(ctx context.Context, desc *description.Session) error {
	var h264Format *format.H264
	if media := desc.FindFormat(&h264Format); media != nil {
		s.media, s.forma = media, h264Format
		s.input = decoder.Input{Codec: decoder.NameH264}
		sps, pps := h264Format.SafeParams()
		if sps != nil && pps != nil {
			extraData, err := h264.AnnexBMarshal([][]byte{sps, pps})
			if err != nil {
				return fmt.Errorf("unable to marshal SPS/PPS: %w", err)
			}
			s.input.ExtraData = extraData
		}
		s.waitingIDR = true
		return nil
	}

	var mjpegFormat *format.MJPEG
	if media := desc.FindFormat(&mjpegFormat); media != nil {
		s.media, s.forma = media, mjpegFormat
		s.input = decoder.Input{Codec: decoder.NameMJPEG}
		return nil
	}

	return fmt.Errorf("no H264 or MJPEG media found in '%s'", s.URL)
}

// Serve plays the stream until the session ends or ctx is cancelled. The
// queue is closed on return.
func (s *Source) Serve(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Serve(%s)", s.URL)
	defer func() { logger.Debugf(ctx, "/Serve(%s): %v", s.URL, _err) }()
	defer s.Queue.Close(ctx)

	if s.client == nil {
		return fmt.Errorf("not opened")
	}
	defer s.client.Close()

	onPacket, err := s.packetHandler(ctx)
	if err != nil {
		return err
	}
	s.client.OnPacketRTP(s.media, s.forma, onPacket)

	s.baseTime = s.Clock.Now()
	if _, err := s.client.Play(nil); err != nil {
		return fmt.Errorf("unable to start playing: %w", err)
	}

	ctx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()
	observability.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		s.client.Close()
	})

	err = s.client.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Source) packetHandler(ctx context.Context) (func(*rtp.Packet), error) {
	switch forma := s.forma.(type) {
	case *format.H264:
		dec, err := forma.CreateDecoder()
		if err != nil {
			return nil, fmt.Errorf("unable to create the H264 RTP decoder: %w", err)
		}
		return func(pkt *rtp.Packet) {
			au, err := dec.Decode(pkt)
			switch {
			case err == nil:
			case errors.Is(err, rtph264.ErrMorePacketsNeeded),
				errors.Is(err, rtph264.ErrNonStartingPacketAndNoPrevious):
				return
			default:
				logger.Debugf(ctx, "unable to decode an H264 RTP packet: %v", err)
				return
			}
			s.onAccessUnit(ctx, pkt, au)
		}, nil
	case *format.MJPEG:
		dec, err := forma.CreateDecoder()
		if err != nil {
			return nil, fmt.Errorf("unable to create the MJPEG RTP decoder: %w", err)
		}
		return func(pkt *rtp.Packet) {
			jpegFrame, err := dec.Decode(pkt)
			switch {
			case err == nil:
			case errors.Is(err, rtpmjpeg.ErrMorePacketsNeeded):
				return
			default:
				logger.Debugf(ctx, "unable to decode an MJPEG RTP packet: %v", err)
				return
			}
			s.enqueue(ctx, pkt, jpegFrame)
		}, nil
	default:
		return nil, fmt.Errorf("unexpected format %T", s.forma)
	}
}

func (s *Source) onAccessUnit(ctx context.Context, pkt *rtp.Packet, au [][]byte) {
	if s.waitingIDR {
		if !h264.IDRPresent(au) {
			logger.Tracef(ctx, "waiting for an IDR")
			return
		}
		s.waitingIDR = false
	}
	payloads, err := AnnexBFragments(au)
	if err != nil {
		logger.Debugf(ctx, "unable to marshal an access unit: %v", err)
		return
	}
	s.enqueue(ctx, pkt, payloads...)
}

func (s *Source) enqueue(ctx context.Context, pkt *rtp.Packet, payloads ...[]byte) {
	pts, ok := s.client.PacketPTS(s.media, pkt)
	if !ok {
		logger.Tracef(ctx, "no PTS yet")
		return
	}
	err := s.Queue.EnqueueFrame(ctx, framequeue.NewFrame(s.baseTime.Add(pts), payloads...))
	if err != nil {
		logger.Debugf(ctx, "unable to enqueue a frame: %v", err)
		return
	}
	s.FramesEnqueued.Inc()
}

// AnnexBFragments marshals each NAL unit of the access unit separately, so
// that every unit becomes its own fragment of the frame.
func AnnexBFragments(au [][]byte) ([][]byte, error) {
	result := make([][]byte, 0, len(au))
	for _, nalu := range au {
		b, err := h264.AnnexBMarshal([][]byte{nalu})
		if err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, nil
}
