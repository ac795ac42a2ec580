// Package rtpframer turns RTP packets into linked frame fragments.
package rtpframer

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/rtp"
	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/logger"
	"go.uber.org/atomic"
)

const (
	DefaultClockRate    = 90000
	DefaultMaxFrameSize = 4 << 20
)

type Sink interface {
	EnqueueFrame(ctx context.Context, fragments []*framequeue.Fragment) error
}

// Framer collects the payloads of the packets of one RTP timestamp and
// enqueues them as one frame when the marker bit is seen or the timestamp
// changes. A sequence gap drops the incomplete frame.
//
// Framer is not safe for concurrent use.
type Framer struct {
	Sink         Sink
	ClockRate    uint32
	MaxFrameSize int
	Clock        clock.Clock

	// Depacketizer extracts the codec payload; the raw RTP payload is used
	// if it is nil.
	Depacketizer rtp.Depacketizer

	FramesEnqueued atomic.Uint64
	FramesDropped  atomic.Uint64

	started  bool
	baseTime time.Time
	ticks    int64
	lastTS   uint32
	lastSeq  uint16

	pending     [][]byte
	pendingSize int
	pendingTS   uint32
	broken      bool
}

func New(sink Sink, clockRate uint32) *Framer {
	if clockRate == 0 {
		clockRate = DefaultClockRate
	}
	return &Framer{
		Sink:         sink,
		ClockRate:    clockRate,
		MaxFrameSize: DefaultMaxFrameSize,
		Clock:        clock.New(),
	}
}

func (f *Framer) Push(ctx context.Context, pkt *rtp.Packet) error {
	if !f.started {
		f.started = true
		f.baseTime = f.Clock.Now()
		f.lastTS = pkt.Timestamp
		f.pendingTS = pkt.Timestamp
	} else {
		gap := pkt.SequenceNumber != f.lastSeq+1
		if gap {
			logger.Debugf(ctx, "sequence gap: %d -> %d", f.lastSeq, pkt.SequenceNumber)
			f.broken = true
		}
		if pkt.Timestamp != f.pendingTS {
			if err := f.flush(ctx); err != nil {
				return err
			}
			f.pendingTS = pkt.Timestamp
			// the lost packets may have been the head of this frame
			f.broken = f.broken || gap
		}
	}
	f.lastSeq = pkt.SequenceNumber

	payload := pkt.Payload
	if f.Depacketizer != nil {
		var err error
		payload, err = f.Depacketizer.Unmarshal(pkt.Payload)
		if err != nil {
			logger.Debugf(ctx, "unable to depacketize: %v", err)
			f.broken = true
		}
	}
	if len(payload) > 0 {
		f.pendingSize += len(payload)
		if f.MaxFrameSize > 0 && f.pendingSize > f.MaxFrameSize {
			logger.Warnf(ctx, "frame size (%d) is too big (maximum is %d)", f.pendingSize, f.MaxFrameSize)
			f.broken = true
		}
		f.pending = append(f.pending, payload)
	}

	if pkt.Marker {
		return f.flush(ctx)
	}
	return nil
}

// Flush enqueues the pending incomplete frame, if any.
func (f *Framer) Flush(ctx context.Context) error {
	return f.flush(ctx)
}

func (f *Framer) flush(ctx context.Context) error {
	payloads, broken, ts := f.pending, f.broken, f.pendingTS
	f.pending = nil
	f.pendingSize = 0
	if len(payloads) == 0 {
		return nil
	}
	f.broken = false
	if broken {
		f.FramesDropped.Inc()
		return nil
	}

	f.ticks += int64(int32(ts - f.lastTS))
	f.lastTS = ts
	pts := f.baseTime.Add(time.Duration(f.ticks) * time.Second / time.Duration(f.ClockRate))

	if err := f.Sink.EnqueueFrame(ctx, framequeue.NewFrame(pts, payloads...)); err != nil {
		return fmt.Errorf("unable to enqueue a frame of %d fragments: %w", len(payloads), err)
	}
	f.FramesEnqueued.Inc()
	return nil
}
