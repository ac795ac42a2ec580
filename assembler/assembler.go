// Package assembler reassembles compressed frames out of queued fragments.
package assembler

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/helpers/stopflag"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/pool"
	"go.uber.org/atomic"
)

// Frame is one contiguous compressed frame ready to be decoded.
type Frame struct {
	Data   []byte
	PTS    time.Time
	HasPTS bool
	Size   int

	pool *pool.Bytes
}

// Release returns the buffer to the pool if it was allocated by the
// assembler. Data must not be used afterwards.
func (f *Frame) Release() {
	if f == nil || f.pool == nil {
		return
	}
	f.pool.Put(f.Data)
	f.Data = nil
	f.pool = nil
}

// IsCopy reports whether Data was gathered into a separate buffer.
func (f *Frame) IsCopy() bool {
	return f.pool != nil
}

func (f *Frame) String() string {
	return fmt.Sprintf("Frame(%d bytes, pts:%v)", f.Size, f.PTS)
}

type Source interface {
	Dequeue(ctx context.Context, stop *stopflag.Flag) (*framequeue.Fragment, error)
}

type Assembler struct {
	Source Source
	Pool   *pool.Bytes

	FramesEmpty   atomic.Uint64
	FramesCopied  atomic.Uint64
	FramesAliased atomic.Uint64
}

func New(src Source) *Assembler {
	return &Assembler{
		Source: src,
		Pool:   pool.NewBytes(16 << 20),
	}
}

// Next returns the next non-empty frame. The only error it returns is the
// one of the source, normally framequeue.ErrClosed.
func (a *Assembler) Next(
	ctx context.Context,
	stop *stopflag.Flag,
) (*Frame, error) {
	for {
		fragments, err := a.pullChain(ctx, stop)
		if err != nil {
			return nil, err
		}
		head := fragments[0]
		payloadSize := 0
		for _, f := range fragments {
			payloadSize += f.Len()
		}
		if head.FrameSize <= 0 || payloadSize == 0 {
			a.FramesEmpty.Inc()
			logger.Debugf(ctx, "skipping an empty frame (declared size %d, %d fragments with %d bytes)", head.FrameSize, len(fragments), payloadSize)
			continue
		}

		frame := &Frame{
			PTS:    head.PTS,
			HasPTS: head.HasPTS,
		}
		if len(fragments) == 1 {
			a.FramesAliased.Inc()
			frame.Data = head.Payload()
			frame.Size = len(frame.Data)
			return frame, nil
		}

		a.FramesCopied.Inc()
		buf := a.Pool.Get(min(head.FrameSize, payloadSize))
		n := 0
		for _, f := range fragments {
			if n >= len(buf) {
				logger.Warnf(ctx, "the fragments exceed the declared frame size %d, truncating", head.FrameSize)
				break
			}
			n += copy(buf[n:], f.Payload())
		}
		frame.Data = buf[:n]
		frame.Size = n
		frame.pool = a.Pool
		return frame, nil
	}
}

// Skip discards the next frame as a whole.
func (a *Assembler) Skip(
	ctx context.Context,
	stop *stopflag.Flag,
) error {
	fragments, err := a.pullChain(ctx, stop)
	if err != nil {
		return err
	}
	logger.Tracef(ctx, "skipped a frame of %d fragments", len(fragments))
	return nil
}

func (a *Assembler) pullChain(
	ctx context.Context,
	stop *stopflag.Flag,
) ([]*framequeue.Fragment, error) {
	var fragments []*framequeue.Fragment
	for {
		f, err := a.Source.Dequeue(ctx, stop)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, f)
		if !f.More {
			return fragments, nil
		}
	}
}
