// Package memsurface implements a display surface that keeps its pictures
// in memory.
package memsurface

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

const (
	DefaultBuffers = 3
	StrideAlign    = 16
)

type PresentFunc func(ctx context.Context, pic *picture.Picture, pts time.Time) error

// Surface owns a fixed set of picture buffers. The last presented buffer
// stays on screen, so it is not handed out until another one replaces it.
type Surface struct {
	OnPresent PresentFunc

	Presented atomic.Uint64

	format  sink.Format
	locker  xsync.Mutex
	free    []*picture.Picture
	inUse   map[*picture.Picture]struct{}
	front   *picture.Picture
	frontTS time.Time
	closed  bool
}

var _ sink.Surface = (*Surface)(nil)

func New(format sink.Format, numBuffers int) (*Surface, error) {
	if numBuffers < 2 {
		numBuffers = DefaultBuffers
	}
	s := &Surface{
		format: format,
		inUse:  map[*picture.Picture]struct{}{},
	}
	for range numBuffers {
		pic, err := picture.Alloc(format.Layout, format.Width, format.Height, StrideAlign)
		if err != nil {
			return nil, fmt.Errorf("unable to allocate a picture buffer of %s: %w", format, err)
		}
		s.free = append(s.free, pic)
	}
	return s, nil
}

// Factory allocates memory surfaces for a surface directory.
type Factory struct {
	Buffers int
}

func (f Factory) NewSurface(ctx context.Context, format sink.Format) (sink.Surface, error) {
	return New(format, f.Buffers)
}

func (s *Surface) String() string {
	return fmt.Sprintf("MemSurface(%s)", s.format)
}

func (s *Surface) Format() sink.Format {
	return s.format
}

func (s *Surface) ObtainBuffer(ctx context.Context) (*picture.Picture, error) {
	return xsync.DoA1R2(xsync.WithNoLogging(ctx, true), &s.locker, s.obtainBuffer, ctx)
}

func (s *Surface) obtainBuffer(ctx context.Context) (*picture.Picture, error) {
	if s.closed {
		return nil, fmt.Errorf("%s is closed", s)
	}
	if len(s.free) == 0 {
		return nil, sink.ErrNoBuffer
	}
	pic := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.inUse[pic] = struct{}{}
	return pic, nil
}

func (s *Surface) ReleaseBuffer(ctx context.Context, buf *picture.Picture) {
	s.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if _, ok := s.inUse[buf]; !ok {
			logger.Warnf(ctx, "releasing a buffer that does not belong to %s", s)
			return
		}
		delete(s.inUse, buf)
		s.free = append(s.free, buf)
	})
}

func (s *Surface) Present(
	ctx context.Context,
	buf *picture.Picture,
	pts time.Time,
) error {
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.locker, func() error {
		if _, ok := s.inUse[buf]; !ok {
			return fmt.Errorf("the buffer does not belong to %s", s)
		}
		delete(s.inUse, buf)
		if s.front != nil {
			s.free = append(s.free, s.front)
		}
		s.front = buf
		s.frontTS = pts
		return nil
	})
	if err != nil {
		return err
	}
	s.Presented.Inc()
	if s.OnPresent != nil {
		return s.OnPresent(ctx, buf, pts)
	}
	return nil
}

// LastPresented returns the picture currently on screen. It must not be
// modified.
func (s *Surface) LastPresented(ctx context.Context) (*picture.Picture, time.Time) {
	var (
		pic *picture.Picture
		pts time.Time
	)
	s.locker.Do(ctx, func() {
		pic, pts = s.front, s.frontTS
	})
	return pic, pts
}

// FreeBuffers returns the amount of buffers ObtainBuffer may return.
func (s *Surface) FreeBuffers(ctx context.Context) int {
	return xsync.DoR1(ctx, &s.locker, func() int {
		return len(s.free)
	})
}

func (s *Surface) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close: %s", s)
	s.locker.Do(ctx, func() {
		s.closed = true
		s.free = nil
		s.inUse = map[*picture.Picture]struct{}{}
	})
	return nil
}
