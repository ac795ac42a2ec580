package avpresent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/internal"
	"github.com/xaionaro-go/avpresent/loadshed"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/pixconv"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/xcontext"
	"go.uber.org/multierr"
)

// Serve runs the worker until the end of the stream, Stop or ctx
// cancellation (all of which return nil unless the teardown fails), or until
// a resource failure (ErrResourceFatal).
func (p *Pipeline) Serve(ctx context.Context) (_err error) {
	if !p.serving.CompareAndSwap(false, true) {
		return ErrAlreadyServing
	}
	ctx = belt.WithField(ctx, "pipeline", string(p.Negotiator.Owner))
	logger.Debugf(ctx, "Serve")
	defer func() { logger.Debugf(ctx, "/Serve: %v", _err) }()
	defer func() {
		_err = multierr.Append(_err, p.Close(xcontext.DetachDone(ctx)))
	}()

	for {
		err := p.processFrame(ctx)
		switch {
		case err == nil:
		case errors.Is(err, framequeue.ErrClosed):
			logger.Debugf(ctx, "the stream has ended: %s", p.GetStats())
			return nil
		default:
			return err
		}
	}
}

func (p *Pipeline) processFrame(ctx context.Context) error {
	action := p.Policy.Decide()
	if action == loadshed.ActionSkip {
		p.counters.FramesSkipped.Inc()
		logger.Tracef(ctx, "skipping a frame, late count: %d", p.Policy.LateCount())
		return p.Assembler.Skip(ctx, p.stop)
	}

	frame, err := p.Assembler.Next(ctx, p.stop)
	if err != nil {
		return err
	}
	p.counters.FramesAssembled.Inc()

	hint := decoder.DegradeNone
	if action == loadshed.ActionDegrade {
		hint = decoder.DegradeFast
		p.counters.FramesDegraded.Inc()
	}

	decodeStart := p.Policy.Clock.Now()
	pic, err := p.Decoder.Decode(ctx, frame.Data, hint)
	p.decodeTime.Update(p.Policy.Clock.Since(decodeStart))
	pts, hasPTS := frame.PTS, frame.HasPTS
	frame.Release()
	if err != nil {
		errCount := p.counters.DecodeErrors.Inc()
		logger.Debugf(ctx, "unable to decode %s: %v", frame, err)
		if p.Config.MaxDecodeErrors > 0 && errCount >= p.Config.MaxDecodeErrors {
			return fmt.Errorf("%w: %d decode errors, the last one: %w", ErrResourceFatal, errCount, err)
		}
		return nil
	}
	if hasPTS {
		p.Policy.Observe(pts)
	}

	if pic == nil {
		p.counters.NoPicture.Inc()
		return nil
	}
	p.counters.FramesDecoded.Inc()
	return p.present(ctx, pic, pts)
}

func (p *Pipeline) present(
	ctx context.Context,
	pic *picture.Picture,
	pts time.Time,
) error {
	params := p.Decoder.Params()
	sinkLayout := pixconv.SinkLayout(params.Layout)
	target := sinkLayout
	if target == picture.LayoutUnknown {
		target = pixconv.CanonicalLayout
	}
	if !pixconv.CanConvert(pic.Layout, target) {
		p.counters.ConversionErrors.Inc()
		logger.Debugf(ctx, "unable to convert %s to %s", pic.Layout, target)
		return nil
	}

	surface, err := p.Negotiator.Ensure(ctx, params.Width, params.Height, params.AspectCode, sinkLayout)
	if err != nil {
		return p.sinkFailure(ctx, err)
	}

	buf, err := p.Negotiator.ObtainBuffer(ctx, p.stop)
	if err != nil {
		if errors.Is(err, sink.ErrStopped) || ctx.Err() != nil {
			return framequeue.ErrClosed
		}
		if errors.Is(err, sink.ErrSurfaceLost) {
			return p.sinkFailure(ctx, err)
		}
		p.sinkFailures.Store(0)
		p.counters.BufferTimeouts.Inc()
		logger.Debugf(ctx, "dropping a picture: %v", err)
		return nil
	}
	p.sinkFailures.Store(0)
	internal.Assertf(ctx, buf.Layout == target, "the surface gave a %s buffer, expected %s", buf.Layout, target)

	if err := pixconv.Convert(ctx, pic, buf); err != nil {
		surface.ReleaseBuffer(ctx, buf)
		p.counters.ConversionErrors.Inc()
		logger.Debugf(ctx, "unable to convert %s into %s: %v", pic, buf, err)
		return nil
	}

	if err := surface.Present(ctx, buf, pts); err != nil {
		p.counters.SinkErrors.Inc()
		logger.Warnf(ctx, "unable to present on %s: %v", surface, err)
		return nil
	}
	p.counters.FramesPresented.Inc()
	p.lastPTS.Store(pts)
	return nil
}

// sinkFailure counts a failure to get a working surface; too many of them in
// a row make the pipeline stop.
func (p *Pipeline) sinkFailure(ctx context.Context, err error) error {
	p.counters.SinkErrors.Inc()
	failures := p.sinkFailures.Inc()
	logger.Warnf(ctx, "unable to get a working surface (%d in a row): %v", failures, err)
	if p.Config.MaxSinkFailures > 0 && failures >= int64(p.Config.MaxSinkFailures) {
		return fmt.Errorf("%w: unable to get a working surface %d times in a row: %w", ErrResourceFatal, failures, err)
	}
	return nil
}
