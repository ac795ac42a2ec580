// Package avpresent decodes a compressed video stream and presents it on a
// display surface, shedding work when the decoder falls behind.
package avpresent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/avpresent/assembler"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/framequeue"
	"github.com/xaionaro-go/avpresent/helpers/stopflag"
	"github.com/xaionaro-go/avpresent/indicator"
	"github.com/xaionaro-go/avpresent/loadshed"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/sink"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

const decodeTimeWindow = 32

var nextPipelineID atomic.Uint64

// Pipeline is the single worker of one stream: it drains the queue, decodes,
// converts and presents every frame in order.
type Pipeline struct {
	Config     Config
	Queue      *framequeue.Queue
	Assembler  *assembler.Assembler
	Policy     *loadshed.Policy
	Decoder    decoder.Decoder
	Negotiator *sink.Negotiator

	counters     counters
	decodeTime   *indicator.DurationAverage
	lastPTS      xatomic.Value[time.Time]
	sinkFailures atomic.Int64
	stop         *stopflag.Flag
	serving      atomic.Bool
	closeOnce    sync.Once
	closeErr     error
}

// New initializes the decoder and prepares the pipeline. A decoder that
// cannot be initialized yields an ErrResourceFatal error.
func New(
	ctx context.Context,
	cfg Config,
	queue *framequeue.Queue,
	decoderFactory decoder.Factory,
	registry sink.Registry,
	opts ...Option,
) (_ret *Pipeline, _err error) {
	logger.Debugf(ctx, "New(%s)", cfg.Codec)
	defer func() { logger.Debugf(ctx, "/New(%s): %v", cfg.Codec, _err) }()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg = cfg.normalized()
	if logger.TraceEnabled {
		logger.Tracef(ctx, "config: %s", spew.Sdump(cfg))
	}
	o := Options(opts).config()

	input := decoder.Input{}
	if o.DecoderInput != nil {
		input = *o.DecoderInput
	}
	input.Codec = decoder.Name(cfg.Codec).Canonical()
	input.Grayscale = cfg.GrayscaleOnly
	if len(cfg.CodecOptions) > 0 {
		input.Options = cfg.CodecOptions
	}

	dec, err := decoderFactory.NewDecoder(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to initialize the decoder '%s' using %s: %w", ErrResourceFatal, input.Codec, decoderFactory, err)
	}

	if queue == nil {
		queue = framequeue.New(cfg.QueueSize)
	}

	owner := o.Owner
	if owner == "" {
		owner = sink.Owner(fmt.Sprintf("pipeline-%d", nextPipelineID.Inc()))
	}

	policy := loadshed.New(cfg.DegradeUnderLoad)
	policy.DegradeAbove = cfg.LateDegradeAbove
	policy.SkipAt = cfg.LateSkipAt
	policy.Clock = o.Clock

	negotiator := sink.NewNegotiator(registry, owner)
	negotiator.Clock = o.Clock
	negotiator.BufferRetryInterval = cfg.BufferRetryInterval
	negotiator.BufferRetryLimit = cfg.BufferRetryLimit

	return &Pipeline{
		Config:     cfg,
		Queue:      queue,
		Assembler:  assembler.New(queue),
		Policy:     policy,
		Decoder:    dec,
		Negotiator: negotiator,
		decodeTime: indicator.NewDurationAverage(decodeTimeWindow),
		stop:       stopflag.New(),
	}, nil
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("Pipeline(%s, %s)", p.Negotiator.Owner, p.Decoder)
}

// Stop asks the worker to finish. It returns immediately.
func (p *Pipeline) Stop(ctx context.Context) {
	p.stop.Raise(ctx)
}

// Close releases the surface to the root owner and closes the decoder.
// Serve calls it on return.
func (p *Pipeline) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		logger.Debugf(ctx, "closing %s", p)
		p.closeErr = multierr.Combine(
			p.Negotiator.Release(ctx),
			p.Decoder.Close(ctx),
		)
	})
	return p.closeErr
}
