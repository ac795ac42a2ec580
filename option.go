package avpresent

import (
	"github.com/benbjohnson/clock"
	"github.com/xaionaro-go/avpresent/decoder"
	"github.com/xaionaro-go/avpresent/sink"
)

type options struct {
	Clock        clock.Clock
	Owner        sink.Owner
	DecoderInput *decoder.Input
}

type Option interface {
	apply(*options)
}

type Options []Option

func (s Options) apply(cfg *options) {
	for _, opt := range s {
		opt.apply(cfg)
	}
}

func (s Options) config() options {
	cfg := options{
		Clock: clock.New(),
	}
	s.apply(&cfg)
	return cfg
}

// OptionClock sets the clock lateness is measured against.
type OptionClock struct{ clock.Clock }

func (opt OptionClock) apply(cfg *options) {
	cfg.Clock = opt.Clock
}

// OptionOwner sets the identity the pipeline attaches surfaces with.
type OptionOwner sink.Owner

func (opt OptionOwner) apply(cfg *options) {
	cfg.Owner = sink.Owner(opt)
}

// OptionDecoderInput provides the stream parameters known to the
// demultiplexer (geometry, extradata); the codec and the options of the
// Config take precedence.
type OptionDecoderInput decoder.Input

func (opt OptionDecoderInput) apply(cfg *options) {
	input := decoder.Input(opt)
	cfg.DecoderInput = &input
}
