// Package loadshed decides how much decoding work to do depending on how
// late the presented frames are.
package loadshed

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
)

type Action int

const (
	ActionDecode = Action(iota)
	ActionDegrade
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionDecode:
		return "decode"
	case ActionDegrade:
		return "degrade"
	case ActionSkip:
		return "skip"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

const (
	DefaultDegradeAbove = 4
	DefaultSkipAt       = 8
)

// Policy counts consecutively late frames and escalates from full decoding
// to degraded decoding to skipping. A single on-time frame resets the count,
// while every skip lowers it by one only.
type Policy struct {
	Enabled      bool
	DegradeAbove int
	SkipAt       int
	Clock        clock.Clock

	lateCount atomic.Int64
}

func New(enabled bool) *Policy {
	return &Policy{
		Enabled:      enabled,
		DegradeAbove: DefaultDegradeAbove,
		SkipAt:       DefaultSkipAt,
		Clock:        clock.New(),
	}
}

// Decide is called before each decode attempt.
func (p *Policy) Decide() Action {
	if !p.Enabled {
		return ActionDecode
	}
	late := p.lateCount.Load()
	switch {
	case late <= int64(p.DegradeAbove):
		return ActionDecode
	case late < int64(p.SkipAt):
		return ActionDegrade
	default:
		p.lateCount.Dec()
		return ActionSkip
	}
}

// Observe is called after each completed decode attempt with the
// presentation timestamp of the decoded frame.
func (p *Policy) Observe(pts time.Time) {
	if !pts.After(p.Clock.Now()) {
		p.lateCount.Inc()
		return
	}
	p.lateCount.Store(0)
}

func (p *Policy) LateCount() int64 {
	return p.lateCount.Load()
}

func (p *Policy) Reset() {
	p.lateCount.Store(0)
}
