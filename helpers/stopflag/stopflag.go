// Package stopflag provides the cooperative stop signal polled by pipeline workers.
package stopflag

import (
	"context"
	"sync"

	"github.com/xaionaro-go/avpresent/logger"
)

// Flag is raised once and never lowered. The zero value is not usable, see New.
type Flag struct {
	once sync.Once
	c    chan struct{}
}

func New() *Flag {
	return &Flag{
		c: make(chan struct{}),
	}
}

// Chan is closed when the flag is raised.
func (f *Flag) Chan() <-chan struct{} {
	if f == nil {
		return nil
	}
	return f.c
}

func (f *Flag) Raise(ctx context.Context) {
	logger.Debugf(ctx, "Raise")
	defer func() { logger.Debugf(ctx, "/Raise") }()
	f.once.Do(func() {
		close(f.c)
	})
}

// IsRaised is safe to call on a nil flag, which is never raised.
func (f *Flag) IsRaised() bool {
	if f == nil {
		return false
	}
	select {
	case <-f.c:
		return true
	default:
		return false
	}
}
