// Package directory implements the process-wide registry of display surfaces.
package directory

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/xsync"
)

var ErrUnknownSurface = sink.ErrUnknownSurface

const RootOwner = sink.Owner("root")

type SurfaceFactory interface {
	NewSurface(ctx context.Context, format sink.Format) (sink.Surface, error)
}

type SurfaceFactoryFunc func(ctx context.Context, format sink.Format) (sink.Surface, error)

func (fn SurfaceFactoryFunc) NewSurface(ctx context.Context, format sink.Format) (sink.Surface, error) {
	return fn(ctx, format)
}

type entry struct {
	surface sink.Surface
	owners  map[sink.Owner]struct{}
}

type Directory struct {
	Factory SurfaceFactory

	locker  xsync.Mutex
	entries []*entry
}

var _ sink.Registry = (*Directory)(nil)

func New(factory SurfaceFactory) *Directory {
	return &Directory{
		Factory: factory,
	}
}

func (d *Directory) Root() sink.Owner {
	return RootOwner
}

func (d *Directory) Find(ctx context.Context, q sink.Query) sink.Surface {
	return xsync.DoA2R1(ctx, &d.locker, d.find, ctx, q)
}

func (d *Directory) find(ctx context.Context, q sink.Query) sink.Surface {
	switch q.Scope {
	case sink.ScopeChild:
		for _, e := range d.entries {
			if _, ok := e.owners[q.Owner]; ok {
				return e.surface
			}
		}
	case sink.ScopeAnywhere:
		for _, e := range d.entries {
			if e.surface.Format().Equal(q.Format) {
				return e.surface
			}
		}
		for _, e := range d.entries {
			if _, ok := e.owners[RootOwner]; ok {
				return e.surface
			}
		}
	default:
		logger.Errorf(ctx, "unexpected scope: %s", q.Scope)
	}
	return nil
}

func (d *Directory) Create(ctx context.Context, format sink.Format) (_ret sink.Surface, _err error) {
	logger.Debugf(ctx, "Create(%s)", format)
	defer func() { logger.Debugf(ctx, "/Create(%s): %v %v", format, _ret, _err) }()
	if d.Factory == nil {
		return nil, fmt.Errorf("no surface factory is set")
	}
	s, err := d.Factory.NewSurface(ctx, format)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize a surface: %w", err)
	}
	d.locker.Do(ctx, func() {
		d.entries = append(d.entries, &entry{
			surface: s,
			owners:  map[sink.Owner]struct{}{},
		})
	})
	return s, nil
}

func (d *Directory) Destroy(ctx context.Context, s sink.Surface) (_err error) {
	logger.Debugf(ctx, "Destroy(%s)", s)
	defer func() { logger.Debugf(ctx, "/Destroy(%s): %v", s, _err) }()
	found := false
	d.locker.Do(ctx, func() {
		for idx, e := range d.entries {
			if e.surface == s {
				d.entries = append(d.entries[:idx], d.entries[idx+1:]...)
				found = true
				return
			}
		}
	})
	if !found {
		return ErrUnknownSurface
	}
	return s.Close(ctx)
}

func (d *Directory) Attach(ctx context.Context, s sink.Surface, owner sink.Owner) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		e := d.lookup(s)
		if e == nil {
			return ErrUnknownSurface
		}
		e.owners[owner] = struct{}{}
		return nil
	})
}

func (d *Directory) Detach(ctx context.Context, s sink.Surface, owner sink.Owner) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		e := d.lookup(s)
		if e == nil {
			return ErrUnknownSurface
		}
		delete(e.owners, owner)
		return nil
	})
}

func (d *Directory) DetachAll(ctx context.Context, s sink.Surface) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		e := d.lookup(s)
		if e == nil {
			return ErrUnknownSurface
		}
		clear(e.owners)
		return nil
	})
}

// Owners returns the owners the surface is attached to.
func (d *Directory) Owners(ctx context.Context, s sink.Surface) []sink.Owner {
	return xsync.DoR1(ctx, &d.locker, func() []sink.Owner {
		e := d.lookup(s)
		if e == nil {
			return nil
		}
		result := make([]sink.Owner, 0, len(e.owners))
		for owner := range e.owners {
			result = append(result, owner)
		}
		return result
	})
}

// Surfaces returns all the registered surfaces.
func (d *Directory) Surfaces(ctx context.Context) []sink.Surface {
	return xsync.DoR1(ctx, &d.locker, func() []sink.Surface {
		result := make([]sink.Surface, 0, len(d.entries))
		for _, e := range d.entries {
			result = append(result, e.surface)
		}
		return result
	})
}

func (d *Directory) lookup(s sink.Surface) *entry {
	for _, e := range d.entries {
		if e.surface == s {
			return e
		}
	}
	return nil
}
