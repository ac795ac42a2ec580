package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/xaionaro-go/avpresent/helpers/stopflag"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/pixconv"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

var (
	ErrInvalidGeometry = errors.New("invalid geometry")
	ErrNoSurface       = errors.New("no surface is bound")
	ErrBufferTimeout   = errors.New("timed out waiting for a picture buffer")
	ErrStopped         = errors.New("stopped")
	ErrSurfaceLost     = errors.New("the surface is lost")
)

const (
	DefaultBufferRetryInterval = 20 * time.Millisecond
	DefaultBufferRetryLimit    = 50
)

type State int

const (
	StateNone = State(iota)
	StateBound
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateBound:
		return "bound"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Negotiator keeps the surface of one pipeline across frames. It is not
// safe for concurrent use; it is driven by the pipeline worker only.
type Negotiator struct {
	Registry            Registry
	Owner               Owner
	Clock               clock.Clock
	BufferRetryInterval time.Duration
	BufferRetryLimit    int

	SurfacesCreated   atomic.Uint64
	SurfacesReused    atomic.Uint64
	SurfacesDestroyed atomic.Uint64
	BufferWaits       atomic.Uint64

	surface Surface
	state   State
}

func NewNegotiator(registry Registry, owner Owner) *Negotiator {
	return &Negotiator{
		Registry:            registry,
		Owner:               owner,
		Clock:               clock.New(),
		BufferRetryInterval: DefaultBufferRetryInterval,
		BufferRetryLimit:    DefaultBufferRetryLimit,
	}
}

func (n *Negotiator) State() State {
	return n.state
}

// Surface returns the bound surface or nil.
func (n *Negotiator) Surface() Surface {
	return n.surface
}

// Ensure returns the bound surface if it still fits the picture parameters,
// otherwise it releases it and acquires a fitting one.
func (n *Negotiator) Ensure(
	ctx context.Context,
	width, height int,
	aspectCode picture.AspectCode,
	layout picture.Layout,
) (Surface, error) {
	if n.surface != nil {
		want, err := requestedFormat(width, height, aspectCode, layout)
		if err != nil {
			return nil, err
		}
		switch {
		case !n.surface.Format().Equal(want):
			logger.Debugf(ctx, "the format changed from %s to %s", n.surface.Format(), want)
		case n.Registry.Find(ctx, Query{Owner: n.Owner, Scope: ScopeChild, Format: want}) != n.surface:
			logger.Debugf(ctx, "%s is no longer attached to '%s'", n.surface, n.Owner)
		default:
			return n.surface, nil
		}
		n.surface = nil
		n.state = StateReleased
	}
	return n.Acquire(ctx, width, height, aspectCode, layout)
}

// Acquire finds a surface compatible with the request (attached to this
// pipeline first, then anywhere in the registry) and attaches it to the
// pipeline, or creates one. Incompatible surfaces found on the way are
// destroyed.
func (n *Negotiator) Acquire(
	ctx context.Context,
	width, height int,
	aspectCode picture.AspectCode,
	layout picture.Layout,
) (_ret Surface, _err error) {
	logger.Debugf(ctx, "Acquire(%dx%d, %s, %s)", width, height, aspectCode, layout)
	defer func() { logger.Debugf(ctx, "/Acquire(%dx%d, %s, %s): %v %v", width, height, aspectCode, layout, _ret, _err) }()

	want, err := requestedFormat(width, height, aspectCode, layout)
	if err != nil {
		return nil, err
	}

	found := n.Registry.Find(ctx, Query{Owner: n.Owner, Scope: ScopeChild, Format: want})
	if found == nil {
		found = n.Registry.Find(ctx, Query{Owner: n.Owner, Scope: ScopeAnywhere, Format: want})
	}

	if found != nil {
		if found.Format().Equal(want) {
			if err := n.Registry.DetachAll(ctx, found); err != nil {
				return nil, fmt.Errorf("unable to detach %s from its owners: %w", found, err)
			}
			if err := n.Registry.Attach(ctx, found, n.Owner); err != nil {
				return nil, fmt.Errorf("unable to attach %s to '%s': %w", found, n.Owner, err)
			}
			n.SurfacesReused.Inc()
			n.bind(found)
			return found, nil
		}

		logger.Debugf(ctx, "destroying the incompatible surface %s", found)
		n.SurfacesDestroyed.Inc()
		err := multierr.Combine(
			n.Registry.DetachAll(ctx, found),
			n.Registry.Destroy(ctx, found),
		)
		if err != nil {
			logger.Warnf(ctx, "unable to destroy %s: %v", found, err)
		}
	}

	created, err := n.Registry.Create(ctx, want)
	if err != nil {
		return nil, fmt.Errorf("unable to create a surface of %s: %w", want, err)
	}
	n.SurfacesCreated.Inc()
	if err := n.Registry.Attach(ctx, created, n.Owner); err != nil {
		return nil, multierr.Append(
			fmt.Errorf("unable to attach %s to '%s': %w", created, n.Owner, err),
			n.Registry.Destroy(ctx, created),
		)
	}
	n.bind(created)
	return created, nil
}

func (n *Negotiator) bind(s Surface) {
	n.surface = s
	n.state = StateBound
}

func requestedFormat(
	width, height int,
	aspectCode picture.AspectCode,
	layout picture.Layout,
) (Format, error) {
	if width <= 0 || height <= 0 {
		return Format{}, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, width, height)
	}
	if layout == picture.LayoutUnknown {
		layout = pixconv.CanonicalLayout
	}
	return Format{
		Width:  width,
		Height: height,
		Layout: layout,
		Aspect: DisplayAspect(width, height, aspectCode),
	}, nil
}

// ObtainBuffer waits for a free picture buffer of the bound surface,
// retrying every BufferRetryInterval at most BufferRetryLimit times.
func (n *Negotiator) ObtainBuffer(
	ctx context.Context,
	stop *stopflag.Flag,
) (*picture.Picture, error) {
	if n.surface == nil {
		return nil, ErrNoSurface
	}
	for attempt := 0; ; attempt++ {
		buf, err := n.surface.ObtainBuffer(ctx)
		switch {
		case err == nil:
			return buf, nil
		case !errors.Is(err, ErrNoBuffer):
			s := n.surface
			n.drop(ctx, s)
			return nil, fmt.Errorf("%w: unable to obtain a buffer of %s: %w", ErrSurfaceLost, s, err)
		}
		if attempt >= n.BufferRetryLimit {
			return nil, fmt.Errorf("%w: %s, %d attempts", ErrBufferTimeout, n.surface, attempt+1)
		}
		n.BufferWaits.Inc()
		logger.Tracef(ctx, "no free buffer in %s, waiting", n.surface)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-stop.Chan():
			return nil, ErrStopped
		case <-n.Clock.After(n.BufferRetryInterval):
		}
	}
}

// drop unbinds a surface that cannot serve buffers any more and removes it
// from the registry.
func (n *Negotiator) drop(ctx context.Context, s Surface) {
	logger.Warnf(ctx, "dropping the surface %s", s)
	n.surface = nil
	n.state = StateReleased
	err := multierr.Combine(
		n.Registry.DetachAll(ctx, s),
		n.Registry.Destroy(ctx, s),
	)
	if err != nil && !errors.Is(err, ErrUnknownSurface) {
		logger.Debugf(ctx, "unable to destroy %s: %v", s, err)
	}
}

// Release hands the bound surface back to the registry root owner. A
// surface that was already removed from the registry is just forgotten.
func (n *Negotiator) Release(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Release")
	defer func() { logger.Debugf(ctx, "/Release: %v", _err) }()
	s := n.surface
	if s == nil {
		return nil
	}
	n.surface = nil
	n.state = StateReleased
	if err := n.Registry.Detach(ctx, s, n.Owner); err != nil {
		if errors.Is(err, ErrUnknownSurface) {
			logger.Debugf(ctx, "%s is not registered any more", s)
			return nil
		}
		return fmt.Errorf("unable to detach %s from '%s': %w", s, n.Owner, err)
	}
	if err := n.Registry.Attach(ctx, s, n.Registry.Root()); err != nil {
		return fmt.Errorf("unable to attach %s to '%s': %w", s, n.Registry.Root(), err)
	}
	return nil
}
