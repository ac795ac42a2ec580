package sink

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpresent/helpers/stopflag"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/types"
)

type fakeSurface struct {
	id       int
	format   Format
	noBuffer int
	failErr  error
	closed   bool
}

func (s *fakeSurface) String() string { return fmt.Sprintf("fake#%d(%s)", s.id, s.format) }
func (s *fakeSurface) Format() Format { return s.format }
func (s *fakeSurface) ObtainBuffer(ctx context.Context) (*picture.Picture, error) {
	if s.failErr != nil {
		return nil, s.failErr
	}
	if s.noBuffer > 0 {
		s.noBuffer--
		return nil, ErrNoBuffer
	}
	return picture.Alloc(s.format.Layout, s.format.Width, s.format.Height, 1)
}
func (s *fakeSurface) ReleaseBuffer(ctx context.Context, buf *picture.Picture) {}
func (s *fakeSurface) Present(ctx context.Context, buf *picture.Picture, pts time.Time) error {
	return nil
}
func (s *fakeSurface) Close(ctx context.Context) error {
	s.closed = true
	return nil
}

type fakeRegistry struct {
	surfaces  []*fakeSurface
	owners    map[*fakeSurface]map[Owner]struct{}
	created   int
	destroyed int
	createErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{owners: map[*fakeSurface]map[Owner]struct{}{}}
}

func (r *fakeRegistry) Find(ctx context.Context, q Query) Surface {
	for _, s := range r.surfaces {
		switch q.Scope {
		case ScopeChild:
			if _, ok := r.owners[s][q.Owner]; ok {
				return s
			}
		case ScopeAnywhere:
			if s.format.Equal(q.Format) {
				return s
			}
		}
	}
	return nil
}

func (r *fakeRegistry) Create(ctx context.Context, format Format) (Surface, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.created++
	s := &fakeSurface{id: r.created, format: format}
	r.surfaces = append(r.surfaces, s)
	r.owners[s] = map[Owner]struct{}{}
	return s, nil
}

func (r *fakeRegistry) Destroy(ctx context.Context, s Surface) error {
	for idx, c := range r.surfaces {
		if c == s {
			r.surfaces = append(r.surfaces[:idx], r.surfaces[idx+1:]...)
			delete(r.owners, c)
			r.destroyed++
			return c.Close(ctx)
		}
	}
	return ErrUnknownSurface
}

func (r *fakeRegistry) Attach(ctx context.Context, s Surface, owner Owner) error {
	owners, ok := r.owners[s.(*fakeSurface)]
	if !ok {
		return ErrUnknownSurface
	}
	owners[owner] = struct{}{}
	return nil
}

func (r *fakeRegistry) Detach(ctx context.Context, s Surface, owner Owner) error {
	owners, ok := r.owners[s.(*fakeSurface)]
	if !ok {
		return ErrUnknownSurface
	}
	delete(owners, owner)
	return nil
}

func (r *fakeRegistry) DetachAll(ctx context.Context, s Surface) error {
	if _, ok := r.owners[s.(*fakeSurface)]; !ok {
		return ErrUnknownSurface
	}
	r.owners[s.(*fakeSurface)] = map[Owner]struct{}{}
	return nil
}

func (r *fakeRegistry) Root() Owner {
	return "root"
}

func TestDisplayAspect(t *testing.T) {
	require.Equal(t, types.NewRational(4, 3), DisplayAspect(720, 576, picture.Aspect4x3_625))
	require.Equal(t, types.NewRational(4, 3), DisplayAspect(720, 480, picture.Aspect4x3_525))
	require.Equal(t, types.NewRational(16, 9), DisplayAspect(720, 576, picture.Aspect16x9_625))
	require.Equal(t, types.NewRational(16, 9), DisplayAspect(720, 480, picture.Aspect16x9_525))
	require.Equal(t, types.NewRational(4, 3), DisplayAspect(640, 480, picture.AspectSquare))
	require.Equal(t, types.NewRational(11, 9), DisplayAspect(352, 288, picture.AspectSquare))
	require.True(t, DisplayAspect(0, 0, picture.AspectSquare).IsZero())
}

func TestNegotiatorReuseAndRecreate(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")
	require.Equal(t, StateNone, n.State())

	first, err := n.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.Equal(t, 1, reg.created)
	require.Equal(t, StateBound, n.State())

	second, err := n.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.Equal(t, 1, reg.created)
	require.Equal(t, 0, reg.destroyed)

	third, err := n.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI422)
	require.NoError(t, err)
	require.NotSame(t, first, third)
	require.Equal(t, 2, reg.created)
	require.Equal(t, 1, reg.destroyed)
	require.True(t, first.(*fakeSurface).closed)
	require.Equal(t, picture.LayoutI422, third.Format().Layout)
}

func TestNegotiatorEnsure(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")

	s0, err := n.Ensure(ctx, 320, 240, picture.AspectSquare, picture.LayoutUnknown)
	require.NoError(t, err)
	require.Equal(t, picture.LayoutI420, s0.Format().Layout)

	s1, err := n.Ensure(ctx, 320, 240, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.Same(t, s0, s1)

	s2, err := n.Ensure(ctx, 320, 240, picture.Aspect16x9_625, picture.LayoutI420)
	require.NoError(t, err)
	require.NotSame(t, s0, s2)
	require.Equal(t, 1, reg.destroyed)
	require.Equal(t, StateBound, n.State())
}

func TestNegotiatorHijack(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	other := NewNegotiator(reg, "pipeline-other")
	s, err := other.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)

	n := NewNegotiator(reg, "pipeline-1")
	hijacked, err := n.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.Same(t, s, hijacked)
	require.Equal(t, map[Owner]struct{}{"pipeline-1": {}}, reg.owners[s.(*fakeSurface)])
	require.Equal(t, 1, reg.created)
}

func TestNegotiatorErrors(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")

	_, err := n.Acquire(ctx, 0, 480, picture.AspectSquare, picture.LayoutI420)
	require.ErrorIs(t, err, ErrInvalidGeometry)

	reg.createErr = errors.New("no display")
	_, err = n.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI420)
	require.ErrorIs(t, err, reg.createErr)
	require.Equal(t, StateNone, n.State())
	require.Nil(t, n.Surface())

	reg.createErr = nil
	_, err = n.Acquire(ctx, 640, 480, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
}

func TestNegotiatorObtainBuffer(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")
	n.BufferRetryInterval = time.Millisecond
	n.BufferRetryLimit = 3

	_, err := n.ObtainBuffer(ctx, nil)
	require.ErrorIs(t, err, ErrNoSurface)

	s, err := n.Acquire(ctx, 16, 16, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)

	s.(*fakeSurface).noBuffer = 2
	buf, err := n.ObtainBuffer(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.Equal(t, uint64(2), n.BufferWaits.Load())

	s.(*fakeSurface).noBuffer = 10
	_, err = n.ObtainBuffer(ctx, nil)
	require.ErrorIs(t, err, ErrBufferTimeout)

	stop := stopflag.New()
	stop.Raise(ctx)
	n.BufferRetryInterval = time.Hour
	_, err = n.ObtainBuffer(ctx, stop)
	require.ErrorIs(t, err, ErrStopped)
}

func TestNegotiatorRelease(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")
	require.NoError(t, n.Release(ctx))

	s, err := n.Acquire(ctx, 16, 16, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.NoError(t, n.Release(ctx))
	require.Equal(t, StateReleased, n.State())
	require.Equal(t, map[Owner]struct{}{"root": {}}, reg.owners[s.(*fakeSurface)])
}

func TestNegotiatorEnsureAfterTakeover(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")
	s, err := n.Ensure(ctx, 64, 48, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)

	other := NewNegotiator(reg, "pipeline-2")
	taken, err := other.Ensure(ctx, 64, 48, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.Same(t, s, taken)

	// the surface is negotiated again instead of being used while it is
	// attached to someone else
	again, err := n.Ensure(ctx, 64, 48, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.Same(t, s, again)
	require.Equal(t, 1, reg.created)
	require.Equal(t, uint64(1), n.SurfacesReused.Load())
	require.Equal(t, map[Owner]struct{}{"pipeline-1": {}}, reg.owners[again.(*fakeSurface)])
}

func TestNegotiatorSurfaceLost(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")
	s, err := n.Acquire(ctx, 16, 16, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)

	s.(*fakeSurface).failErr = errors.New("display disconnected")
	_, err = n.ObtainBuffer(ctx, nil)
	require.ErrorIs(t, err, ErrSurfaceLost)
	require.Nil(t, n.Surface())
	require.Equal(t, StateReleased, n.State())
	require.Equal(t, 1, reg.destroyed)

	fresh, err := n.Ensure(ctx, 16, 16, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.NotSame(t, s, fresh)
	require.NoError(t, n.Release(ctx))
}

func TestNegotiatorReleaseUnregistered(t *testing.T) {
	ctx := context.Background()
	reg := newFakeRegistry()
	n := NewNegotiator(reg, "pipeline-1")
	s, err := n.Acquire(ctx, 16, 16, picture.AspectSquare, picture.LayoutI420)
	require.NoError(t, err)
	require.NoError(t, reg.Destroy(ctx, s))

	require.NoError(t, n.Release(ctx))
	require.Equal(t, StateReleased, n.State())
	require.Nil(t, n.Surface())
}
