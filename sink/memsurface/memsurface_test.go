package memsurface

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/avpresent/types"
)

func TestSurfaceBuffers(t *testing.T) {
	ctx := context.Background()
	s, err := New(sink.Format{
		Width:  33,
		Height: 17,
		Layout: picture.LayoutI420,
		Aspect: types.NewRational(33, 17),
	}, 2)
	require.NoError(t, err)

	a, err := s.ObtainBuffer(ctx)
	require.NoError(t, err)
	require.Equal(t, 48, a.Planes[0].Stride)
	require.Equal(t, 17, a.Planes[0].Lines)
	require.Equal(t, 9, a.Planes[1].Lines)

	b, err := s.ObtainBuffer(ctx)
	require.NoError(t, err)
	_, err = s.ObtainBuffer(ctx)
	require.ErrorIs(t, err, sink.ErrNoBuffer)

	s.ReleaseBuffer(ctx, b)
	require.Equal(t, 1, s.FreeBuffers(ctx))

	var presented []time.Time
	s.OnPresent = func(ctx context.Context, pic *picture.Picture, pts time.Time) error {
		presented = append(presented, pts)
		return nil
	}
	ts := time.Unix(1, 0)
	require.NoError(t, s.Present(ctx, a, ts))
	front, frontTS := s.LastPresented(ctx)
	require.Same(t, a, front)
	require.Equal(t, ts, frontTS)
	require.Equal(t, uint64(1), s.Presented.Load())
	require.Equal(t, []time.Time{ts}, presented)

	// the front buffer is kept until replaced
	require.Equal(t, 1, s.FreeBuffers(ctx))
	c, err := s.ObtainBuffer(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Present(ctx, c, ts.Add(time.Second)))
	require.Equal(t, 1, s.FreeBuffers(ctx))

	require.Error(t, s.Present(ctx, c, ts))
	require.NoError(t, s.Close(ctx))
	_, err = s.ObtainBuffer(ctx)
	require.Error(t, err)
	require.NotErrorIs(t, err, sink.ErrNoBuffer)
}
