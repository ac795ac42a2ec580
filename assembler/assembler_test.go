package assembler

import (
	"bytes"
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpresent/framequeue"
)

func TestAssemblerConcatenation(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))

	for iteration := range 50 {
		q := framequeue.New(1024)
		var expected [][]byte
		for range 10 {
			nFragments := 1 + rng.Intn(5)
			var payloads [][]byte
			var whole []byte
			for range nFragments {
				p := make([]byte, 1+rng.Intn(100))
				rng.Read(p)
				payloads = append(payloads, p)
				whole = append(whole, p...)
			}
			expected = append(expected, whole)
			require.NoError(t, q.EnqueueFrame(ctx, framequeue.NewFrame(time.Unix(int64(iteration), 0), payloads...)))
		}
		q.Close(ctx)

		a := New(q)
		for _, exp := range expected {
			f, err := a.Next(ctx, nil)
			require.NoError(t, err)
			require.Equal(t, exp, f.Data)
			require.Equal(t, len(exp), f.Size)
			f.Release()
		}
		_, err := a.Next(ctx, nil)
		require.ErrorIs(t, err, framequeue.ErrClosed)
	}
}

func TestAssemblerSingleFragmentIsNotCopied(t *testing.T) {
	ctx := context.Background()
	q := framequeue.New(4)
	buf := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	require.NoError(t, q.Enqueue(ctx, &framequeue.Fragment{
		Buffer:    buf,
		Start:     2,
		End:       6,
		FrameSize: 4,
		HasPTS:    true,
		PTS:       time.Unix(1, 0),
	}))

	a := New(q)
	f, err := a.Next(ctx, nil)
	require.NoError(t, err)
	require.False(t, f.IsCopy())
	require.Same(t, &buf[2], &f.Data[0])
	require.Equal(t, 4, f.Size)
	require.True(t, f.HasPTS)
	f.Release()
	require.Equal(t, []byte{2, 3, 4, 5}, buf[2:6])
	require.Equal(t, uint64(1), a.FramesAliased.Load())
}

func TestAssemblerMultiFragmentIsCopied(t *testing.T) {
	ctx := context.Background()
	q := framequeue.New(4)
	first, second := []byte{1, 2}, []byte{3}
	require.NoError(t, q.EnqueueFrame(ctx, framequeue.NewFrame(time.Unix(1, 0), first, second)))

	a := New(q)
	f, err := a.Next(ctx, nil)
	require.NoError(t, err)
	require.True(t, f.IsCopy())
	require.NotSame(t, &first[0], &f.Data[0])
	require.Equal(t, []byte{1, 2, 3}, f.Data)
	f.Release()
	require.Nil(t, f.Data)
}

func TestAssemblerSkipsEmptyFrames(t *testing.T) {
	ctx := context.Background()
	q := framequeue.New(16)
	// zero declared size
	require.NoError(t, q.Enqueue(ctx, &framequeue.Fragment{Buffer: []byte{9}, End: 1}))
	// zero payload
	require.NoError(t, q.Enqueue(ctx, &framequeue.Fragment{Buffer: []byte{}, FrameSize: 3}))
	require.NoError(t, q.EnqueueFrame(ctx, framequeue.NewFrame(time.Time{}, []byte{7, 7})))
	q.Close(ctx)

	a := New(q)
	f, err := a.Next(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{7, 7}, f.Data)
	require.False(t, f.HasPTS)
	require.Equal(t, uint64(2), a.FramesEmpty.Load())
}

func TestAssemblerTruncatesToDeclaredSize(t *testing.T) {
	ctx := context.Background()
	q := framequeue.New(16)
	frags := framequeue.NewFrame(time.Time{}, []byte{1, 2, 3}, []byte{4, 5})
	frags[0].FrameSize = 4
	require.NoError(t, q.EnqueueFrame(ctx, frags))

	f, err := New(q).Next(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, f.Data)
}

func TestAssemblerOversizedDeclaredSize(t *testing.T) {
	ctx := context.Background()
	q := framequeue.New(16)
	frags := framequeue.NewFrame(time.Time{}, []byte{1, 2, 3}, []byte{4, 5})
	frags[0].FrameSize = 1 << 40
	require.NoError(t, q.EnqueueFrame(ctx, frags))

	f, err := New(q).Next(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5}, f.Data)
	require.Equal(t, 5, cap(f.Data))
}

func TestAssemblerSkip(t *testing.T) {
	ctx := context.Background()
	q := framequeue.New(16)
	require.NoError(t, q.EnqueueFrame(ctx, framequeue.NewFrame(time.Time{}, []byte{1}, []byte{2}, []byte{3})))
	require.NoError(t, q.EnqueueFrame(ctx, framequeue.NewFrame(time.Time{}, []byte{4})))
	q.Close(ctx)

	a := New(q)
	require.NoError(t, a.Skip(ctx, nil))
	f, err := a.Next(ctx, nil)
	require.NoError(t, err)
	require.True(t, bytes.Equal([]byte{4}, f.Data))
	require.ErrorIs(t, a.Skip(ctx, nil), framequeue.ErrClosed)
}
