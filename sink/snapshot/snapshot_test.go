package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/avpresent/types"
)

func TestSnapshotEvery(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(sink.Format{
		Width:  16,
		Height: 8,
		Layout: picture.LayoutI420,
		Aspect: types.NewRational(2, 1),
	}, Config{
		Dir:       dir,
		Every:     2,
		Thumbnail: types.Resolution{Width: 8, Height: 4},
	})
	require.NoError(t, err)

	base := time.Unix(100, 0)
	for i := 0; i < 5; i++ {
		buf, err := s.ObtainBuffer(ctx)
		require.NoError(t, err)
		for j := range buf.Planes[0].Data {
			buf.Planes[0].Data[j] = byte(i * 40)
		}
		require.NoError(t, s.Present(ctx, buf, base.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, uint64(3), s.Written.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	img, err := imgio.Open(filepath.Join(dir, FileName(1, base, "png")))
	require.NoError(t, err)
	require.Equal(t, 8, img.Bounds().Dx())
	require.Equal(t, 4, img.Bounds().Dy())
}

func TestSnapshotBadExtension(t *testing.T) {
	_, err := New(sink.Format{Width: 2, Height: 2, Layout: picture.LayoutGray}, Config{Extension: "bmp"})
	require.Error(t, err)
}
