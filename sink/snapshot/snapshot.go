// Package snapshot implements a display surface that writes presented
// pictures to image files.
package snapshot

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/avpresent/sink/memsurface"
	"github.com/xaionaro-go/avpresent/types"
	"go.uber.org/atomic"
)

type Config struct {
	Dir string `yaml:"dir"`

	// Every N-th presented picture is written; 0 and 1 mean every picture.
	Every uint64 `yaml:"every"`

	// Extension is "png" (default), "jpg" or "jpeg".
	Extension string `yaml:"extension"`

	JPEGQuality int `yaml:"jpeg_quality"`

	// Thumbnail resizes the written pictures if not zero.
	Thumbnail types.Resolution `yaml:"thumbnail"`
}

type Surface struct {
	*memsurface.Surface
	Config Config

	Written atomic.Uint64

	encoder imgio.Encoder
	ext     string
}

var _ sink.Surface = (*Surface)(nil)

func New(format sink.Format, cfg Config) (*Surface, error) {
	mem, err := memsurface.New(format, memsurface.DefaultBuffers)
	if err != nil {
		return nil, err
	}
	s := &Surface{
		Surface: mem,
		Config:  cfg,
	}
	switch ext := strings.ToLower(cfg.Extension); ext {
	case "", "png":
		s.encoder = imgio.PNGEncoder()
		s.ext = "png"
	case "jpg", "jpeg":
		quality := cfg.JPEGQuality
		if quality <= 0 {
			quality = 90
		}
		s.encoder = imgio.JPEGEncoder(types.Clamp(quality, 1, 100))
		s.ext = ext
	default:
		return nil, fmt.Errorf("unsupported image extension '%s'", cfg.Extension)
	}
	mem.OnPresent = s.onPresent
	return s, nil
}

// Factory creates snapshot surfaces for a surface directory.
type Factory struct {
	Config Config
}

func (f Factory) NewSurface(ctx context.Context, format sink.Format) (sink.Surface, error) {
	return New(format, f.Config)
}

func (s *Surface) String() string {
	return fmt.Sprintf("Snapshot(%s, %s)", s.Surface.Format(), s.Config.Dir)
}

func (s *Surface) onPresent(
	ctx context.Context,
	pic *picture.Picture,
	pts time.Time,
) error {
	idx := s.Surface.Presented.Load()
	if s.Config.Every > 1 && (idx-1)%s.Config.Every != 0 {
		return nil
	}
	path := filepath.Join(s.Config.Dir, FileName(idx, pts, s.ext))
	if err := s.write(ctx, pic, path); err != nil {
		logger.Errorf(ctx, "unable to write the snapshot '%s': %v", path, err)
		return nil
	}
	s.Written.Inc()
	return nil
}

func (s *Surface) write(
	ctx context.Context,
	pic *picture.Picture,
	path string,
) error {
	img, err := pic.ToImage()
	if err != nil {
		return fmt.Errorf("unable to convert %s to an image: %w", pic, err)
	}
	if !s.Config.Thumbnail.IsZero() {
		img = transform.Resize(img, int(s.Config.Thumbnail.Width), int(s.Config.Thumbnail.Height), transform.Linear)
	}
	logger.Tracef(ctx, "writing %s", path)
	if err := imgio.Save(path, img, s.encoder); err != nil {
		return fmt.Errorf("unable to save: %w", err)
	}
	return nil
}

// FileName is the name of the file the idx-th presented picture is written to.
func FileName(idx uint64, pts time.Time, ext string) string {
	return fmt.Sprintf("frame_%08d_%d.%s", idx, pts.UnixMilli(), ext)
}
