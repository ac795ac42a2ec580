//go:build with_cv
// +build with_cv

// Package cvwindow implements a display surface that shows the presented
// pictures in an OpenCV window.
package cvwindow

import (
	"context"
	"fmt"
	"time"

	"github.com/xaionaro-go/avpresent/logger"
	"github.com/xaionaro-go/avpresent/picture"
	"github.com/xaionaro-go/avpresent/sink"
	"github.com/xaionaro-go/avpresent/sink/memsurface"
	"gocv.io/x/gocv"
)

type Surface struct {
	*memsurface.Surface
	Title string

	window *gocv.Window
}

var _ sink.Surface = (*Surface)(nil)

func New(format sink.Format, title string) (*Surface, error) {
	mem, err := memsurface.New(format, memsurface.DefaultBuffers)
	if err != nil {
		return nil, err
	}
	s := &Surface{
		Surface: mem,
		Title:   title,
		window:  gocv.NewWindow(title),
	}
	s.window.ResizeWindow(format.Width, format.Height)
	mem.OnPresent = s.onPresent
	return s, nil
}

type Factory struct {
	Title string
}

func (f Factory) NewSurface(ctx context.Context, format sink.Format) (sink.Surface, error) {
	return New(format, fmt.Sprintf("%s %dx%d", f.Title, format.Width, format.Height))
}

func (s *Surface) String() string {
	return fmt.Sprintf("CVWindow(%s, '%s')", s.Surface.Format(), s.Title)
}

func (s *Surface) onPresent(
	ctx context.Context,
	pic *picture.Picture,
	pts time.Time,
) error {
	img, err := pic.ToImage()
	if err != nil {
		return fmt.Errorf("unable to convert %s to an image: %w", pic, err)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("unable to convert the image to a matrix: %w", err)
	}
	defer mat.Close()
	logger.Tracef(ctx, "showing a picture with pts %v", pts)
	s.window.IMShow(mat)
	s.window.WaitKey(1)
	return nil
}

func (s *Surface) Close(ctx context.Context) error {
	err := s.Surface.Close(ctx)
	if closeErr := s.window.Close(); closeErr != nil {
		logger.Warnf(ctx, "unable to close the window '%s': %v", s.Title, closeErr)
	}
	return err
}
