package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaionaro-go/avpresent/picture"
)

// ErrNoBuffer is returned by Surface.ObtainBuffer while every picture
// buffer of the surface is in use.
var ErrNoBuffer = errors.New("no free picture buffer")

type Surface interface {
	fmt.Stringer

	Format() Format

	// ObtainBuffer returns a free picture buffer of the surface format
	// without blocking.
	ObtainBuffer(ctx context.Context) (*picture.Picture, error)

	// ReleaseBuffer returns a buffer that will not be presented.
	ReleaseBuffer(ctx context.Context, buf *picture.Picture)

	// Present hands the buffer over to the surface to be shown at pts.
	Present(ctx context.Context, buf *picture.Picture, pts time.Time) error

	Close(ctx context.Context) error
}
