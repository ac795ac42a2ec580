package internal

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avpresent/logger"
)

// Assertf panics through the logger when cond does not hold, so the panic
// carries the context fields of the caller.
func Assertf(
	ctx context.Context,
	cond bool,
	format string,
	args ...any,
) {
	if cond {
		return
	}
	logger.Panic(ctx, "assertion failed: "+fmt.Sprintf(format, args...))
}
