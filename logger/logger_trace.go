//go:build debug_trace
// +build debug_trace

package logger

import (
	"context"
)

// TraceEnabled reports whether Tracef calls are compiled in.
const TraceEnabled = true

func Tracef(ctx context.Context, format string, args ...any) {
	FromCtx(ctx).Logf(LevelTrace, format, args...)
}
