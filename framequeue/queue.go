package framequeue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xaionaro-go/avpresent/helpers/stopflag"
	"github.com/xaionaro-go/avpresent/logger"
	"go.uber.org/atomic"
)

// ErrClosed is returned by Dequeue at the end of the stream or when the
// worker was asked to stop. It is not a failure.
var ErrClosed = errors.New("frame queue is closed")

const DefaultSize = 64

type Queue struct {
	ch        chan *Fragment
	closeOnce sync.Once
	closed    chan struct{}
	depth     atomic.Int64
}

func New(size int) *Queue {
	if size <= 0 {
		size = DefaultSize
	}
	return &Queue{
		ch:     make(chan *Fragment, size),
		closed: make(chan struct{}),
	}
}

func (q *Queue) String() string {
	return fmt.Sprintf("FrameQueue(%d/%d)", q.Depth(), cap(q.ch))
}

// Enqueue appends the fragment to the tail. It blocks only while the queue
// is full.
func (q *Queue) Enqueue(ctx context.Context, f *Fragment) error {
	if q.IsClosed() {
		return ErrClosed
	}
	q.depth.Inc()
	select {
	case <-ctx.Done():
		q.depth.Dec()
		return ctx.Err()
	case <-q.closed:
		q.depth.Dec()
		return ErrClosed
	case q.ch <- f:
		return nil
	}
}

// EnqueueFrame enqueues all the fragments of one frame.
func (q *Queue) EnqueueFrame(ctx context.Context, fragments []*Fragment) error {
	for idx, f := range fragments {
		if err := q.Enqueue(ctx, f); err != nil {
			return fmt.Errorf("unable to enqueue fragment #%d of %d: %w", idx, len(fragments), err)
		}
	}
	return nil
}

// Dequeue blocks until a fragment is available. After Close the remaining
// fragments are still returned; a raised stop flag or a cancelled context
// yield ErrClosed right away.
func (q *Queue) Dequeue(ctx context.Context, stop *stopflag.Flag) (*Fragment, error) {
	if stop.IsRaised() {
		return nil, ErrClosed
	}
	select {
	case f := <-q.ch:
		q.depth.Dec()
		return f, nil
	default:
	}
	select {
	case <-ctx.Done():
		logger.Debugf(ctx, "Dequeue: context is closed: %v", ctx.Err())
		return nil, ErrClosed
	case <-stop.Chan():
		return nil, ErrClosed
	case f := <-q.ch:
		q.depth.Dec()
		return f, nil
	case <-q.closed:
		select {
		case f := <-q.ch:
			q.depth.Dec()
			return f, nil
		default:
			return nil, ErrClosed
		}
	}
}

// Close marks the end of the stream.
func (q *Queue) Close(ctx context.Context) {
	logger.Debugf(ctx, "Close")
	q.closeOnce.Do(func() {
		close(q.closed)
	})
}

func (q *Queue) IsClosed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *Queue) Depth() int {
	return int(q.depth.Load())
}
