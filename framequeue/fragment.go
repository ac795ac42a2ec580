// Package framequeue implements the handoff of compressed fragments from a
// demultiplexer to a decode worker.
package framequeue

import (
	"fmt"
	"time"
)

// Fragment is one contiguous chunk of a compressed frame.
//
// PTS, HasPTS and FrameSize are set only on the first fragment of a frame.
type Fragment struct {
	Buffer []byte
	Start  int
	End    int

	// More is set if the next fragment in the queue belongs to the same frame.
	More bool

	PTS    time.Time
	HasPTS bool

	// FrameSize is the declared total length of the frame in bytes.
	FrameSize int
}

func (f *Fragment) Payload() []byte {
	return f.Buffer[f.Start:f.End]
}

func (f *Fragment) Len() int {
	return f.End - f.Start
}

func (f *Fragment) String() string {
	return fmt.Sprintf("Fragment(%d bytes, more:%t, frameSize:%d)", f.Len(), f.More, f.FrameSize)
}

// NewFrame builds the linked fragment chain of one frame. The payloads are
// referenced, not copied.
func NewFrame(pts time.Time, payloads ...[]byte) []*Fragment {
	if len(payloads) == 0 {
		return nil
	}
	total := 0
	for _, p := range payloads {
		total += len(p)
	}
	result := make([]*Fragment, 0, len(payloads))
	for idx, p := range payloads {
		f := &Fragment{
			Buffer: p,
			Start:  0,
			End:    len(p),
			More:   idx < len(payloads)-1,
		}
		if idx == 0 {
			f.PTS = pts
			f.HasPTS = !pts.IsZero()
			f.FrameSize = total
		}
		result = append(result, f)
	}
	return result
}
