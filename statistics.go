package avpresent

import (
	"encoding/json"
	"time"

	"go.uber.org/atomic"
)

// Statistics is a snapshot of the pipeline counters.
type Statistics struct {
	FramesAssembled uint64 `json:"frames_assembled"`
	FramesEmpty     uint64 `json:"frames_empty,omitempty"`
	FramesSkipped   uint64 `json:"frames_skipped,omitempty"`
	FramesDegraded  uint64 `json:"frames_degraded,omitempty"`
	FramesDecoded   uint64 `json:"frames_decoded"`
	FramesPresented uint64 `json:"frames_presented"`

	NoPicture        uint64 `json:"no_picture,omitempty"`
	DecodeErrors     uint64 `json:"decode_errors,omitempty"`
	ConversionErrors uint64 `json:"conversion_errors,omitempty"`
	SinkErrors       uint64 `json:"sink_errors,omitempty"`
	BufferTimeouts   uint64 `json:"buffer_timeouts,omitempty"`

	SurfacesCreated   uint64 `json:"surfaces_created"`
	SurfacesReused    uint64 `json:"surfaces_reused"`
	SurfacesDestroyed uint64 `json:"surfaces_destroyed"`

	LateCount     int64         `json:"late_count"`
	QueueDepth    int           `json:"queue_depth"`
	DecodeTimeAvg time.Duration `json:"decode_time_avg"`
	LastPTS       time.Time     `json:"last_pts"`
}

func (s Statistics) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

type counters struct {
	FramesAssembled atomic.Uint64
	FramesSkipped   atomic.Uint64
	FramesDegraded  atomic.Uint64
	FramesDecoded   atomic.Uint64
	FramesPresented atomic.Uint64

	NoPicture        atomic.Uint64
	DecodeErrors     atomic.Uint64
	ConversionErrors atomic.Uint64
	SinkErrors       atomic.Uint64
	BufferTimeouts   atomic.Uint64
}

func (p *Pipeline) GetStats() *Statistics {
	return &Statistics{
		FramesAssembled:   p.counters.FramesAssembled.Load(),
		FramesEmpty:       p.Assembler.FramesEmpty.Load(),
		FramesSkipped:     p.counters.FramesSkipped.Load(),
		FramesDegraded:    p.counters.FramesDegraded.Load(),
		FramesDecoded:     p.counters.FramesDecoded.Load(),
		FramesPresented:   p.counters.FramesPresented.Load(),
		NoPicture:         p.counters.NoPicture.Load(),
		DecodeErrors:      p.counters.DecodeErrors.Load(),
		ConversionErrors:  p.counters.ConversionErrors.Load(),
		SinkErrors:        p.counters.SinkErrors.Load(),
		BufferTimeouts:    p.counters.BufferTimeouts.Load(),
		SurfacesCreated:   p.Negotiator.SurfacesCreated.Load(),
		SurfacesReused:    p.Negotiator.SurfacesReused.Load(),
		SurfacesDestroyed: p.Negotiator.SurfacesDestroyed.Load(),
		LateCount:         p.Policy.LateCount(),
		QueueDepth:        p.Queue.Depth(),
		DecodeTimeAvg:     p.decodeTime.Value(),
		LastPTS:           p.lastPTS.Load(),
	}
}
