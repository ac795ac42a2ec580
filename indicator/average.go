// Package indicator smooths noisy per-frame measurements.
package indicator

import (
	"math"
	"sync"
	"time"

	indicators "github.com/lmpizarro/go_ehlers_indicators"
)

const (
	DefaultFastLimit = 0.5
	DefaultSlowLimit = 0.05
)

// DurationAverage is a MESA adaptive moving average (MAMA) of durations over
// a sliding window. Until the window is filled it reports the plain mean.
type DurationAverage struct {
	FastLimit float64
	SlowLimit float64

	locker  sync.Mutex
	window  []float64
	ordered []float64
	next    int
	count   int
	sum     float64
	value   time.Duration
}

func NewDurationAverage(windowSize int) *DurationAverage {
	if windowSize < 2 {
		windowSize = 2
	}
	return &DurationAverage{
		FastLimit: DefaultFastLimit,
		SlowLimit: DefaultSlowLimit,
		window:    make([]float64, windowSize),
		ordered:   make([]float64, windowSize),
	}
}

func (a *DurationAverage) Update(d time.Duration) time.Duration {
	a.locker.Lock()
	defer a.locker.Unlock()

	v := float64(d)
	a.sum += v - a.window[a.next]
	a.window[a.next] = v
	a.next = (a.next + 1) % len(a.window)
	a.count++

	if a.count < len(a.window) {
		a.value = time.Duration(math.Round(a.sum / float64(a.count)))
		return a.value
	}

	// the window is a ring, the oldest value is at a.next
	copy(a.ordered, a.window[a.next:])
	copy(a.ordered[len(a.window)-a.next:], a.window[:a.next])
	result := indicators.MAMA(a.ordered, a.FastLimit, a.SlowLimit)
	a.value = time.Duration(math.Round(result[len(result)-1]))
	return a.value
}

// Value returns the latest average.
func (a *DurationAverage) Value() time.Duration {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.value
}

// Valid reports whether the window has been filled.
func (a *DurationAverage) Valid() bool {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.count >= len(a.window)
}
