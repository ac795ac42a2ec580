package loadshed

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func newTestPolicy() (*Policy, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(time.Unix(1000, 0))
	p := New(true)
	p.Clock = clk
	return p, clk
}

func late(clk *clock.Mock) time.Time {
	return clk.Now().Add(-time.Millisecond)
}

func onTime(clk *clock.Mock) time.Time {
	return clk.Now().Add(time.Second)
}

func TestLateCounterMonotoneAndReset(t *testing.T) {
	p, clk := newTestPolicy()
	prev := p.LateCount()
	for range 20 {
		p.Observe(late(clk))
		require.GreaterOrEqual(t, p.LateCount(), prev)
		prev = p.LateCount()
	}
	require.Equal(t, int64(20), p.LateCount())

	p.Observe(onTime(clk))
	require.Equal(t, int64(0), p.LateCount())

	// a timestamp equal to now is late
	p.Observe(clk.Now())
	require.Equal(t, int64(1), p.LateCount())
}

func TestFourLateThenOnTimeIsNotDegraded(t *testing.T) {
	p, clk := newTestPolicy()
	for range 4 {
		require.Equal(t, ActionDecode, p.Decide())
		p.Observe(late(clk))
	}
	require.Equal(t, ActionDecode, p.Decide())
	p.Observe(onTime(clk))
	require.Equal(t, ActionDecode, p.Decide())
}

func TestEscalation(t *testing.T) {
	p, clk := newTestPolicy()
	var actions []Action
	for range 8 {
		a := p.Decide()
		actions = append(actions, a)
		p.Observe(late(clk))
	}
	require.Equal(t, []Action{
		ActionDecode, ActionDecode, ActionDecode, ActionDecode, ActionDecode,
		ActionDegrade, ActionDegrade, ActionDegrade,
	}, actions)
	require.Equal(t, int64(8), p.LateCount())

	// eight consecutive late frames: the next one is skipped and the
	// counter goes down by one only
	require.Equal(t, ActionSkip, p.Decide())
	require.Equal(t, int64(7), p.LateCount())
	require.Equal(t, ActionDegrade, p.Decide())
}

func TestDisabled(t *testing.T) {
	p, clk := newTestPolicy()
	p.Enabled = false
	for range 20 {
		require.Equal(t, ActionDecode, p.Decide())
		p.Observe(late(clk))
	}
	require.Equal(t, int64(20), p.LateCount())
}

func TestCustomThresholds(t *testing.T) {
	p, clk := newTestPolicy()
	p.DegradeAbove = 0
	p.SkipAt = 2
	require.Equal(t, ActionDecode, p.Decide())
	p.Observe(late(clk))
	require.Equal(t, ActionDegrade, p.Decide())
	p.Observe(late(clk))
	require.Equal(t, ActionSkip, p.Decide())
	p.Reset()
	require.Equal(t, ActionDecode, p.Decide())
}
