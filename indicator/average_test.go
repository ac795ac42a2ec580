package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDurationAverage(t *testing.T) {
	t.Run("warmup", func(t *testing.T) {
		a := NewDurationAverage(10)
		require.Equal(t, 10*time.Millisecond, a.Update(10*time.Millisecond))
		require.Equal(t, 15*time.Millisecond, a.Update(20*time.Millisecond))
		require.False(t, a.Valid())
		require.Equal(t, 15*time.Millisecond, a.Value())
	})

	t.Run("flat", func(t *testing.T) {
		a := NewDurationAverage(20)
		for range 100 {
			v := a.Update(time.Millisecond)
			require.InDelta(t, float64(time.Millisecond), float64(v), float64(time.Microsecond))
		}
		require.True(t, a.Valid())
	})

	t.Run("alternating", func(t *testing.T) {
		a := NewDurationAverage(50)
		for i := range 100 {
			a.Update(0)
			v := a.Update(100 * time.Millisecond)
			if i > 50 {
				require.True(t, 20*time.Millisecond <= v && v <= 100*time.Millisecond, "%d: %v", i, v)
			}
		}
	})
}
