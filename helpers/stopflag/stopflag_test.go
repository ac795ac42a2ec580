package stopflag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlag(t *testing.T) {
	ctx := context.Background()

	var nilFlag *Flag
	require.False(t, nilFlag.IsRaised())
	require.Nil(t, nilFlag.Chan())

	f := New()
	require.False(t, f.IsRaised())
	f.Raise(ctx)
	f.Raise(ctx)
	require.True(t, f.IsRaised())
	select {
	case <-f.Chan():
	default:
		t.Fatal("the channel is expected to be closed")
	}
}
