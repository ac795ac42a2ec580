package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBytes(t *testing.T) {
	p := NewBytes(1024)

	b := p.Get(100)
	require.Len(t, b, 100)
	p.Put(b)

	b = p.Get(10)
	require.Len(t, b, 10)

	big := make([]byte, 4096)
	p.Put(big) // must be silently dropped
	require.Len(t, p.Get(2048), 2048)
}

func TestPoolReset(t *testing.T) {
	type item struct{ v int }
	p := NewPool(
		func() *item { return &item{} },
		func(i *item) { i.v = 0 },
	)
	i := p.Get()
	i.v = 5
	p.Put(i)
	require.Equal(t, 0, i.v)
}
