package micro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolStablePointers(t *testing.T) {
	p := NewPool[int]()
	first := p.Allocate()
	*first = 99

	// Growing past several pages must not move the first element.
	for i := 0; i < poolPageSize*3; i++ {
		*p.Allocate() = i
	}
	require.Equal(t, 99, *p.View(0))
	require.Same(t, first, p.View(0))
	require.Equal(t, poolPageSize*3+1, p.Allocated())
}

func TestPoolAllocateNContiguous(t *testing.T) {
	p := NewPool[int]()
	idx, first := p.AllocateN(5)
	require.Equal(t, 0, idx)
	require.Same(t, first, p.View(idx))
	for i := 0; i < 5; i++ {
		*p.View(idx + i) = i * 10
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, i*10, *p.View(idx+i))
	}
}

func TestPoolAllocateNNeverSpansPages(t *testing.T) {
	p := NewPool[int]()
	// Nearly fill the first page, then ask for a range that would cross it.
	for i := 0; i < poolPageSize-2; i++ {
		p.Allocate()
	}
	idx, _ := p.AllocateN(8)
	require.Equal(t, 0, idx%poolPageSize, "range must start on a fresh page")
	for i := 0; i < 8; i++ {
		*p.View(idx+i) = i
	}
}

func TestPoolReset(t *testing.T) {
	p := NewPool[int]()
	for i := 0; i < 10; i++ {
		*p.Allocate() = 7
	}
	p.Reset()
	require.Equal(t, 0, p.Allocated())
	require.Equal(t, 0, *p.Allocate())
}
