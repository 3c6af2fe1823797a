package analytics_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbook-analytics/src/analytics"
)

func TestRingEvictsOldest(t *testing.T) {
	r := analytics.NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	require.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{3, 4, 5}, r.Slice())
	assert.Equal(t, 3, r.At(0))
	assert.Equal(t, 5, r.At(2))
}

func TestRingLast(t *testing.T) {
	r := analytics.NewRing[float64](10)
	for i := 0; i < 4; i++ {
		r.Push(float64(i))
	}

	assert.Equal(t, []float64{2, 3}, r.Last(2))
	assert.Equal(t, []float64{0, 1, 2, 3}, r.Last(100), "n larger than the ring returns everything")
	assert.Nil(t, r.Last(0))

	last := r.Last(2)
	last[0] = 42
	assert.Equal(t, 2.0, r.At(2), "Last must return a copy")
}

func TestRingAtOutOfRange(t *testing.T) {
	r := analytics.NewRing[int](2)
	r.Push(1)
	assert.Panics(t, func() { r.At(1) })
}
