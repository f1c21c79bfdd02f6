package neighbors

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinSmall(t *testing.T) {
	xs := []float64{0, 1, 5, 0.5}
	ys := []float64{0, 0, 5, 0}
	ix := New(xs, ys)
	require.Equal(t, 4, ix.Len())

	hits := ix.Within(0, 0, 1.001)
	require.Len(t, hits, 3)
	assert.Equal(t, Hit{ID: 0, Dist2: 0}, hits[0])
	assert.Equal(t, 3, hits[1].ID)
	assert.Equal(t, 1, hits[2].ID)

	assert.Empty(t, ix.Within(10, 10, 1))
	assert.Len(t, ix.NearestWithin(0, 0, 1.001, 2), 2)
}

func TestEmptyIndex(t *testing.T) {
	ix := New(nil, nil)
	assert.Equal(t, 0, ix.Len())
	assert.Nil(t, ix.Within(0, 0, 100))
}

func TestWithinMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 500
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = rng.Float64() * 100
		ys[i] = rng.Float64() * 100
	}
	ix := New(xs, ys)

	for q := 0; q < 50; q++ {
		qx, qy, r := rng.Float64()*100, rng.Float64()*100, 1+rng.Float64()*10
		var want []int
		for i := range xs {
			dx, dy := xs[i]-qx, ys[i]-qy
			if dx*dx+dy*dy <= r*r {
				want = append(want, i)
			}
		}
		var got []int
		for _, h := range ix.Within(qx, qy, r) {
			got = append(got, h.ID)
		}
		sort.Ints(got)
		assert.Equal(t, want, got)
	}
}
