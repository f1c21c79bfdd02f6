package linking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testForbidden = 1e9

func totalCost(cost [][]float64, result []int) float64 {
	var sum float64
	for i, j := range result {
		if j >= 0 {
			sum += cost[i][j]
		}
	}
	return sum
}

func TestAssign_Empty(t *testing.T) {
	assert.Nil(t, assign(nil, testForbidden))
	assert.Equal(t, []int{-1, -1}, assign([][]float64{{}, {}}, testForbidden))
}

func TestAssign_SingleElement(t *testing.T) {
	assert.Equal(t, []int{0}, assign([][]float64{{5}}, testForbidden))
}

func TestAssign_SquareOptimal(t *testing.T) {
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result := assign(cost, testForbidden)
	require.Len(t, result, 3)
	assert.Equal(t, 10.0, totalCost(cost, result))
}

func TestAssign_Forbidden(t *testing.T) {
	cost := [][]float64{
		{1, 2},
		{testForbidden, testForbidden},
	}
	result := assign(cost, testForbidden)
	assert.GreaterOrEqual(t, result[0], 0)
	assert.Equal(t, -1, result[1])
}

func TestAssign_MoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	result := assign(cost, testForbidden)
	assert.Equal(t, []int{0, 1, -1}, result)
}

func TestAssign_MoreColsThanRows(t *testing.T) {
	cost := [][]float64{
		{7, 3, 9, 1},
		{2, 8, 6, 4},
	}
	result := assign(cost, testForbidden)
	assert.Equal(t, []int{3, 0}, result)
}

func TestAssign_MatchesBruteForce(t *testing.T) {
	cost := [][]float64{
		{4, 1, 3, 8},
		{2, 0, 5, 3},
		{3, 2, 2, 6},
		{7, 4, 1, 2},
	}
	best := 1e300
	perm := []int{0, 1, 2, 3}
	var permute func(k int)
	permute = func(k int) {
		if k == len(perm) {
			best = min(best, totalCost(cost, perm))
			return
		}
		for i := k; i < len(perm); i++ {
			perm[k], perm[i] = perm[i], perm[k]
			permute(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	permute(0)

	assert.Equal(t, best, totalCost(cost, assign(cost, testForbidden)))
}
