package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInGroupsOf(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, InGroupsOf(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, InGroupsOf(items, 5))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, InGroupsOf(items, 0))
	assert.Equal(t, [][]int{{1}, {2}, {3}, {4}, {5}}, InGroupsOf(items, 1))
	assert.Len(t, InGroupsOf(make([]int, 40), 20), 2)
}

func TestInGroupsFitting(t *testing.T) {
	sum := func(group []int) int {
		s := 0
		for _, v := range group {
			s += v
		}
		return s
	}
	atMost := func(limit int) func([]int) bool {
		return func(group []int) bool { return sum(group) <= limit }
	}
	items := []int{3, 4, 2, 9, 1, 1}

	assert.Equal(t, [][]int{{3, 4}, {2}, {9}, {1, 1}}, InGroupsFitting(items, 0, atMost(8)))
	assert.Equal(t, [][]int{{3}, {4, 2}, {9}, {1, 1}}, InGroupsFitting([]int{3, 4, 2, 9, 1, 1}, 2, atMost(6)))
	assert.Equal(t, [][]int{{3}, {4}, {2}, {9}, {1}, {1}}, InGroupsFitting(items, 0, atMost(0)))
	assert.Equal(t, [][]int{items}, InGroupsFitting(items, 0, nil))
	assert.Equal(t, [][]int{{}}, InGroupsFitting([]int{}, 3, atMost(1)))
}
