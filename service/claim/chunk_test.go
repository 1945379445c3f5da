package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunk_Properties(t *testing.T) {
	for n := 0; n <= 25; n++ {
		items := make([]int, n)
		for i := range items {
			items[i] = i
		}

		groups := Chunk(items, 2)

		assert.Len(t, groups, (n+1)/2, "n=%d", n)
		var flat []int
		for i, g := range groups {
			assert.LessOrEqual(t, len(g), 2)
			assert.NotEmpty(t, g)
			if i < len(groups)-1 {
				assert.Len(t, g, 2, "only the last group may be short")
			}
			flat = append(flat, g...)
		}
		if n == 0 {
			assert.Empty(t, flat)
			continue
		}
		assert.Equal(t, items, flat, "concatenation reconstructs the input")
	}
}

func TestChunk_OtherSizes(t *testing.T) {
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, Chunk([]string{"a", "b", "c", "d"}, 3))
	assert.Equal(t, [][]string{{"a"}, {"b"}}, Chunk([]string{"a", "b"}, 1))
	assert.Empty(t, Chunk([]string(nil), 2))
}

func TestChunk_GroupsDoNotOverlapOnAppend(t *testing.T) {
	items := []int{1, 2, 3, 4}
	groups := Chunk(items, 2)
	_ = append(groups[0], 99)
	assert.Equal(t, []int{3, 4}, groups[1])
}

func TestChunk_PanicsOnBadSize(t *testing.T) {
	assert.Panics(t, func() { Chunk([]int{1}, 0) })
}
