package traversal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/arxiv-collector/internal/domain"
)

func TestCursor_AdvanceWraps(t *testing.T) {
	c := New([]string{"a", "b", "c"})

	item, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "a", item)

	var seen []string
	for range 4 {
		item, ok := c.Advance()
		require.True(t, ok)
		seen = append(seen, item)
	}
	assert.Equal(t, []string{"b", "c", "a", "b"}, seen)
	assert.Equal(t, 1, c.Index())
	assert.Equal(t, 2, c.Position())
}

func TestCursor_RetreatWraps(t *testing.T) {
	c := New([]string{"a", "b", "c"})

	item, _ := c.Retreat()
	assert.Equal(t, "c", item)
	assert.Equal(t, 2, c.Index())

	item, _ = c.Retreat()
	assert.Equal(t, "b", item)
}

func TestCursor_JumpTo(t *testing.T) {
	c := New([]int{10, 20, 30})

	item, err := c.JumpTo(3)
	require.NoError(t, err)
	assert.Equal(t, 30, item)
	assert.Equal(t, 2, c.Index())

	for _, n := range []int{0, -1, 4} {
		_, err := c.JumpTo(n)
		assert.True(t, errors.Is(err, domain.ErrOutOfRange), "n=%d", n)
		assert.Equal(t, 2, c.Index(), "index unchanged after rejected jump")
	}

	item, err = c.JumpTo(1)
	require.NoError(t, err)
	assert.Equal(t, 10, item)
}

func TestCursor_SingleItem(t *testing.T) {
	c := New([]string{"only"})
	item, _ := c.Advance()
	assert.Equal(t, "only", item)
	item, _ = c.Retreat()
	assert.Equal(t, "only", item)
	assert.Equal(t, 0, c.Index())
}

func TestCursor_Empty(t *testing.T) {
	c := New[string](nil)

	_, ok := c.Current()
	assert.False(t, ok)
	_, ok = c.Advance()
	assert.False(t, ok)
	_, ok = c.Retreat()
	assert.False(t, ok)
	_, err := c.JumpTo(1)
	assert.True(t, errors.Is(err, domain.ErrOutOfRange))
	assert.Equal(t, 0, c.Len())
}

func TestCursor_Terminate(t *testing.T) {
	c := New([]string{"a", "b"})
	c.Terminate()

	assert.True(t, c.Terminated())
	_, ok := c.Advance()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Index())
	_, err := c.JumpTo(2)
	assert.Error(t, err)
}
