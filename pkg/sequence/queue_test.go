package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelineOrdersByTimeThenPush(t *testing.T) {
	tl := NewTimeline[string]()
	tl.Push(0.3, "c")
	tl.Push(0.1, "a1")
	tl.Push(0.2, "b")
	tl.Push(0.1, "a2")

	v, at, ok := tl.Peek()
	require.True(t, ok)
	assert.Equal(t, "a1", v)
	assert.Equal(t, 0.1, at)

	assert.Nil(t, tl.PopDue(0.05))
	assert.Equal(t, []string{"a1", "a2"}, tl.PopDue(0.1))
	assert.Equal(t, []string{"b", "c"}, tl.PopDue(1))
	assert.Equal(t, 0, tl.Len())

	_, _, ok = tl.Peek()
	assert.False(t, ok)
}
