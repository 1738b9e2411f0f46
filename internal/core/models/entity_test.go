package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tree(t *testing.T) *Entity {
	t.Helper()
	root := NewEntity("jackal")
	base := NewEntity("base_link")
	laser := NewEntity("laser_link")
	wheel := NewEntity("wheel")
	require.NoError(t, root.AddChild(base))
	require.NoError(t, base.AddChild(laser))
	require.NoError(t, root.AddChild(wheel))
	return root
}

func TestFindChildDepthFirst(t *testing.T) {
	root := tree(t)

	laser, ok := root.FindChild("laser_link")
	require.True(t, ok)
	assert.Equal(t, "jackal/base_link/laser_link", laser.Path())
	assert.Same(t, root, laser.Root())

	_, ok = root.FindChild("jackal")
	assert.False(t, ok)
	_, ok = root.FindChild("missing")
	assert.False(t, ok)
}

func TestAddChildRejectsCyclesAndReparenting(t *testing.T) {
	root := tree(t)
	base, _ := root.FindChild("base_link")

	assert.ErrorIs(t, base.AddChild(root), ErrCyclicParent)
	assert.ErrorIs(t, root.AddChild(base), ErrHasParent)
	assert.ErrorIs(t, root.AddChild(NewEntity("")), ErrEmptyName)
	assert.ErrorIs(t, root.AddChild(nil), ErrNilEntity)
}

func TestRemoveChild(t *testing.T) {
	root := tree(t)
	wheel, ok := root.RemoveChild("wheel")
	require.True(t, ok)
	assert.Nil(t, wheel.Parent())
	assert.Len(t, root.Children(), 1)

	_, ok = root.RemoveChild("wheel")
	assert.False(t, ok)
}

func TestComponents(t *testing.T) {
	root := tree(t)
	laser, _ := root.FindChild("laser_link")

	prev, err := root.SetComponent("state", 1)
	require.NoError(t, err)
	assert.Nil(t, prev)
	_, err = laser.SetComponent("scan", 2)
	require.NoError(t, err)
	_, err = root.SetComponent("label", "x")
	require.NoError(t, err)

	prev, err = root.SetComponent("state", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, prev)

	assert.Equal(t, []int{3, 2}, ComponentsOf[int](root))
	assert.Equal(t, []any{3, "x"}, root.Components())

	assert.True(t, root.RemoveComponent("state"))
	_, ok := root.Component("state")
	assert.False(t, ok)

	_, err = root.SetComponent("", 1)
	assert.ErrorIs(t, err, ErrEmptyCompName)
	_, err = root.SetComponent("nil", nil)
	assert.ErrorIs(t, err, ErrNilComponent)
}
