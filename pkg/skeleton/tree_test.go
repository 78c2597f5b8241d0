package skeleton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHumanoid(t *testing.T) *Tree {
	t.Helper()

	tree := NewTree("root")
	spine := IdentityTransform()
	spine.Translate = Vec3{0, 0, 10}
	require.NoError(t, tree.AddJoint("root", "spine", spine))

	neck := IdentityTransform()
	neck.Translate = Vec3{0, 0, 5}
	require.NoError(t, tree.AddJoint("spine", "neck", neck))
	require.NoError(t, tree.AddJoint("spine", "clavicle", IdentityTransform()))
	return tree
}

func TestTree_FindJoint(t *testing.T) {
	tree := newHumanoid(t)

	j, ok := tree.FindJoint("neck")
	require.True(t, ok)
	assert.Equal(t, "neck", j.Name)
	assert.Equal(t, "spine", j.Parent.Name)

	_, ok = tree.FindJoint("tail")
	assert.False(t, ok)
	assert.Equal(t, 4, tree.Len())
}

func TestTree_AddJoint_Errors(t *testing.T) {
	tree := newHumanoid(t)

	assert.Error(t, tree.AddJoint("missing", "x", IdentityTransform()))
	assert.Error(t, tree.AddJoint("root", "neck", IdentityTransform()))
	assert.Error(t, tree.AddJoint("root", "", IdentityTransform()))
}

func TestTree_UpdateWorld(t *testing.T) {
	tree := newHumanoid(t)

	spine, _ := tree.FindJoint("spine")
	spine.Local.Rotate = FromEulerZXY(0, 0, math.Pi/2)
	spine.Local.Scale = 2

	neck, _ := tree.FindJoint("neck")
	neck.Local.Translate = Vec3{1, 0, 0}

	tree.UpdateWorld()

	// Neck offset is scaled by 2 and rotated onto +y, then added to spine.
	assert.InDelta(t, 0, neck.World.Translate[0], 1e-12)
	assert.InDelta(t, 2, neck.World.Translate[1], 1e-12)
	assert.InDelta(t, 10, neck.World.Translate[2], 1e-12)
	assert.InDelta(t, 2, neck.World.Scale, 1e-12)
}

func TestTree_Walk_ParentsFirst(t *testing.T) {
	tree := newHumanoid(t)

	var order []string
	tree.Walk(func(j *Joint) { order = append(order, j.Name) })

	require.Len(t, order, 4)
	assert.Equal(t, "root", order[0])
	assert.Equal(t, "spine", order[1])
}
