package skeleton

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEulerZXY_IsRotation(t *testing.T) {
	r := FromEulerZXY(0.3, -0.7, 1.2)

	// R * R^T must be identity for an orthonormal matrix.
	assert.True(t, r.Mul(r.Transpose()).ApproxEqual(Identity(), 1e-12))
}

func TestEulerZXY_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		x, y, z float64
	}{
		{"zero", 0, 0, 0},
		{"small", 0.1, 0.2, 0.3},
		{"negative", -0.5, -1.1, -2.0},
		{"large yaw", 0.4, 2.9, -2.8},
		{"near pitch limit", 1.45, 0.3, -0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromEulerZXY(tt.x, tt.y, tt.z)
			x, y, z := r.EulerZXY()

			assert.InDelta(t, tt.x, x, 1e-9)
			assert.InDelta(t, tt.y, y, 1e-9)
			assert.InDelta(t, tt.z, z, 1e-9)
			assert.True(t, FromEulerZXY(x, y, z).ApproxEqual(r, 1e-9))
		})
	}
}

func TestEulerZXY_GimbalLock(t *testing.T) {
	r := FromEulerZXY(math.Pi/2, 0.4, 0.25)

	x, y, z := r.EulerZXY()

	assert.InDelta(t, math.Pi/2, x, 1e-6)
	assert.Equal(t, 0.0, z)
	// The recomposed matrix is the same rotation even though the split
	// between y and z is lost.
	assert.True(t, FromEulerZXY(x, y, z).ApproxEqual(r, 1e-6))
}

func TestEulerXYZ_Identity(t *testing.T) {
	x, y, z := Identity().EulerXYZ()

	assert.Zero(t, x)
	assert.Zero(t, y)
	assert.Zero(t, z)
}

func TestDegRad(t *testing.T) {
	assert.InDelta(t, math.Pi, DegToRad(180), 1e-15)
	assert.InDelta(t, 90.0, RadToDeg(math.Pi/2), 1e-12)
	require.InDelta(t, 33.3, RadToDeg(DegToRad(33.3)), 1e-12)
}

func TestMat3_MulVec(t *testing.T) {
	// 90 degrees around z maps x onto y.
	r := FromEulerZXY(0, 0, math.Pi/2)
	v := r.MulVec(Vec3{1, 0, 0})

	assert.InDelta(t, 0, v[0], 1e-12)
	assert.InDelta(t, 1, v[1], 1e-12)
	assert.InDelta(t, 0, v[2], 1e-12)
}
