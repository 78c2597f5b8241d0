package skeleton

import "math"

// gimbalEpsilon is the |cos(pitch)| below which the Z-X-Y decomposition
// treats the rotation as gimbal locked.
const gimbalEpsilon = 1e-6

// Vec3 is a three component vector indexed x, y, z.
type Vec3 [3]float64

// Add returns v + o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Scale returns v * s.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v[0] * s, v[1] * s, v[2] * s}
}

// Mat3 is a row-major 3x3 matrix. Entry [i][k] is row i, column k.
type Mat3 [3][3]float64

// Identity returns the identity rotation.
func Identity() Mat3 {
	return Mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Mul returns m * o.
func (m Mat3) Mul(o Mat3) Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			r[i][k] = m[i][0]*o[0][k] + m[i][1]*o[1][k] + m[i][2]*o[2][k]
		}
	}
	return r
}

// MulVec returns m * v.
func (m Mat3) MulVec(v Vec3) Vec3 {
	return Vec3{
		m[0][0]*v[0] + m[0][1]*v[1] + m[0][2]*v[2],
		m[1][0]*v[0] + m[1][1]*v[1] + m[1][2]*v[2],
		m[2][0]*v[0] + m[2][1]*v[1] + m[2][2]*v[2],
	}
}

// Transpose returns the transpose of m, which is its inverse for rotations.
func (m Mat3) Transpose() Mat3 {
	var r Mat3
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			r[i][k] = m[k][i]
		}
	}
	return r
}

// ApproxEqual reports whether every entry of m and o differs by at most tol.
func (m Mat3) ApproxEqual(o Mat3, tol float64) bool {
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			if math.Abs(m[i][k]-o[i][k]) > tol {
				return false
			}
		}
	}
	return true
}

// EulerZXY decomposes m into angles (x, y, z) in radians such that
// FromEulerZXY(x, y, z) reproduces m. Pitch (x) is taken from R[2][1]; this
// order stays well conditioned where an X-Y-Z decomposition degenerates.
//
// When |cos x| is below gimbalEpsilon the z angle is unrecoverable and is
// returned as 0, with the whole yaw folded into y.
func (m Mat3) EulerZXY() (x, y, z float64) {
	x = math.Asin(clampUnit(m[2][1]))
	cx := math.Cos(x)

	if math.Abs(cx) > gimbalEpsilon {
		z = math.Atan2(-m[0][1]/cx, m[1][1]/cx)
		y = math.Atan2(-m[2][0]/cx, m[2][2]/cx)
	} else {
		z = 0
		y = math.Atan2(m[0][2], m[0][0])
	}
	return x, y, z
}

// FromEulerZXY builds the rotation Rz(z) * Rx(x) * Ry(y).
func FromEulerZXY(x, y, z float64) Mat3 {
	cz, sz := math.Cos(z), math.Sin(z)
	cx, sx := math.Cos(x), math.Sin(x)
	cy, sy := math.Cos(y), math.Sin(y)

	return Mat3{
		{cz*cy - sz*sx*sy, -sz * cx, cz*sy + sz*sx*cy},
		{sz*cy + cz*sx*sy, cz * cx, sz*sy - cz*sx*cy},
		{-cx * sy, sx, cx * cy},
	}
}

// EulerXYZ returns an X-Y-Z readout of m for diagnostics. It is not the
// inverse of FromEulerZXY and must not feed back into joint transforms.
func (m Mat3) EulerXYZ() (x, y, z float64) {
	y = math.Asin(clampUnit(-m[2][0]))
	if math.Abs(math.Cos(y)) > gimbalEpsilon {
		x = math.Atan2(m[2][1], m[2][2])
		z = math.Atan2(m[1][0], m[0][0])
	} else {
		x = math.Atan2(-m[1][2], m[1][1])
		z = 0
	}
	return x, y, z
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
