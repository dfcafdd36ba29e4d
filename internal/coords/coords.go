// Package coords holds the one coordinate conversion between the authoring
// host (right-handed, Z up) and VPET clients (left-handed, Y up).
//
// Vectors swap Y and Z. Rotations are inverted and written as (x, z, y, w)
// of the inverse. Lights and cameras look down -Z in the host but down +Z on
// the client, so their local frame is first turned -90° about X. The swap is
// a reflection, so triangle winding must be reversed for every mesh.
package coords

import (
	gomath "math"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// viewFix turns a host light or camera frame into the client's.
var viewFix = math.QuatFromAxisAngle(math.Vec3{X: 1}, float32(-gomath.Pi/2))

// Vec converts a position, scale or normal. It is its own inverse.
func Vec(v math.Vec3) math.Vec3 {
	return math.Vec3{X: v.X, Y: v.Z, Z: v.Y}
}

// Rotation converts a host rotation. view selects the light/camera fix.
func Rotation(q math.Quat, view bool) math.Quat {
	if view {
		q = q.Mul(viewFix)
	}
	inv := q.Normalize().Inverse()
	return math.Quat{X: inv.X, Y: inv.Z, Z: inv.Y, W: inv.W}
}

// FromWireRotation undoes Rotation.
func FromWireRotation(w math.Quat, view bool) math.Quat {
	q := math.Quat{X: w.X, Y: w.Z, Z: w.Y, W: w.W}.Inverse()
	if view {
		q = q.Mul(viewFix.Inverse())
	}
	return q.Normalize()
}

// swap is the Y/Z permutation matrix.
var swap = math.Mat4{
	1, 0, 0, 0,
	0, 0, 1, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// Matrix converts an affine transform by conjugating it with the axis swap.
func Matrix(m math.Mat4) math.Mat4 {
	return swap.Mul(m).Mul(swap)
}

// Triangle reverses winding to compensate for the reflection.
func Triangle(a, b, c int32) (int32, int32, int32) {
	return a, c, b
}
