package math

import (
	"math"
	"testing"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	n := Quat{X: 1, Y: 2, Z: 3, W: 4}.Normalize()
	if length := float32(math.Sqrt(float64(n.Dot(n)))); abs(length-1) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
	if got := (Quat{}).Normalize(); got != QuatIdentity() {
		t.Errorf("zero quaternion should normalize to identity, got %v", got)
	}
}

func TestQuatFromAxisAngle(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, float32(math.Pi/2))

	expectedW := float32(math.Cos(math.Pi / 4))
	expectedY := float32(math.Sin(math.Pi / 4))

	if abs(q.W-expectedW) > 0.001 {
		t.Errorf("QuatFromAxisAngle W: expected %v, got %v", expectedW, q.W)
	}
	if abs(q.Y-expectedY) > 0.001 {
		t.Errorf("QuatFromAxisAngle Y: expected %v, got %v", expectedY, q.Y)
	}
}

func TestQuatInverse(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{X: 1, Y: 2, Z: 3}.Normalize(), 0.7)
	got := q.Mul(q.Inverse())
	if !got.ApproxEqual(QuatIdentity(), 1e-6) {
		t.Errorf("q * q^-1 = %v, want identity", got)
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi/2))
	got := q.Rotate(Vec3{X: 1})
	if abs(got.X) > 0.001 || abs(got.Y-1) > 0.001 || abs(got.Z) > 0.001 {
		t.Errorf("Rotate (1,0,0) by 90deg about Z = %v, want (0,1,0)", got)
	}
}

func TestQuatMat4RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		q    Quat
	}{
		{"identity", QuatIdentity()},
		{"x 90", QuatFromAxisAngle(Vec3{X: 1}, float32(math.Pi/2))},
		{"y 180", QuatFromAxisAngle(Vec3{Y: 1}, float32(math.Pi))},
		{"z -120", QuatFromAxisAngle(Vec3{Z: 1}, -2.0944)},
		{"oblique", QuatFromAxisAngle(Vec3{X: 1, Y: -1, Z: 0.5}.Normalize(), 2.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuatFromMat4(tt.q.ToMat4())
			if !got.ApproxEqual(tt.q, 1e-5) {
				t.Errorf("QuatFromMat4(ToMat4(q)) = %v, want %v", got, tt.q)
			}
		})
	}
}
