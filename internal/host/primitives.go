package host

import (
	"fmt"

	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Cube returns an axis-aligned cube of edge size (2 when size is 0) with
// 8 vertices, 12 triangles and flat per-face normals.
func Cube(name string, size float32) *scene.Mesh {
	if size == 0 {
		size = 2
	}
	h := size / 2
	positions := []math.Vec3{
		{X: -h, Y: -h, Z: -h}, {X: h, Y: -h, Z: -h}, {X: h, Y: h, Z: -h}, {X: -h, Y: h, Z: -h},
		{X: -h, Y: -h, Z: h}, {X: h, Y: -h, Z: h}, {X: h, Y: h, Z: h}, {X: -h, Y: h, Z: h},
	}
	// Counter-clockwise quads seen from outside.
	quads := [6][4]int{
		{0, 3, 2, 1}, // -Z
		{4, 5, 6, 7}, // +Z
		{0, 1, 5, 4}, // -Y
		{2, 3, 7, 6}, // +Y
		{0, 4, 7, 3}, // -X
		{1, 2, 6, 5}, // +X
	}
	mesh := &scene.Mesh{Name: name, Positions: positions}
	for _, q := range quads {
		mesh.Triangles = append(mesh.Triangles, quadTriangles(positions, q)...)
	}
	return mesh
}

// Plane returns a square in the XY plane facing +Z.
func Plane(name string, size float32) *scene.Mesh {
	if size == 0 {
		size = 2
	}
	h := size / 2
	positions := []math.Vec3{
		{X: -h, Y: -h}, {X: h, Y: -h}, {X: h, Y: h}, {X: -h, Y: h},
	}
	return &scene.Mesh{
		Name:      name,
		Positions: positions,
		Triangles: quadTriangles(positions, [4]int{0, 1, 2, 3}),
	}
}

var quadUVs = [4]math.Vec2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}

func quadTriangles(positions []math.Vec3, q [4]int) [][3]scene.Loop {
	n := faceNormal(positions[q[0]], positions[q[1]], positions[q[2]])
	loop := func(i int) scene.Loop {
		return scene.Loop{Vertex: q[i], Normal: n, UV: quadUVs[i]}
	}
	return [][3]scene.Loop{
		{loop(0), loop(1), loop(2)},
		{loop(0), loop(2), loop(3)},
	}
}

// FlatMesh builds a mesh from raw triangles with one normal per face and
// zero UVs.
func FlatMesh(name string, positions []math.Vec3, triangles [][3]int) (*scene.Mesh, error) {
	mesh := &scene.Mesh{Name: name, Positions: positions}
	for i, tri := range triangles {
		for _, v := range tri {
			if v < 0 || v >= len(positions) {
				return nil, fmt.Errorf("%w: triangle %d references vertex %d of %d",
					ErrInvalidScene, i, v, len(positions))
			}
		}
		n := faceNormal(positions[tri[0]], positions[tri[1]], positions[tri[2]])
		mesh.Triangles = append(mesh.Triangles, [3]scene.Loop{
			{Vertex: tri[0], Normal: n},
			{Vertex: tri[1], Normal: n},
			{Vertex: tri[2], Normal: n},
		})
	}
	return mesh, nil
}

func faceNormal(a, b, c math.Vec3) math.Vec3 {
	return b.Sub(a).Cross(c.Sub(a)).Normalize()
}
