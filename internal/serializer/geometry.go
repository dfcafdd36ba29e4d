package serializer

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/coords"
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// splitKey identifies an output vertex. Loops with equal keys share one
// vertex.
type splitKey struct {
	pos     math.Vec3
	normal  math.Vec3
	uv      math.Vec2
	weights [formats.Influences]float32
	bones   [formats.Influences]int32
}

// geometryID returns the dedup identifier of a mesh entity. Skinned meshes
// also carry the armature and its bone count so they never share a record
// with an unskinned one.
func geometryID(e *scene.Entity, arm *scene.Entity) string {
	id := fmt.Sprintf("Mesh_%s_%d", e.Name, len(e.Mesh.Positions))
	if arm != nil && arm.Armature != nil {
		id += fmt.Sprintf("_Armature_%s_%d", arm.Name, len(arm.Armature.Bones))
	}
	return id
}

// geometry returns the index of e's geometry record, building it on first
// use. arm is the parent armature of a skinned mesh.
func (p *pass) geometry(e *scene.Entity, arm *scene.Entity) int32 {
	id := geometryID(e, arm)
	if idx, ok := p.geoIndex[id]; ok {
		return idx
	}

	var influences [][formats.Influences]float32
	var bones [][formats.Influences]int32
	if arm != nil {
		influences, bones = p.vertexWeights(e, arm)
	}
	geo := splitMesh(e.Mesh, influences, bones)

	idx := int32(len(p.res.Geometries))
	p.res.Geometries = append(p.res.Geometries, geo)
	p.geoIndex[id] = idx
	p.log.Debug("geometry",
		zap.String("id", id),
		zap.Int("vertices", len(geo.Positions)),
		zap.Int("indices", len(geo.Indices)))
	return idx
}

// splitMesh turns per-loop attributes into one vertex per distinct
// attribute combination. Output is in client conventions: positions and
// normals are remapped and triangle winding is reversed.
func splitMesh(m *scene.Mesh, weights [][formats.Influences]float32, bones [][formats.Influences]int32) *formats.Geometry {
	skinned := weights != nil
	geo := &formats.Geometry{Indices: make([]int32, 0, len(m.Triangles)*3)}
	seen := make(map[splitKey]int32, len(m.Positions))

	index := func(l scene.Loop) int32 {
		k := splitKey{pos: m.Positions[l.Vertex], normal: l.Normal, uv: l.UV}
		if skinned {
			k.weights = weights[l.Vertex]
			k.bones = bones[l.Vertex]
		}
		if idx, ok := seen[k]; ok {
			return idx
		}
		idx := int32(len(geo.Positions))
		seen[k] = idx
		geo.Positions = append(geo.Positions, coords.Vec(k.pos))
		geo.Normals = append(geo.Normals, coords.Vec(k.normal))
		geo.UVs = append(geo.UVs, k.uv)
		if skinned {
			geo.Weights = append(geo.Weights, k.weights)
			geo.BoneIndices = append(geo.BoneIndices, k.bones)
		}
		return idx
	}

	for _, tri := range m.Triangles {
		a, b, c := index(tri[0]), index(tri[1]), index(tri[2])
		a, b, c = coords.Triangle(a, b, c)
		geo.Indices = append(geo.Indices, a, b, c)
	}
	return geo
}

// vertexWeights returns the strongest influences per vertex, sorted by
// descending weight and zero padded. Bone indices refer to the armature's
// bone list; groups naming no bone are ignored.
func (p *pass) vertexWeights(e *scene.Entity, arm *scene.Entity) ([][formats.Influences]float32, [][formats.Influences]int32) {
	n := len(e.Mesh.Positions)
	weights := make([][formats.Influences]float32, n)
	bones := make([][formats.Influences]int32, n)

	type pair struct {
		weight float32
		bone   int32
	}
	var pairs []pair
	for v := 0; v < n && v < len(e.Mesh.Influences); v++ {
		pairs = pairs[:0]
		for _, inf := range e.Mesh.Influences[v] {
			if idx := arm.Armature.BoneIndex(inf.Bone); idx >= 0 && inf.Weight > 0 {
				pairs = append(pairs, pair{inf.Weight, int32(idx)})
			}
		}
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].weight > pairs[j].weight })
		for i := 0; i < len(pairs) && i < formats.Influences; i++ {
			weights[v][i] = pairs[i].weight
			bones[v][i] = pairs[i].bone
		}
		if len(pairs) > formats.Influences {
			p.log.Debug("dropping weak influences",
				zap.String("mesh", e.Name), zap.Int("vertex", v), zap.Int("influences", len(pairs)))
		}
	}
	return weights, bones
}

// bounds returns the center and half extents of geo's positions.
func bounds(geo *formats.Geometry) (center, extents math.Vec3) {
	if len(geo.Positions) == 0 {
		return math.Vec3{}, math.Vec3{}
	}
	lo, hi := geo.Positions[0], geo.Positions[0]
	for _, v := range geo.Positions[1:] {
		lo = lo.Min(v)
		hi = hi.Max(v)
	}
	return lo.Add(hi).Scale(0.5), hi.Sub(lo).Scale(0.5)
}

// validateMesh checks that every loop references an existing vertex.
func validateMesh(m *scene.Mesh) error {
	for i, tri := range m.Triangles {
		for _, l := range tri {
			if l.Vertex < 0 || l.Vertex >= len(m.Positions) {
				return fmt.Errorf("triangle %d references vertex %d of %d", i, l.Vertex, len(m.Positions))
			}
		}
	}
	return nil
}
