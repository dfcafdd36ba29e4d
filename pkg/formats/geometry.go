package formats

import (
	"fmt"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Influences is the fixed number of bone weights per vertex.
const Influences = 4

// Geometry is one split, interleaved mesh. All per-vertex slices have the
// same length; Weights and BoneIndices are empty for unskinned meshes.
type Geometry struct {
	Positions   []math.Vec3
	Indices     []int32
	Normals     []math.Vec3
	UVs         []math.Vec2
	Weights     [][Influences]float32
	BoneIndices [][Influences]int32
}

// Size returns the encoded size of the record.
func (g *Geometry) Size() int {
	return 5*4 +
		len(g.Positions)*12 + len(g.Indices)*4 + len(g.Normals)*12 + len(g.UVs)*8 +
		len(g.Weights)*Influences*8
}

// Encode appends the geometry record to w.
func (g *Geometry) Encode(w *Writer) error {
	if len(g.Weights) != len(g.BoneIndices) {
		return fmt.Errorf("geometry: %d weights but %d bone index sets", len(g.Weights), len(g.BoneIndices))
	}

	w.Int32(int32(len(g.Positions)))
	for _, p := range g.Positions {
		w.Vec3(p)
	}
	w.Int32(int32(len(g.Indices)))
	w.Int32s(g.Indices)
	w.Int32(int32(len(g.Normals)))
	for _, n := range g.Normals {
		w.Vec3(n)
	}
	w.Int32(int32(len(g.UVs)))
	for _, uv := range g.UVs {
		w.Float32(uv.X)
		w.Float32(uv.Y)
	}
	w.Int32(int32(len(g.Weights)))
	for _, bw := range g.Weights {
		w.Float32s(bw[:])
	}
	for _, bi := range g.BoneIndices {
		w.Int32s(bi[:])
	}
	return nil
}

// DecodeGeometry reads one geometry record.
func DecodeGeometry(r *Reader) (*Geometry, error) {
	g := &Geometry{}

	n := r.Count(12)
	g.Positions = make([]math.Vec3, n)
	for i := range g.Positions {
		g.Positions[i] = r.Vec3()
	}
	g.Indices = r.Int32s(r.Count(4))

	n = r.Count(12)
	g.Normals = make([]math.Vec3, n)
	for i := range g.Normals {
		g.Normals[i] = r.Vec3()
	}

	n = r.Count(8)
	g.UVs = make([]math.Vec2, n)
	for i := range g.UVs {
		g.UVs[i] = math.Vec2{X: r.Float32(), Y: r.Float32()}
	}

	if n = r.Count(Influences * 8); n > 0 {
		g.Weights = make([][Influences]float32, n)
		for i := range g.Weights {
			for j := range g.Weights[i] {
				g.Weights[i][j] = r.Float32()
			}
		}
		g.BoneIndices = make([][Influences]int32, n)
		for i := range g.BoneIndices {
			for j := range g.BoneIndices[i] {
				g.BoneIndices[i][j] = r.Int32()
			}
		}
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// EncodeGeometries serializes records back to back.
func EncodeGeometries(geos []*Geometry) ([]byte, error) {
	size := 0
	for _, g := range geos {
		size += g.Size()
	}
	w := NewWriter(size)
	for i, g := range geos {
		if err := g.Encode(w); err != nil {
			return nil, fmt.Errorf("encoding geometry %d: %w", i, err)
		}
	}
	return w.Bytes(), nil
}

// DecodeGeometries parses a geometry blob.
func DecodeGeometries(data []byte) ([]*Geometry, error) {
	r := NewReader(data)
	var out []*Geometry
	for r.Remaining() > 0 {
		g, err := DecodeGeometry(r)
		if err != nil {
			return nil, fmt.Errorf("decoding geometry %d: %w", len(out), err)
		}
		out = append(out, g)
	}
	return out, nil
}
