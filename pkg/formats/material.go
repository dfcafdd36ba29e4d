package formats

import (
	"fmt"

	"github.com/Faultbox/vpet-bridge/pkg/encoding"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// MaterialTypeStandard selects the client's standard shader.
const MaterialTypeStandard int32 = 1

// MaterialSourceStandard is the shader source name sent with every material.
const MaterialSourceStandard = "Standard"

// TextureRef binds a texture to a material slot. ID is -1 when the texture
// could not be loaded.
type TextureRef struct {
	ID     int32
	Offset math.Vec2
	Scale  math.Vec2
}

// Material is one material record.
type Material struct {
	Type     int32
	Name     string
	Source   string
	ID       int32
	Textures []TextureRef
}

// Size returns the encoded size of the record.
func (m *Material) Size() int {
	return 4 + 4 + encoding.NameSize + 4 + encoding.NameSize + 4 + 4 + len(m.Textures)*20
}

// Encode appends the material record to w.
func (m *Material) Encode(w *Writer) {
	w.Int32(m.Type)
	w.Int32(encoding.NameSize)
	w.Name(m.Name)
	w.Int32(encoding.NameSize)
	w.Name(m.Source)
	w.Int32(m.ID)
	w.Int32(int32(len(m.Textures)))
	for _, t := range m.Textures {
		w.Int32(t.ID)
		w.Float32(t.Offset.X)
		w.Float32(t.Offset.Y)
		w.Float32(t.Scale.X)
		w.Float32(t.Scale.Y)
	}
}

// DecodeMaterial reads one material record.
func DecodeMaterial(r *Reader) (*Material, error) {
	m := &Material{Type: r.Int32()}
	if l := r.Int32(); r.Err() == nil && l != encoding.NameSize {
		return nil, fmt.Errorf("%w: name length %d", ErrInvalidCount, l)
	}
	m.Name = r.Name()
	if l := r.Int32(); r.Err() == nil && l != encoding.NameSize {
		return nil, fmt.Errorf("%w: source length %d", ErrInvalidCount, l)
	}
	m.Source = r.Name()
	m.ID = r.Int32()

	n := r.Count(20)
	for i := 0; i < n; i++ {
		m.Textures = append(m.Textures, TextureRef{
			ID:     r.Int32(),
			Offset: math.Vec2{X: r.Float32(), Y: r.Float32()},
			Scale:  math.Vec2{X: r.Float32(), Y: r.Float32()},
		})
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeMaterials serializes records back to back.
func EncodeMaterials(mats []*Material) []byte {
	size := 0
	for _, m := range mats {
		size += m.Size()
	}
	w := NewWriter(size)
	for _, m := range mats {
		m.Encode(w)
	}
	return w.Bytes()
}

// DecodeMaterials parses a materials blob.
func DecodeMaterials(data []byte) ([]*Material, error) {
	r := NewReader(data)
	var out []*Material
	for r.Remaining() > 0 {
		m, err := DecodeMaterial(r)
		if err != nil {
			return nil, fmt.Errorf("decoding material %d: %w", len(out), err)
		}
		out = append(out, m)
	}
	return out, nil
}
