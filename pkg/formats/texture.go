package formats

import "fmt"

// TextureFormatRaw marks texture bytes as the unmodified image file.
const TextureFormatRaw int32 = 0

// Texture is one texture record. Data holds the image file as stored on disk.
type Texture struct {
	Width  int32
	Height int32
	Format int32
	Data   []byte
}

// Size returns the encoded size of the record.
func (t *Texture) Size() int {
	return 16 + len(t.Data)
}

// Encode appends the texture record to w.
func (t *Texture) Encode(w *Writer) {
	w.Int32(t.Width)
	w.Int32(t.Height)
	w.Int32(t.Format)
	w.Int32(int32(len(t.Data)))
	w.Raw(t.Data)
}

// DecodeTexture reads one texture record. Data aliases the input buffer.
func DecodeTexture(r *Reader) (*Texture, error) {
	t := &Texture{Width: r.Int32(), Height: r.Int32(), Format: r.Int32()}
	t.Data = r.Raw(r.Count(1))
	if err := r.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// EncodeTextures serializes records back to back.
func EncodeTextures(texs []*Texture) []byte {
	size := 0
	for _, t := range texs {
		size += t.Size()
	}
	w := NewWriter(size)
	for _, t := range texs {
		t.Encode(w)
	}
	return w.Bytes()
}

// DecodeTextures parses a textures blob.
func DecodeTextures(data []byte) ([]*Texture, error) {
	r := NewReader(data)
	var out []*Texture
	for r.Remaining() > 0 {
		t, err := DecodeTexture(r)
		if err != nil {
			return nil, fmt.Errorf("decoding texture %d: %w", len(out), err)
		}
		out = append(out, t)
	}
	return out, nil
}
