package formats

// HeaderSize is the encoded size of Header.
const HeaderSize = 12

// Header carries scene-wide settings and is always fetched first.
type Header struct {
	LightIntensityFactor float32
	SenderID             int32
	FrameRate            int32
}

// Encode serializes the header.
func (h Header) Encode() []byte {
	w := NewWriter(HeaderSize)
	w.Float32(h.LightIntensityFactor)
	w.Int32(h.SenderID)
	w.Int32(h.FrameRate)
	return w.Bytes()
}

// DecodeHeader parses a header blob.
func DecodeHeader(data []byte) (Header, error) {
	r := NewReader(data)
	h := Header{
		LightIntensityFactor: r.Float32(),
		SenderID:             r.Int32(),
		FrameRate:            r.Int32(),
	}
	return h, r.Err()
}
