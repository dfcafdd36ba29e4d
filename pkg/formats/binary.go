// Package formats encodes and decodes the binary scene blobs served to
// VPET clients. All layouts are little-endian with no padding.
package formats

import (
	"encoding/binary"
	"errors"
	gomath "math"

	"github.com/Faultbox/vpet-bridge/pkg/encoding"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Decoding errors.
var (
	ErrTruncated     = errors.New("truncated scene data")
	ErrInvalidCount  = errors.New("invalid element count")
	ErrUnknownNode   = errors.New("unknown node type")
	ErrTrailingBytes = errors.New("trailing bytes after record")
)

// maxElements bounds any count read from the wire.
const maxElements = 1 << 24

// Writer appends little-endian values to a growing buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity pre-allocated.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) Int32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) Float32(v float32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, gomath.Float32bits(v))
}

func (w *Writer) Bool32(v bool) {
	if v {
		w.Int32(1)
		return
	}
	w.Int32(0)
}

func (w *Writer) Int32s(v []int32) {
	for _, x := range v {
		w.Int32(x)
	}
}

func (w *Writer) Float32s(v []float32) {
	for _, x := range v {
		w.Float32(x)
	}
}

func (w *Writer) Vec3(v math.Vec3) {
	w.Float32(v.X)
	w.Float32(v.Y)
	w.Float32(v.Z)
}

func (w *Writer) Quat(q math.Quat) {
	w.Float32(q.X)
	w.Float32(q.Y)
	w.Float32(q.Z)
	w.Float32(q.W)
}

func (w *Writer) Color(c math.Color) {
	w.Float32(c.R)
	w.Float32(c.G)
	w.Float32(c.B)
	w.Float32(c.A)
}

// Name writes a fixed 64-byte name field.
func (w *Writer) Name(s string) {
	w.buf = append(w.buf, encoding.Name(s)...)
}

// Raw appends b unchanged.
func (w *Writer) Raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// Reader consumes little-endian values. The first short read sets a sticky
// ErrTruncated and every later read returns zero.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader wraps data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Remaining returns the unread byte count.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = ErrTruncated
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) Int32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *Reader) Float32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *Reader) Bool32() bool { return r.Int32() != 0 }

// Count reads an element count and validates it against the bytes left,
// assuming each element is at least elemSize bytes.
func (r *Reader) Count(elemSize int) int {
	n := r.Int32()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > maxElements || int(n)*elemSize > r.Remaining() {
		r.err = ErrInvalidCount
		return 0
	}
	return int(n)
}

func (r *Reader) Int32s(n int) []int32 {
	if n == 0 || r.err != nil {
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = r.Int32()
	}
	return out
}

func (r *Reader) Float32s(n int) []float32 {
	if n == 0 || r.err != nil {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = r.Float32()
	}
	return out
}

func (r *Reader) Vec3() math.Vec3 {
	return math.Vec3{X: r.Float32(), Y: r.Float32(), Z: r.Float32()}
}

func (r *Reader) Quat() math.Quat {
	return math.Quat{X: r.Float32(), Y: r.Float32(), Z: r.Float32(), W: r.Float32()}
}

func (r *Reader) Color() math.Color {
	return math.Color{R: r.Float32(), G: r.Float32(), B: r.Float32(), A: r.Float32()}
}

// Name reads a fixed 64-byte name field.
func (r *Reader) Name() string {
	return encoding.FixedStringToUTF8(r.take(encoding.NameSize))
}

// Raw reads n bytes. The returned slice aliases the input.
func (r *Reader) Raw(n int) []byte {
	return r.take(n)
}
