package formats

import (
	"fmt"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Character maps a skeleton onto node ids. BoneMapping has one node id per
// armature bone (-1 when the bone was not emitted); SkeletonMapping lists the
// node ids of the skeleton with one rest transform per entry.
type Character struct {
	RootID          int32
	BoneMapping     []int32
	SkeletonMapping []int32
	Positions       []math.Vec3
	Rotations       []math.Quat
	Scales          []math.Vec3
}

// Size returns the encoded size of the record.
func (c *Character) Size() int {
	return 12 + len(c.BoneMapping)*4 + len(c.SkeletonMapping)*(4+12+16+12)
}

// Encode appends the character record to w.
func (c *Character) Encode(w *Writer) error {
	n := len(c.SkeletonMapping)
	if len(c.Positions) != n || len(c.Rotations) != n || len(c.Scales) != n {
		return fmt.Errorf("character %d: skeleton has %d entries but %d/%d/%d transforms",
			c.RootID, n, len(c.Positions), len(c.Rotations), len(c.Scales))
	}

	w.Int32(int32(len(c.BoneMapping)))
	w.Int32(int32(n))
	w.Int32(c.RootID)
	w.Int32s(c.BoneMapping)
	w.Int32s(c.SkeletonMapping)
	for _, p := range c.Positions {
		w.Vec3(p)
	}
	for _, q := range c.Rotations {
		w.Quat(q)
	}
	for _, s := range c.Scales {
		w.Vec3(s)
	}
	return nil
}

// DecodeCharacter reads one character record.
func DecodeCharacter(r *Reader) (*Character, error) {
	boneCount := r.Count(4)
	skelCount := r.Count(44)
	c := &Character{RootID: r.Int32()}
	c.BoneMapping = r.Int32s(boneCount)
	c.SkeletonMapping = r.Int32s(skelCount)

	c.Positions = make([]math.Vec3, skelCount)
	for i := range c.Positions {
		c.Positions[i] = r.Vec3()
	}
	c.Rotations = make([]math.Quat, skelCount)
	for i := range c.Rotations {
		c.Rotations[i] = r.Quat()
	}
	c.Scales = make([]math.Vec3, skelCount)
	for i := range c.Scales {
		c.Scales[i] = r.Vec3()
	}

	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeCharacters serializes records back to back.
func EncodeCharacters(chars []*Character) ([]byte, error) {
	size := 0
	for _, c := range chars {
		size += c.Size()
	}
	w := NewWriter(size)
	for i, c := range chars {
		if err := c.Encode(w); err != nil {
			return nil, fmt.Errorf("encoding character %d: %w", i, err)
		}
	}
	return w.Bytes(), nil
}

// DecodeCharacters parses a characters blob.
func DecodeCharacters(data []byte) ([]*Character, error) {
	r := NewReader(data)
	var out []*Character
	for r.Remaining() > 0 {
		c, err := DecodeCharacter(r)
		if err != nil {
			return nil, fmt.Errorf("decoding character %d: %w", len(out), err)
		}
		out = append(out, c)
	}
	return out, nil
}
