package formats

import (
	"fmt"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// NodeType tags each node record.
type NodeType int32

const (
	NodeGroup       NodeType = 0
	NodeGeo         NodeType = 1
	NodeLight       NodeType = 2
	NodeCamera      NodeType = 3
	NodeSkinnedMesh NodeType = 4
	NodeCharacter   NodeType = 5
)

// String returns a human-readable node type name.
func (t NodeType) String() string {
	switch t {
	case NodeGroup:
		return "Group"
	case NodeGeo:
		return "Geo"
	case NodeLight:
		return "Light"
	case NodeCamera:
		return "Camera"
	case NodeSkinnedMesh:
		return "SkinnedMesh"
	case NodeCharacter:
		return "Character"
	default:
		return fmt.Sprintf("Unknown(%d)", int32(t))
	}
}

// LightType matches the client's light enumeration.
type LightType int32

const (
	LightSpot        LightType = 0
	LightDirectional LightType = 1
	LightPoint       LightType = 2
	LightArea        LightType = 3
)

// MaxBones is the fixed bone budget of a skinned node. Bind poses and bone
// ids are always padded to this size.
const MaxBones = 99

// Encoded sizes of the fixed parts of a node record.
const (
	NodeCommonSize  = 4 + 4 + 4 + 12 + 12 + 16 + 64
	GeoTailSize     = 4 + 4 + 16
	LightTailSize   = 4 + 4 + 4 + 4 + 12
	CameraTailSize  = 6 * 4
	SkinnedTailSize = GeoTailSize + 4 + 4 + 12 + 12 + MaxBones*16*4 + MaxBones*4
)

// Node is one entry of the flattened scene hierarchy. Exactly one of the
// variant pointers is set for Geo, Light, Camera and SkinnedMesh nodes;
// Group and Character nodes carry none.
type Node struct {
	Type       NodeType
	Editable   bool
	ChildCount int32
	Position   math.Vec3
	Scale      math.Vec3
	Rotation   math.Quat
	Name       string

	Geo     *GeoData
	Light   *LightData
	Camera  *CameraData
	Skinned *SkinnedData
}

// GeoData references geometry and material by index.
type GeoData struct {
	GeometryID int32
	MaterialID int32
	Color      math.Color
}

// LightData describes a light node.
type LightData struct {
	Type      LightType
	Intensity float32
	Angle     float32 // spot cone, degrees
	Range     float32
	Color     math.Vec3
}

// CameraData describes a camera node.
type CameraData struct {
	FOV       float32 // vertical, degrees
	Aspect    float32
	Near      float32
	Far       float32
	FocalDist float32
	Aperture  float32
}

// SkinnedData describes a skinned mesh node.
type SkinnedData struct {
	GeoData
	CharacterRootID int32
	BoundExtents    math.Vec3
	BoundCenter     math.Vec3
	BindPoses       [MaxBones][16]float32 // row-major
	BoneIDs         [MaxBones]int32       // -1 past the last bone
}

// NewSkinnedData returns SkinnedData with every bone slot marked unused.
func NewSkinnedData() *SkinnedData {
	s := &SkinnedData{CharacterRootID: -1}
	for i := range s.BoneIDs {
		s.BoneIDs[i] = -1
	}
	return s
}

// Size returns the encoded size of the node.
func (n *Node) Size() int {
	switch n.Type {
	case NodeGeo:
		return NodeCommonSize + GeoTailSize
	case NodeLight:
		return NodeCommonSize + LightTailSize
	case NodeCamera:
		return NodeCommonSize + CameraTailSize
	case NodeSkinnedMesh:
		return NodeCommonSize + SkinnedTailSize
	default:
		return NodeCommonSize
	}
}

// Encode appends the node record to w.
func (n *Node) Encode(w *Writer) error {
	w.Int32(int32(n.Type))
	w.Bool32(n.Editable)
	w.Int32(n.ChildCount)
	w.Vec3(n.Position)
	w.Vec3(n.Scale)
	w.Quat(n.Rotation)
	w.Name(n.Name)

	switch n.Type {
	case NodeGroup, NodeCharacter:
	case NodeGeo:
		if n.Geo == nil {
			return fmt.Errorf("node %q: geo payload missing", n.Name)
		}
		encodeGeo(w, n.Geo)
	case NodeLight:
		if n.Light == nil {
			return fmt.Errorf("node %q: light payload missing", n.Name)
		}
		l := n.Light
		w.Int32(int32(l.Type))
		w.Float32(l.Intensity)
		w.Float32(l.Angle)
		w.Float32(l.Range)
		w.Vec3(l.Color)
	case NodeCamera:
		if n.Camera == nil {
			return fmt.Errorf("node %q: camera payload missing", n.Name)
		}
		c := n.Camera
		w.Float32s([]float32{c.FOV, c.Aspect, c.Near, c.Far, c.FocalDist, c.Aperture})
	case NodeSkinnedMesh:
		if n.Skinned == nil {
			return fmt.Errorf("node %q: skinned payload missing", n.Name)
		}
		s := n.Skinned
		encodeGeo(w, &s.GeoData)
		w.Int32(MaxBones)
		w.Int32(s.CharacterRootID)
		w.Vec3(s.BoundExtents)
		w.Vec3(s.BoundCenter)
		for i := range s.BindPoses {
			w.Float32s(s.BindPoses[i][:])
		}
		w.Int32s(s.BoneIDs[:])
	default:
		return fmt.Errorf("%w: %d", ErrUnknownNode, n.Type)
	}
	return nil
}

func encodeGeo(w *Writer, g *GeoData) {
	w.Int32(g.GeometryID)
	w.Int32(g.MaterialID)
	w.Color(g.Color)
}

func decodeGeo(r *Reader) GeoData {
	return GeoData{GeometryID: r.Int32(), MaterialID: r.Int32(), Color: r.Color()}
}

// DecodeNode reads one node record.
func DecodeNode(r *Reader) (*Node, error) {
	n := &Node{
		Type:       NodeType(r.Int32()),
		Editable:   r.Bool32(),
		ChildCount: r.Int32(),
		Position:   r.Vec3(),
		Scale:      r.Vec3(),
		Rotation:   r.Quat(),
		Name:       r.Name(),
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	switch n.Type {
	case NodeGroup, NodeCharacter:
	case NodeGeo:
		g := decodeGeo(r)
		n.Geo = &g
	case NodeLight:
		n.Light = &LightData{
			Type:      LightType(r.Int32()),
			Intensity: r.Float32(),
			Angle:     r.Float32(),
			Range:     r.Float32(),
			Color:     r.Vec3(),
		}
	case NodeCamera:
		n.Camera = &CameraData{
			FOV:       r.Float32(),
			Aspect:    r.Float32(),
			Near:      r.Float32(),
			Far:       r.Float32(),
			FocalDist: r.Float32(),
			Aperture:  r.Float32(),
		}
	case NodeSkinnedMesh:
		s := &SkinnedData{GeoData: decodeGeo(r)}
		if l := r.Int32(); r.Err() == nil && l != MaxBones {
			return nil, fmt.Errorf("%w: bind pose length %d", ErrInvalidCount, l)
		}
		s.CharacterRootID = r.Int32()
		s.BoundExtents = r.Vec3()
		s.BoundCenter = r.Vec3()
		for i := range s.BindPoses {
			for j := range s.BindPoses[i] {
				s.BindPoses[i][j] = r.Float32()
			}
		}
		for i := range s.BoneIDs {
			s.BoneIDs[i] = r.Int32()
		}
		n.Skinned = s
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownNode, n.Type)
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("node %q: %w", n.Name, err)
	}
	return n, nil
}

// EncodeNodes serializes nodes back to back.
func EncodeNodes(nodes []*Node) ([]byte, error) {
	size := 0
	for _, n := range nodes {
		size += n.Size()
	}
	w := NewWriter(size)
	for i, n := range nodes {
		if err := n.Encode(w); err != nil {
			return nil, fmt.Errorf("encoding node %d: %w", i, err)
		}
	}
	return w.Bytes(), nil
}

// DecodeNodes parses a nodes blob.
func DecodeNodes(data []byte) ([]*Node, error) {
	r := NewReader(data)
	var nodes []*Node
	for r.Remaining() > 0 {
		n, err := DecodeNode(r)
		if err != nil {
			return nil, fmt.Errorf("decoding node %d: %w", len(nodes), err)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}
