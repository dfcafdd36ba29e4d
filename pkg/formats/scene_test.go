package formats

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{LightIntensityFactor: 1, SenderID: 23, FrameRate: 60}
	data := h.Encode()
	if len(data) != HeaderSize {
		t.Fatalf("header size = %d, want %d", len(data), HeaderSize)
	}
	got, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != h {
		t.Errorf("got %+v, want %+v", got, h)
	}

	if _, err := DecodeHeader(data[:7]); !errors.Is(err, ErrTruncated) {
		t.Errorf("short header: got %v, want ErrTruncated", err)
	}
}

func TestNodeRoundTrip(t *testing.T) {
	base := Node{
		Editable:   true,
		ChildCount: 2,
		Position:   math.Vec3{X: 1.5, Y: -2, Z: 3.25},
		Scale:      math.Vec3{X: 1, Y: 2, Z: 0.5},
		Rotation:   math.Quat{X: 0.1, Y: 0.2, Z: 0.3, W: 0.927},
		Name:       "Cube",
	}
	skinned := NewSkinnedData()
	skinned.GeometryID = 3
	skinned.MaterialID = -1
	skinned.CharacterRootID = 4
	skinned.BoundExtents = math.Vec3{X: 1, Y: 2, Z: 1}
	skinned.BindPoses[0] = math.Identity().RowMajor()
	skinned.BoneIDs[0] = 5
	skinned.BoneIDs[1] = 6

	tests := []struct {
		name string
		mod  func(n *Node)
		size int
	}{
		{"group", func(n *Node) { n.Type = NodeGroup }, NodeCommonSize},
		{"character", func(n *Node) { n.Type = NodeCharacter }, NodeCommonSize},
		{"geo", func(n *Node) {
			n.Type = NodeGeo
			n.Geo = &GeoData{GeometryID: 0, MaterialID: 2, Color: math.Color{R: 1, G: 0.5, B: 0.25, A: 1}}
		}, NodeCommonSize + GeoTailSize},
		{"light", func(n *Node) {
			n.Type = NodeLight
			n.Light = &LightData{Type: LightSpot, Intensity: 10, Angle: 45, Range: 10, Color: math.Vec3{X: 1, Y: 1, Z: 0.9}}
		}, NodeCommonSize + LightTailSize},
		{"camera", func(n *Node) {
			n.Type = NodeCamera
			n.Camera = &CameraData{FOV: 39.6, Aspect: 1.5, Near: 0.1, Far: 100, FocalDist: 5, Aperture: 2}
		}, NodeCommonSize + CameraTailSize},
		{"skinned", func(n *Node) {
			n.Type = NodeSkinnedMesh
			n.Skinned = skinned
		}, NodeCommonSize + SkinnedTailSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := base
			tt.mod(&n)

			data, err := EncodeNodes([]*Node{&n})
			if err != nil {
				t.Fatalf("EncodeNodes: %v", err)
			}
			if len(data) != tt.size || n.Size() != tt.size {
				t.Fatalf("encoded %d bytes (Size %d), want %d", len(data), n.Size(), tt.size)
			}

			nodes, err := DecodeNodes(data)
			if err != nil {
				t.Fatalf("DecodeNodes: %v", err)
			}
			if len(nodes) != 1 {
				t.Fatalf("decoded %d nodes, want 1", len(nodes))
			}
			if !reflect.DeepEqual(*nodes[0], n) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *nodes[0], n)
			}
		})
	}
}

func TestNodeCommonLayout(t *testing.T) {
	if NodeCommonSize != 116 {
		t.Fatalf("NodeCommonSize = %d, want 116", NodeCommonSize)
	}

	n := &Node{Type: NodeGroup, ChildCount: 7, Name: "VPETsceneRoot"}
	w := NewWriter(0)
	if err := n.Encode(w); err != nil {
		t.Fatal(err)
	}
	r := NewReader(w.Bytes())
	if got := r.Int32(); got != int32(NodeGroup) {
		t.Errorf("type = %d", got)
	}
	if got := r.Int32(); got != 0 {
		t.Errorf("editable = %d", got)
	}
	if got := r.Int32(); got != 7 {
		t.Errorf("childCount = %d, want 7", got)
	}
	r.Raw(40)
	if got := r.Name(); got != "VPETsceneRoot" {
		t.Errorf("name = %q", got)
	}
}

func TestNodeErrors(t *testing.T) {
	if _, err := EncodeNodes([]*Node{{Type: NodeGeo, Name: "broken"}}); err == nil {
		t.Error("expected error for geo node without payload")
	}
	if _, err := EncodeNodes([]*Node{{Type: NodeType(42)}}); !errors.Is(err, ErrUnknownNode) {
		t.Errorf("got %v, want ErrUnknownNode", err)
	}

	data, _ := EncodeNodes([]*Node{{Type: NodeCamera, Camera: &CameraData{}}})
	if _, err := DecodeNodes(data[:len(data)-2]); !errors.Is(err, ErrTruncated) {
		t.Errorf("truncated camera: got %v, want ErrTruncated", err)
	}
}

func TestGeometryRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		geo  *Geometry
	}{
		{
			name: "plain",
			geo: &Geometry{
				Positions: []math.Vec3{{X: 0}, {X: 1}, {Y: 1}},
				Indices:   []int32{0, 2, 1},
				Normals:   []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}},
				UVs:       []math.Vec2{{}, {X: 1}, {Y: 1}},
			},
		},
		{
			name: "skinned",
			geo: &Geometry{
				Positions:   []math.Vec3{{X: 0}, {X: 1}, {Y: 1}},
				Indices:     []int32{0, 2, 1},
				Normals:     []math.Vec3{{Z: 1}, {Z: 1}, {Z: 1}},
				UVs:         []math.Vec2{{}, {X: 1}, {Y: 1}},
				Weights:     [][Influences]float32{{1}, {0.7, 0.3}, {0.5, 0.25, 0.25}},
				BoneIndices: [][Influences]int32{{0}, {0, 1}, {1, 0, 2}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeGeometries([]*Geometry{tt.geo, tt.geo})
			if err != nil {
				t.Fatalf("EncodeGeometries: %v", err)
			}
			if len(data) != 2*tt.geo.Size() {
				t.Errorf("encoded %d bytes, want %d", len(data), 2*tt.geo.Size())
			}
			got, err := DecodeGeometries(data)
			if err != nil {
				t.Fatalf("DecodeGeometries: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("decoded %d records, want 2", len(got))
			}
			if !reflect.DeepEqual(got[1], tt.geo) {
				t.Errorf("got %+v, want %+v", got[1], tt.geo)
			}
		})
	}
}

func TestGeometryBadCount(t *testing.T) {
	w := NewWriter(0)
	w.Int32(1 << 20) // claims far more vertices than follow
	w.Float32(0)
	if _, err := DecodeGeometries(w.Bytes()); !errors.Is(err, ErrInvalidCount) {
		t.Errorf("got %v, want ErrInvalidCount", err)
	}
}

func TestMaterialRoundTrip(t *testing.T) {
	mats := []*Material{
		{Type: MaterialTypeStandard, Name: "Plain", Source: MaterialSourceStandard, ID: 0},
		{Type: MaterialTypeStandard, Name: "Wood", Source: MaterialSourceStandard, ID: 1,
			Textures: []TextureRef{{ID: 0, Scale: math.Vec2{X: 1, Y: 1}}}},
		{Type: MaterialTypeStandard, Name: "Missing", Source: MaterialSourceStandard, ID: 2,
			Textures: []TextureRef{{ID: -1, Scale: math.Vec2{X: 1, Y: 1}}}},
	}
	data := EncodeMaterials(mats)
	got, err := DecodeMaterials(data)
	if err != nil {
		t.Fatalf("DecodeMaterials: %v", err)
	}
	if !reflect.DeepEqual(got, mats) {
		t.Errorf("got %+v, want %+v", got, mats)
	}
}

func TestTextureRoundTrip(t *testing.T) {
	texs := []*Texture{
		{Width: 2, Height: 2, Format: TextureFormatRaw, Data: []byte{1, 2, 3, 4, 5}},
		{Width: 1, Height: 1, Format: TextureFormatRaw, Data: []byte{9}},
	}
	got, err := DecodeTextures(EncodeTextures(texs))
	if err != nil {
		t.Fatalf("DecodeTextures: %v", err)
	}
	if !reflect.DeepEqual(got, texs) {
		t.Errorf("got %+v, want %+v", got, texs)
	}
}

func TestCharacterRoundTrip(t *testing.T) {
	c := &Character{
		RootID:          1,
		BoneMapping:     []int32{2, 3, -1},
		SkeletonMapping: []int32{2, 3},
		Positions:       []math.Vec3{{}, {Y: 1}},
		Rotations:       []math.Quat{math.QuatIdentity(), math.QuatIdentity()},
		Scales:          []math.Vec3{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 1, Z: 1}},
	}
	data, err := EncodeCharacters([]*Character{c})
	if err != nil {
		t.Fatalf("EncodeCharacters: %v", err)
	}
	if len(data) != c.Size() {
		t.Errorf("encoded %d bytes, want %d", len(data), c.Size())
	}
	got, err := DecodeCharacters(data)
	if err != nil {
		t.Fatalf("DecodeCharacters: %v", err)
	}
	if !reflect.DeepEqual(got[0], c) {
		t.Errorf("got %+v, want %+v", got[0], c)
	}

	c.Scales = c.Scales[:1]
	if _, err := EncodeCharacters([]*Character{c}); err == nil {
		t.Error("expected error for mismatched transform count")
	}
}
