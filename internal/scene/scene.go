// Package scene defines the snapshot the authoring host hands to the
// serializer, and the callbacks it exposes for applying remote edits.
// Values here are in host conventions (right-handed, Z up, radians).
package scene

import (
	"context"
	"fmt"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Kind classifies an entity.
type Kind int

const (
	KindGroup Kind = iota
	KindMesh
	KindLight
	KindCamera
	KindArmature
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindMesh:
		return "mesh"
	case KindLight:
		return "light"
	case KindCamera:
		return "camera"
	case KindArmature:
		return "armature"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Entity is one host object. Transforms are relative to Parent.
type Entity struct {
	Name     string
	Kind     Kind
	Parent   string // empty for top-level objects
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
	Color    math.Color
	Editable bool

	Mesh     *Mesh
	Material *Material
	Light    *Light
	Camera   *Camera
	Armature *Armature
}

// Local returns the entity's parent-relative transform.
func (e *Entity) Local() math.Mat4 {
	return math.Compose(e.Position, e.Rotation, e.Scale)
}

// Loop is one corner of a triangle.
type Loop struct {
	Vertex int
	Normal math.Vec3
	UV     math.Vec2
}

// Influence is a vertex group weight.
type Influence struct {
	Bone   string
	Weight float32
}

// Mesh is polygon data already triangulated by the host. Influences, when
// present, is indexed by vertex.
type Mesh struct {
	Name       string
	Positions  []math.Vec3
	Triangles  [][3]Loop
	Influences [][]Influence
}

// ShaderKind is the closed set of surface shaders the serializer reads.
type ShaderKind int

const (
	ShaderUnsupported ShaderKind = iota
	ShaderPrincipled
	ShaderDiffuse
	ShaderEmission
)

// Shader is the node feeding the material output surface.
type Shader struct {
	Kind      ShaderKind
	BaseColor math.Color
	Roughness float32
	Specular  float32
	Texture   *Image // image node linked into the base color input
}

// Image is an image file referenced by a material.
type Image struct {
	Name   string
	Path   string
	Width  int
	Height int
}

// Material holds the viewport values plus the surface shader, if any.
type Material struct {
	Name         string
	DiffuseColor math.Color
	Roughness    float32
	Specular     float32
	Surface      *Shader
}

// LightKind mirrors the host light types.
type LightKind int

const (
	LightSpot LightKind = iota
	LightSun
	LightPoint
	LightArea
)

// Light holds host light data.
type Light struct {
	Kind     LightKind
	Energy   float32 // watts
	Color    math.Vec3
	SpotSize float32 // full cone angle, radians
}

// Camera holds host camera data.
type Camera struct {
	Angle        float32 // field of view, radians
	SensorWidth  float32
	SensorHeight float32
	ClipStart    float32
	ClipEnd      float32
}

// Bone is a rest-pose bone. Matrix is relative to the armature.
type Bone struct {
	Name   string
	Parent string
	Matrix math.Mat4
}

// Armature is a skeleton in rest pose. Bones are ordered parents first.
type Armature struct {
	Bones []Bone
}

// BoneIndex returns the position of the named bone, or -1.
func (a *Armature) BoneIndex(name string) int {
	for i := range a.Bones {
		if a.Bones[i].Name == name {
			return i
		}
	}
	return -1
}

// Snapshot is the content of the two distribution collections.
type Snapshot struct {
	Static   []*Entity
	Editable []*Entity
}

// Len returns the total entity count.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Static) + len(s.Editable)
}

// Entities returns static then editable entities. The entities are not
// modified; membership in Editable is what makes an entity editable.
func (s *Snapshot) Entities() []*Entity {
	out := make([]*Entity, 0, s.Len())
	out = append(out, s.Static...)
	out = append(out, s.Editable...)
	return out
}

// Host is the authoring application as seen by the bridge.
type Host interface {
	// Snapshot captures the distribution collections.
	Snapshot(ctx context.Context) (*Snapshot, error)
	// ApplyParameter writes a decoded parameter value onto an entity.
	ApplyParameter(entity, parameter string, value any) error
	// SetSelectable toggles whether the user may pick the entity.
	SetSelectable(entity string, selectable bool) error
}
