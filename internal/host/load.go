package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// ErrInvalidScene is returned for scene files that parse but do not describe
// a usable scene.
var ErrInvalidScene = errors.New("invalid scene file")

// sceneFile is the YAML layout of a scene description.
type sceneFile struct {
	Static   []entityFile `yaml:"static"`
	Editable []entityFile `yaml:"editable"`
}

type entityFile struct {
	Name     string        `yaml:"name"`
	Parent   string        `yaml:"parent"`
	Position [3]float32    `yaml:"position"`
	Rotation *[4]float32   `yaml:"rotation"` // x, y, z, w
	Euler    *[3]float32   `yaml:"euler"`    // degrees, applied X then Y then Z
	Scale    *[3]float32   `yaml:"scale"`
	Color    *[4]float32   `yaml:"color"`
	Mesh     *meshFile     `yaml:"mesh"`
	Material *materialFile `yaml:"material"`
	Light    *lightFile    `yaml:"light"`
	Camera   *cameraFile   `yaml:"camera"`
	Armature *armatureFile `yaml:"armature"`
}

type meshFile struct {
	Name       string          `yaml:"name"`
	Primitive  string          `yaml:"primitive"`
	Size       float32         `yaml:"size"`
	Positions  [][3]float32    `yaml:"positions"`
	Triangles  [][3]int        `yaml:"triangles"`
	Influences [][]weightEntry `yaml:"influences"`
}

type weightEntry struct {
	Bone   string  `yaml:"bone"`
	Weight float32 `yaml:"weight"`
}

type materialFile struct {
	Name      string     `yaml:"name"`
	Shader    string     `yaml:"shader"`
	BaseColor [4]float32 `yaml:"base_color"`
	Roughness float32    `yaml:"roughness"`
	Specular  float32    `yaml:"specular"`
	Texture   string     `yaml:"texture"`
}

type lightFile struct {
	Type     string     `yaml:"type"`
	Energy   float32    `yaml:"energy"`
	Color    [3]float32 `yaml:"color"`
	SpotSize float32    `yaml:"spot_size"` // degrees
}

type cameraFile struct {
	Fov          float32 `yaml:"fov"` // degrees
	SensorWidth  float32 `yaml:"sensor_width"`
	SensorHeight float32 `yaml:"sensor_height"`
	ClipStart    float32 `yaml:"clip_start"`
	ClipEnd      float32 `yaml:"clip_end"`
}

type armatureFile struct {
	Bones []boneFile `yaml:"bones"`
}

type boneFile struct {
	Name   string     `yaml:"name"`
	Parent string     `yaml:"parent"`
	Head   [3]float32 `yaml:"head"`
}

// LoadFile reads a YAML scene. Texture paths are resolved against the
// file's directory.
func LoadFile(path string) (*scene.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return Load(data, filepath.Dir(path))
}

// Load parses a YAML scene.
func Load(data []byte, baseDir string) (*scene.Snapshot, error) {
	var f sceneFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}

	seen := make(map[string]bool)
	snap := &scene.Snapshot{}
	for _, list := range []struct {
		src      []entityFile
		dst      *[]*scene.Entity
		editable bool
	}{
		{f.Static, &snap.Static, false},
		{f.Editable, &snap.Editable, true},
	} {
		for i := range list.src {
			e, err := list.src[i].entity(baseDir)
			if err != nil {
				return nil, err
			}
			if seen[e.Name] {
				return nil, fmt.Errorf("%w: duplicate entity %q", ErrInvalidScene, e.Name)
			}
			seen[e.Name] = true
			e.Editable = list.editable
			*list.dst = append(*list.dst, e)
		}
	}

	for _, e := range snap.Entities() {
		if e.Parent != "" && !seen[e.Parent] {
			return nil, fmt.Errorf("%w: %q has unknown parent %q", ErrInvalidScene, e.Name, e.Parent)
		}
	}
	return snap, nil
}

func (f *entityFile) entity(baseDir string) (*scene.Entity, error) {
	if f.Name == "" {
		return nil, fmt.Errorf("%w: entity without name", ErrInvalidScene)
	}
	e := &scene.Entity{
		Name:     f.Name,
		Kind:     scene.KindGroup,
		Parent:   f.Parent,
		Position: vec3(f.Position),
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Color:    math.Color{R: 1, G: 1, B: 1, A: 1},
	}
	switch {
	case f.Rotation != nil:
		r := f.Rotation
		e.Rotation = math.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}.Normalize()
	case f.Euler != nil:
		e.Rotation = eulerXYZ(*f.Euler)
	}
	if f.Scale != nil {
		e.Scale = vec3(*f.Scale)
	}
	if f.Color != nil {
		e.Color = color(*f.Color)
	}

	kinds := 0
	if f.Mesh != nil {
		kinds++
		mesh, err := f.Mesh.mesh(f.Name)
		if err != nil {
			return nil, err
		}
		e.Kind = scene.KindMesh
		e.Mesh = mesh
		if f.Material != nil {
			e.Material = f.Material.material(baseDir)
		}
	}
	if f.Light != nil {
		kinds++
		light, err := f.Light.light()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		e.Kind = scene.KindLight
		e.Light = light
	}
	if f.Camera != nil {
		kinds++
		c := f.Camera
		e.Kind = scene.KindCamera
		e.Camera = &scene.Camera{
			Angle:        math.Radians(c.Fov),
			SensorWidth:  c.SensorWidth,
			SensorHeight: c.SensorHeight,
			ClipStart:    c.ClipStart,
			ClipEnd:      c.ClipEnd,
		}
	}
	if f.Armature != nil {
		kinds++
		e.Kind = scene.KindArmature
		e.Armature = f.Armature.armature()
	}
	if kinds > 1 {
		return nil, fmt.Errorf("%w: %q has more than one kind", ErrInvalidScene, f.Name)
	}
	return e, nil
}

func (f *meshFile) mesh(entity string) (*scene.Mesh, error) {
	name := f.Name
	if name == "" {
		name = entity
	}
	var mesh *scene.Mesh
	switch strings.ToLower(f.Primitive) {
	case "cube":
		mesh = Cube(name, f.Size)
	case "plane":
		mesh = Plane(name, f.Size)
	case "":
		positions := make([]math.Vec3, len(f.Positions))
		for i, p := range f.Positions {
			positions[i] = vec3(p)
		}
		m, err := FlatMesh(name, positions, f.Triangles)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entity, err)
		}
		mesh = m
	default:
		return nil, fmt.Errorf("%w: unknown primitive %q", ErrInvalidScene, f.Primitive)
	}

	if len(f.Influences) > 0 {
		if len(f.Influences) != len(mesh.Positions) {
			return nil, fmt.Errorf("%w: %s has %d influence lists for %d vertices",
				ErrInvalidScene, entity, len(f.Influences), len(mesh.Positions))
		}
		mesh.Influences = make([][]scene.Influence, len(f.Influences))
		for i, list := range f.Influences {
			for _, w := range list {
				mesh.Influences[i] = append(mesh.Influences[i], scene.Influence{Bone: w.Bone, Weight: w.Weight})
			}
		}
	}
	return mesh, nil
}

var shaderKinds = map[string]scene.ShaderKind{
	"principled": scene.ShaderPrincipled,
	"diffuse":    scene.ShaderDiffuse,
	"emission":   scene.ShaderEmission,
}

func (f *materialFile) material(baseDir string) *scene.Material {
	m := &scene.Material{
		Name:         f.Name,
		DiffuseColor: color(f.BaseColor),
		Roughness:    f.Roughness,
		Specular:     f.Specular,
	}
	if f.Shader == "" {
		return m
	}
	s := &scene.Shader{
		Kind:      shaderKinds[strings.ToLower(f.Shader)],
		BaseColor: m.DiffuseColor,
		Roughness: f.Roughness,
		Specular:  f.Specular,
	}
	if f.Texture != "" {
		path := f.Texture
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		s.Texture = &scene.Image{Name: filepath.Base(f.Texture), Path: path}
	}
	m.Surface = s
	return m
}

var lightKinds = map[string]scene.LightKind{
	"spot":  scene.LightSpot,
	"sun":   scene.LightSun,
	"point": scene.LightPoint,
	"area":  scene.LightArea,
}

func (f *lightFile) light() (*scene.Light, error) {
	kind, ok := lightKinds[strings.ToLower(f.Type)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown light type %q", ErrInvalidScene, f.Type)
	}
	return &scene.Light{
		Kind:     kind,
		Energy:   f.Energy,
		Color:    vec3(f.Color),
		SpotSize: math.Radians(f.SpotSize),
	}, nil
}

func (f *armatureFile) armature() *scene.Armature {
	a := &scene.Armature{Bones: make([]scene.Bone, len(f.Bones))}
	for i, b := range f.Bones {
		a.Bones[i] = scene.Bone{
			Name:   b.Name,
			Parent: b.Parent,
			Matrix: math.Translate(b.Head[0], b.Head[1], b.Head[2]),
		}
	}
	return a
}

func vec3(v [3]float32) math.Vec3 {
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}

func color(c [4]float32) math.Color {
	return math.Color{R: c[0], G: c[1], B: c[2], A: c[3]}
}

func eulerXYZ(deg [3]float32) math.Quat {
	qx := math.QuatFromAxisAngle(math.Vec3{X: 1}, math.Radians(deg[0]))
	qy := math.QuatFromAxisAngle(math.Vec3{Y: 1}, math.Radians(deg[1]))
	qz := math.QuatFromAxisAngle(math.Vec3{Z: 1}, math.Radians(deg[2]))
	return qz.Mul(qy).Mul(qx)
}
