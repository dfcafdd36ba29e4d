// Package serializer converts a host scene snapshot into the binary blobs
// served to clients during distribution. A pass assigns node, geometry,
// material, texture and character indices; every cross reference in the
// output points into lists produced by that same pass.
package serializer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/coords"
	"github.com/Faultbox/vpet-bridge/internal/logger"
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// RootName is the name of the synthesized scene root node.
const RootName = "VPETsceneRoot"

// ErrNoObjects is returned when the snapshot has nothing to distribute.
var ErrNoObjects = errors.New("no objects to distribute")

// Options configures a pass.
type Options struct {
	ClientID             uint8
	FrameRate            int
	LightIntensityFactor float32
	// ReadFile loads texture files. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// EditableNode identifies an editable node in emission order.
type EditableNode struct {
	Name   string
	Type   formats.NodeType
	NodeID int32
}

// Result holds the blobs and the records they were encoded from.
type Result struct {
	Blobs      Blobs
	Header     formats.Header
	Nodes      []*formats.Node
	Geometries []*formats.Geometry
	Materials  []*formats.Material
	Textures   []*formats.Texture
	Characters []*formats.Character
	Editable   []EditableNode
	// ObjectCount is the number of host entities, excluding the root and bones.
	ObjectCount int
}

// Serialize runs one pass over snap.
func Serialize(ctx context.Context, snap *scene.Snapshot, opts Options) (*Result, error) {
	if snap.Len() == 0 {
		return nil, ErrNoObjects
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	if opts.LightIntensityFactor == 0 {
		opts.LightIntensityFactor = 1
	}

	p := newPass(snap, opts)
	if err := p.walk(ctx); err != nil {
		return nil, err
	}
	p.buildCharacters()

	if err := p.encode(); err != nil {
		return nil, err
	}
	p.log.Info("pass complete",
		zap.Int("objects", p.res.ObjectCount),
		zap.Int("nodes", len(p.res.Nodes)),
		zap.Int("geometries", len(p.res.Geometries)),
		zap.Int("materials", len(p.res.Materials)),
		zap.Int("textures", len(p.res.Textures)),
		zap.Int("characters", len(p.res.Characters)))
	return p.res, nil
}

// pass holds the lookup tables of one serialization run.
type pass struct {
	opts Options
	log  *zap.Logger
	res  *Result

	order    []*scene.Entity
	byName   map[string]*scene.Entity
	children map[string][]*scene.Entity
	world    map[string]math.Mat4

	nodeIDs   map[string]int32
	boneNodes map[string][]int32 // armature name -> node id per bone
	geoIndex  map[string]int32
	matIndex  map[string]int32
	texIndex  map[string]int32
	armatures []*scene.Entity
	editable  map[string]bool
}

func newPass(snap *scene.Snapshot, opts Options) *pass {
	p := &pass{
		opts:      opts,
		log:       logger.Named("serializer"),
		res:       &Result{},
		order:     snap.Entities(),
		byName:    make(map[string]*scene.Entity),
		children:  make(map[string][]*scene.Entity),
		world:     make(map[string]math.Mat4),
		nodeIDs:   make(map[string]int32),
		boneNodes: make(map[string][]int32),
		geoIndex:  make(map[string]int32),
		matIndex:  make(map[string]int32),
		texIndex:  make(map[string]int32),
		editable:  make(map[string]bool, len(snap.Editable)),
	}
	for _, e := range p.order {
		p.byName[e.Name] = e
	}
	for _, e := range snap.Editable {
		p.editable[e.Name] = true
	}
	return p
}

// walk emits the root and every entity depth-first, parents before children.
func (p *pass) walk(ctx context.Context) error {
	var top []*scene.Entity
	for _, e := range p.order {
		if e.Parent == "" {
			top = append(top, e)
			continue
		}
		if _, ok := p.byName[e.Parent]; !ok {
			p.log.Warn("parent not distributed, attaching to root",
				zap.String("entity", e.Name), zap.String("parent", e.Parent))
			top = append(top, e)
			continue
		}
		p.children[e.Parent] = append(p.children[e.Parent], e)
	}

	p.res.Nodes = append(p.res.Nodes, &formats.Node{
		Type:       formats.NodeGroup,
		ChildCount: int32(len(top)),
		Scale:      math.Vec3{X: 1, Y: 1, Z: 1},
		Rotation:   math.QuatIdentity(),
		Name:       RootName,
	})

	for _, e := range top {
		if err := p.visit(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) visit(ctx context.Context, e *scene.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, dup := p.nodeIDs[e.Name]; dup {
		return fmt.Errorf("entity %q visited twice", e.Name)
	}

	node, err := p.node(e)
	if err != nil {
		return fmt.Errorf("%s: %w", e.Name, err)
	}
	id := int32(len(p.res.Nodes))
	p.nodeIDs[e.Name] = id
	p.res.Nodes = append(p.res.Nodes, node)
	p.res.ObjectCount++
	if node.Editable {
		p.res.Editable = append(p.res.Editable, EditableNode{Name: e.Name, Type: node.Type, NodeID: id})
	}

	kids := p.children[e.Name]
	node.ChildCount = int32(len(kids))
	if e.Kind == scene.KindArmature && e.Armature != nil {
		node.ChildCount += p.emitBones(e)
		p.armatures = append(p.armatures, e)
	}
	for _, c := range kids {
		if err := p.visit(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// node builds the record for one entity. ChildCount is filled by visit.
func (p *pass) node(e *scene.Entity) (*formats.Node, error) {
	n := &formats.Node{
		Type:     formats.NodeGroup,
		Editable: e.Editable || p.editable[e.Name],
		Name:     e.Name,
	}
	view := e.Kind == scene.KindLight || e.Kind == scene.KindCamera
	setTransform(n, e.Position, e.Rotation, e.Scale, view)

	switch e.Kind {
	case scene.KindMesh:
		if e.Mesh == nil {
			p.log.Warn("mesh entity without mesh data", zap.String("entity", e.Name))
			return n, nil
		}
		if err := validateMesh(e.Mesh); err != nil {
			return nil, err
		}
		if arm := p.parentArmature(e); arm != nil {
			p.skinnedNode(n, e, arm)
			return n, nil
		}
		n.Type = formats.NodeGeo
		n.Geo = p.geoData(e, nil)
	case scene.KindLight:
		if e.Light != nil {
			n.Type = formats.NodeLight
			n.Light = lightData(e.Light)
		}
	case scene.KindCamera:
		if e.Camera != nil {
			n.Type = formats.NodeCamera
			n.Camera = cameraData(e.Camera)
		}
	case scene.KindArmature:
		n.Type = formats.NodeCharacter
	}
	return n, nil
}

// setTransform writes a host transform into n in client conventions.
func setTransform(n *formats.Node, pos math.Vec3, rot math.Quat, scale math.Vec3, view bool) {
	n.Position = coords.Vec(pos)
	n.Scale = coords.Vec(scale)
	n.Rotation = coords.Rotation(rot, view)
}

// geoData resolves geometry and material for a mesh entity.
func (p *pass) geoData(e *scene.Entity, arm *scene.Entity) *formats.GeoData {
	g := &formats.GeoData{
		GeometryID: p.geometry(e, arm),
		MaterialID: -1,
		Color:      e.Color,
	}
	if e.Material != nil {
		id, color := p.material(e)
		g.MaterialID = id
		g.Color = color
	}
	return g
}

var lightTypes = map[scene.LightKind]formats.LightType{
	scene.LightSpot:  formats.LightSpot,
	scene.LightSun:   formats.LightDirectional,
	scene.LightPoint: formats.LightPoint,
	scene.LightArea:  formats.LightArea,
}

// Non-spot lights report this cone angle in degrees.
const defaultLightAngle = 45

// Cameras report fixed depth of field values.
const (
	defaultFocalDist = 5
	defaultAperture  = 2
)

func lightData(l *scene.Light) *formats.LightData {
	d := &formats.LightData{
		Type:      lightTypes[l.Kind],
		Intensity: l.Energy / 100,
		Angle:     defaultLightAngle,
		Range:     sceneobject.DefaultLightRange,
		Color:     l.Color,
	}
	if l.Kind == scene.LightSpot {
		d.Angle = math.Degrees(l.SpotSize)
	}
	return d
}

func cameraData(c *scene.Camera) *formats.CameraData {
	return &formats.CameraData{
		FOV:       math.Degrees(c.Angle),
		Aspect:    sceneobject.Aspect(c),
		Near:      c.ClipStart,
		Far:       c.ClipEnd,
		FocalDist: defaultFocalDist,
		Aperture:  defaultAperture,
	}
}

// worldMatrix returns the host world transform of an entity.
func (p *pass) worldMatrix(e *scene.Entity) math.Mat4 {
	if m, ok := p.world[e.Name]; ok {
		return m
	}
	m := e.Local()
	if parent, ok := p.byName[e.Parent]; ok && e.Parent != "" {
		m = p.worldMatrix(parent).Mul(m)
	}
	p.world[e.Name] = m
	return m
}

func (p *pass) parentArmature(e *scene.Entity) *scene.Entity {
	if e.Parent == "" {
		return nil
	}
	parent, ok := p.byName[e.Parent]
	if !ok || parent.Kind != scene.KindArmature || parent.Armature == nil {
		return nil
	}
	return parent
}

func (p *pass) encode() error {
	res := p.res
	res.Header = formats.Header{
		LightIntensityFactor: p.opts.LightIntensityFactor,
		SenderID:             int32(p.opts.ClientID),
		FrameRate:            int32(p.opts.FrameRate),
	}

	var err error
	b := &res.Blobs
	b.Header = res.Header.Encode()
	if b.Nodes, err = formats.EncodeNodes(res.Nodes); err != nil {
		return fmt.Errorf("encode nodes: %w", err)
	}
	if b.Geometry, err = formats.EncodeGeometries(res.Geometries); err != nil {
		return fmt.Errorf("encode geometry: %w", err)
	}
	b.Materials = formats.EncodeMaterials(res.Materials)
	b.Textures = formats.EncodeTextures(res.Textures)
	if b.Characters, err = formats.EncodeCharacters(res.Characters); err != nil {
		return fmt.Errorf("encode characters: %w", err)
	}
	return nil
}
