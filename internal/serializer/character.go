package serializer

import (
	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/coords"
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// emitBones appends the armature's bones as group nodes below its node and
// returns the number of root bones.
func (p *pass) emitBones(arm *scene.Entity) int32 {
	bones := arm.Armature.Bones
	ids := make([]int32, len(bones))
	for i := range ids {
		ids[i] = -1
	}
	kids := make(map[string][]int, len(bones))
	var roots []int
	for i, b := range bones {
		if b.Parent == "" || arm.Armature.BoneIndex(b.Parent) < 0 {
			roots = append(roots, i)
			continue
		}
		kids[b.Parent] = append(kids[b.Parent], i)
	}

	var emit func(i int, parent math.Mat4)
	emit = func(i int, parent math.Mat4) {
		b := bones[i]
		t, r, s := parent.Inverse().Mul(b.Matrix).Decompose()
		n := &formats.Node{
			Type:       formats.NodeGroup,
			ChildCount: int32(len(kids[b.Name])),
			Name:       b.Name,
		}
		setTransform(n, t, r, s, false)
		ids[i] = int32(len(p.res.Nodes))
		p.res.Nodes = append(p.res.Nodes, n)
		for _, c := range kids[b.Name] {
			emit(c, b.Matrix)
		}
	}
	for _, i := range roots {
		emit(i, math.Identity())
	}
	p.boneNodes[arm.Name] = ids
	return int32(len(roots))
}

// skinnedNode fills n as a skinned mesh bound to arm.
func (p *pass) skinnedNode(n *formats.Node, e *scene.Entity, arm *scene.Entity) {
	sk := formats.NewSkinnedData()
	sk.GeoData = *p.geoData(e, arm)
	sk.CharacterRootID = p.nodeIDs[arm.Name]

	geo := p.res.Geometries[sk.GeometryID]
	sk.BoundCenter, sk.BoundExtents = bounds(geo)

	bones := arm.Armature.Bones
	if len(bones) > formats.MaxBones {
		p.log.Warn("armature exceeds bone budget, extra bones are not skinned",
			zap.String("armature", arm.Name), zap.Int("bones", len(bones)), zap.Int("max", formats.MaxBones))
		bones = bones[:formats.MaxBones]
	}
	armWorld := p.worldMatrix(arm)
	ids := p.boneNodes[arm.Name]
	for i, b := range bones {
		sk.BindPoses[i] = coords.Matrix(armWorld.Mul(b.Matrix)).RowMajor()
		sk.BoneIDs[i] = ids[i]
	}

	n.Type = formats.NodeSkinnedMesh
	n.Skinned = sk
}

// buildCharacters emits one character record per armature.
func (p *pass) buildCharacters() {
	for _, arm := range p.armatures {
		ids := p.boneNodes[arm.Name]
		world := p.worldMatrix(arm)
		c := &formats.Character{
			RootID:          p.nodeIDs[arm.Name],
			BoneMapping:     append([]int32(nil), ids...),
			SkeletonMapping: append([]int32(nil), ids...),
		}
		for _, b := range arm.Armature.Bones {
			t, r, s := world.Mul(b.Matrix).Decompose()
			c.Positions = append(c.Positions, coords.Vec(t))
			c.Rotations = append(c.Rotations, coords.Rotation(r, false))
			c.Scales = append(c.Scales, coords.Vec(s))
		}
		p.res.Characters = append(p.res.Characters, c)
	}
}
