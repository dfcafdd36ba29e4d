package serializer

import (
	"errors"
	"io/fs"

	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/internal/texture"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// surface is the resolved shading of a material.
type surface struct {
	color     math.Color
	roughness float32
	specular  float32
	image     *scene.Image
}

// resolveSurface reads the shader feeding the material output. Unsupported
// shaders keep the viewport values.
func (p *pass) resolveSurface(m *scene.Material) surface {
	s := surface{color: m.DiffuseColor, roughness: m.Roughness, specular: m.Specular}
	sh := m.Surface
	if sh == nil {
		return s
	}
	switch sh.Kind {
	case scene.ShaderPrincipled:
		s.color, s.roughness, s.specular = sh.BaseColor, sh.Roughness, sh.Specular
	case scene.ShaderDiffuse:
		s.color, s.roughness = sh.BaseColor, sh.Roughness
	case scene.ShaderEmission:
		s.color = sh.BaseColor
	default:
		p.log.Warn("unsupported shader, using material defaults", zap.String("material", m.Name))
		return s
	}
	s.image = sh.Texture
	return s
}

// material returns the index of e's material record and the color its node
// should carry. Materials are deduplicated by name.
func (p *pass) material(e *scene.Entity) (int32, math.Color) {
	m := e.Material
	name := m.Name
	if name == "" {
		name = e.Name
	}
	s := p.resolveSurface(m)
	if idx, ok := p.matIndex[name]; ok {
		return idx, s.color
	}

	idx := int32(len(p.res.Materials))
	rec := &formats.Material{
		Type:   formats.MaterialTypeStandard,
		Name:   name,
		Source: formats.MaterialSourceStandard,
		ID:     idx,
	}
	if s.image != nil {
		rec.Textures = []formats.TextureRef{{
			ID:    p.texture(s.image),
			Scale: math.Vec2{X: 1, Y: 1},
		}}
	}
	p.res.Materials = append(p.res.Materials, rec)
	p.matIndex[name] = idx
	return idx, s.color
}

// texture returns the index of img's texture record, or -1 when the file
// cannot be read.
func (p *pass) texture(img *scene.Image) int32 {
	key := img.Name
	if key == "" {
		key = img.Path
	}
	if idx, ok := p.texIndex[key]; ok {
		return idx
	}

	data, err := p.opts.ReadFile(img.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.log.Warn("texture file not found", zap.String("path", img.Path))
		} else {
			p.log.Warn("texture file unreadable", zap.String("path", img.Path), zap.Error(err))
		}
		return -1
	}

	w, h := img.Width, img.Height
	if w == 0 || h == 0 {
		info, err := texture.Probe(img.Path, data)
		if err != nil {
			p.log.Warn("texture size unknown", zap.String("path", img.Path), zap.Error(err))
		}
		w, h = info.Width, info.Height
	}

	idx := int32(len(p.res.Textures))
	p.res.Textures = append(p.res.Textures, &formats.Texture{
		Width:  int32(w),
		Height: int32(h),
		Format: formats.TextureFormatRaw,
		Data:   data,
	})
	p.texIndex[key] = idx
	return idx
}
