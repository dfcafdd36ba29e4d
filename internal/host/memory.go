// Package host provides an in-memory authoring host loaded from a YAML scene
// description. It stands in for an interactive editor when the bridge runs
// headless.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Errors returned by Memory.
var (
	ErrUnknownEntity    = errors.New("unknown entity")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrBadValue         = errors.New("bad parameter value")
)

// Memory is a scene.Host backed by an in-memory snapshot.
type Memory struct {
	mu         sync.RWMutex
	static     []*scene.Entity
	editable   []*scene.Entity
	byName     map[string]*scene.Entity
	selectable map[string]bool
	pose       map[string]map[string]math.Quat
}

// NewMemory creates a host holding snap.
func NewMemory(snap *scene.Snapshot) *Memory {
	m := &Memory{}
	m.load(snap)
	return m
}

// Replace swaps the whole scene, dropping selection and pose state. The
// next distribution pass picks it up.
func (m *Memory) Replace(snap *scene.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.load(snap)
}

func (m *Memory) load(snap *scene.Snapshot) {
	m.static, m.editable = nil, nil
	m.byName = make(map[string]*scene.Entity)
	m.selectable = make(map[string]bool)
	m.pose = make(map[string]map[string]math.Quat)
	if snap != nil {
		m.static = snap.Static
		m.editable = snap.Editable
	}
	for _, e := range m.static {
		m.byName[e.Name] = e
	}
	for _, e := range m.editable {
		e.Editable = true
		m.byName[e.Name] = e
		m.selectable[e.Name] = true
	}
}

// Snapshot returns copies of the entities so later edits do not race with
// serialization. Mesh and material data are shared and never mutated.
func (m *Memory) Snapshot(ctx context.Context) (*scene.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return &scene.Snapshot{
		Static:   cloneEntities(m.static),
		Editable: cloneEntities(m.editable),
	}, nil
}

func cloneEntities(src []*scene.Entity) []*scene.Entity {
	out := make([]*scene.Entity, len(src))
	for i, e := range src {
		c := *e
		if e.Light != nil {
			l := *e.Light
			c.Light = &l
		}
		if e.Camera != nil {
			cam := *e.Camera
			c.Camera = &cam
		}
		out[i] = &c
	}
	return out
}

// Entity returns a copy of the named entity.
func (m *Memory) Entity(name string) (scene.Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byName[name]
	if !ok {
		return scene.Entity{}, false
	}
	return *e, true
}

// Selectable reports whether the user may pick the entity.
func (m *Memory) Selectable(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selectable[name]
}

// BonePose returns the pose rotation last applied to a bone.
func (m *Memory) BonePose(armature, bone string) (math.Quat, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.pose[armature][bone]
	return q, ok
}

// SetSelectable implements scene.Host.
func (m *Memory) SetSelectable(entity string, selectable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[entity]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	m.selectable[entity] = selectable
	return nil
}

// ApplyParameter implements scene.Host.
func (m *Memory) ApplyParameter(entity, param string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byName[entity]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}

	switch param {
	case sceneobject.ParamPosition:
		return assign(&e.Position, param, value)
	case sceneobject.ParamRotation:
		return assign(&e.Rotation, param, value)
	case sceneobject.ParamScale:
		return assign(&e.Scale, param, value)
	}

	switch {
	case e.Camera != nil:
		return applyCamera(e.Camera, param, value)
	case e.Light != nil:
		return applyLight(e.Light, param, value)
	case e.Armature != nil && e.Armature.BoneIndex(param) >= 0:
		q, ok := value.(math.Quat)
		if !ok {
			return fmt.Errorf("%w: %s wants quat, got %T", ErrBadValue, param, value)
		}
		if m.pose[entity] == nil {
			m.pose[entity] = make(map[string]math.Quat)
		}
		m.pose[entity][param] = q
		return nil
	}
	return fmt.Errorf("%w: %s.%s", ErrUnknownParameter, entity, param)
}

func applyCamera(c *scene.Camera, param string, value any) error {
	switch param {
	case sceneobject.ParamFov:
		return assign(&c.Angle, param, value)
	case sceneobject.ParamNear:
		return assign(&c.ClipStart, param, value)
	case sceneobject.ParamFar:
		return assign(&c.ClipEnd, param, value)
	case sceneobject.ParamAspect:
		var aspect float32
		if err := assign(&aspect, param, value); err != nil {
			return err
		}
		c.SensorWidth = aspect * c.SensorHeight
		return nil
	}
	return fmt.Errorf("%w: camera %s", ErrUnknownParameter, param)
}

func applyLight(l *scene.Light, param string, value any) error {
	switch param {
	case sceneobject.ParamIntensity:
		return assign(&l.Energy, param, value)
	case sceneobject.ParamSpotAngle:
		return assign(&l.SpotSize, param, value)
	case sceneobject.ParamColor:
		c, ok := value.(math.Color)
		if !ok {
			return fmt.Errorf("%w: %s wants color, got %T", ErrBadValue, param, value)
		}
		l.Color = math.Vec3{X: c.R, Y: c.G, Z: c.B}
		return nil
	}
	return fmt.Errorf("%w: light %s", ErrUnknownParameter, param)
}

func assign[T any](dst *T, param string, value any) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf("%w: %s wants %T, got %T", ErrBadValue, param, *dst, value)
	}
	*dst = v
	return nil
}
