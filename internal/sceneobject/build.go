package sceneobject

import (
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Host parameter names. Bone rotations use the bone name.
const (
	ParamPosition  = "Position"
	ParamRotation  = "Rotation"
	ParamScale     = "Scale"
	ParamFov       = "Fov"
	ParamAspect    = "Aspect"
	ParamNear      = "Near"
	ParamFar       = "Far"
	ParamColor     = "Color"
	ParamIntensity = "Intensity"
	ParamRange     = "Range"
	ParamSpotAngle = "SpotAngle"
)

// DefaultLightRange is the range reported for every light.
const DefaultLightRange float32 = 10

// Build creates the object for an editable entity with the parameter list
// matching its kind.
func Build(a *Arena, e *scene.Entity) (*Object, error) {
	obj, err := a.New(e.Name, e.Kind)
	if err != nil {
		return nil, err
	}

	rotRemap := RemapRotation
	if e.Kind == scene.KindLight || e.Kind == scene.KindCamera {
		rotRemap = RemapViewRotation
	}
	AddParameter(obj, ParamPosition, e.Position, WithRemap(RemapVector))
	AddParameter(obj, ParamRotation, e.Rotation, WithRemap(rotRemap))
	AddParameter(obj, ParamScale, e.Scale, WithRemap(RemapVector))

	switch e.Kind {
	case scene.KindCamera:
		if e.Camera != nil {
			buildCamera(obj, e.Camera)
		}
	case scene.KindLight:
		if e.Light != nil {
			buildLight(obj, e.Light)
		}
	case scene.KindArmature:
		if e.Armature != nil {
			for _, b := range e.Armature.Bones {
				AddParameter(obj, b.Name, math.QuatIdentity(), WithRemap(RemapRotation))
			}
		}
	}
	return obj, nil
}

func buildCamera(obj *Object, c *scene.Camera) {
	AddParameter(obj, ParamFov, c.Angle, WithRemap(RemapAngle))
	AddParameter(obj, ParamAspect, Aspect(c))
	AddParameter(obj, ParamNear, c.ClipStart)
	AddParameter(obj, ParamFar, c.ClipEnd)
}

func buildLight(obj *Object, l *scene.Light) {
	AddParameter(obj, ParamColor, math.Color{R: l.Color.X, G: l.Color.Y, B: l.Color.Z, A: 1})
	AddParameter(obj, ParamIntensity, l.Energy, WithRemap(RemapIntensity))
	if l.Kind == scene.LightSpot {
		// The host has no light range, so the value only travels to peers.
		AddParameter(obj, ParamRange, DefaultLightRange, WithReactions(ReactNetwork))
		AddParameter(obj, ParamSpotAngle, l.SpotSize, WithRemap(RemapAngle))
	}
}

// Aspect returns the sensor aspect ratio, or 1 for a degenerate sensor.
func Aspect(c *scene.Camera) float32 {
	if c.SensorHeight == 0 {
		return 1
	}
	return c.SensorWidth / c.SensorHeight
}
