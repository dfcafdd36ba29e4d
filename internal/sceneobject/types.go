// Package sceneobject mirrors editable host objects as ordered lists of
// typed parameters and routes their changes either into the host or onto
// the update channel, depending on who holds the object's lock.
package sceneobject

import (
	"errors"
	"fmt"

	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// Errors returned by parameters and arenas.
var (
	ErrTypeMismatch  = errors.New("parameter type mismatch")
	ErrPayloadSize   = errors.New("parameter payload has wrong size")
	ErrDetached      = errors.New("scene object belongs to a released pass")
	ErrArenaFull     = errors.New("scene object arena is full")
	ErrNoSuchParam   = errors.New("no such parameter")
	ErrUnknownObject = errors.New("no such scene object")
)

// ParameterType is the wire tag of a parameter value.
type ParameterType uint8

const (
	TypeBool    ParameterType = 2
	TypeInt     ParameterType = 3
	TypeFloat   ParameterType = 4
	TypeVec2    ParameterType = 5
	TypeVec3    ParameterType = 6
	TypeVec4    ParameterType = 7
	TypeQuat    ParameterType = 8
	TypeColor   ParameterType = 9
	TypeString  ParameterType = 10
	TypeUnknown ParameterType = 100
)

// Size returns the payload size of t. String is variable and reports -1.
func (t ParameterType) Size() int {
	switch t {
	case TypeBool:
		return 1
	case TypeInt, TypeFloat:
		return 4
	case TypeVec2:
		return 8
	case TypeVec3:
		return 12
	case TypeVec4, TypeQuat, TypeColor:
		return 16
	case TypeString:
		return -1
	default:
		return 0
	}
}

// String returns a human-readable type name.
func (t ParameterType) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeVec2:
		return "vec2"
	case TypeVec3:
		return "vec3"
	case TypeVec4:
		return "vec4"
	case TypeQuat:
		return "quat"
	case TypeColor:
		return "color"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Value is the closed set of parameter value types.
type Value interface {
	bool | int32 | float32 | math.Vec2 | math.Vec3 | math.Vec4 | math.Quat | math.Color | string
}

// TypeOf returns the wire tag for T.
func TypeOf[T Value]() ParameterType {
	var zero T
	switch any(zero).(type) {
	case bool:
		return TypeBool
	case int32:
		return TypeInt
	case float32:
		return TypeFloat
	case math.Vec2:
		return TypeVec2
	case math.Vec3:
		return TypeVec3
	case math.Vec4:
		return TypeVec4
	case math.Quat:
		return TypeQuat
	case math.Color:
		return TypeColor
	case string:
		return TypeString
	default:
		return TypeUnknown
	}
}

// Remap selects the conversion between host values and wire values.
type Remap int

const (
	RemapNone         Remap = iota
	RemapVector             // Y/Z swap
	RemapRotation           // inverted, reordered quaternion
	RemapViewRotation       // as RemapRotation plus the light/camera frame fix
	RemapAngle              // radians on the host, degrees on the wire
	RemapIntensity          // watts on the host, watts/100 on the wire
)

// Reaction is an observer kind attached to a parameter.
type Reaction int

const (
	// ReactHost writes the value into the host object.
	ReactHost Reaction = iota
	// ReactNetwork queues an outbound parameter update.
	ReactNetwork
)

// String returns the reaction name.
func (r Reaction) String() string {
	switch r {
	case ReactHost:
		return "host"
	case ReactNetwork:
		return "network"
	default:
		return fmt.Sprintf("reaction(%d)", int(r))
	}
}
