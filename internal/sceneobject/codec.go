package sceneobject

import (
	"fmt"
	"unicode/utf8"

	"github.com/Faultbox/vpet-bridge/internal/coords"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

// intensityScale converts host light energy to client intensity.
const intensityScale = 100

// toWire applies remap to a host value.
func toWire[T Value](v T, remap Remap) T {
	switch x := any(v).(type) {
	case math.Vec3:
		if remap == RemapVector {
			return any(coords.Vec(x)).(T)
		}
	case math.Quat:
		switch remap {
		case RemapRotation:
			return any(coords.Rotation(x, false)).(T)
		case RemapViewRotation:
			return any(coords.Rotation(x, true)).(T)
		}
	case float32:
		switch remap {
		case RemapAngle:
			return any(math.Degrees(x)).(T)
		case RemapIntensity:
			return any(x / intensityScale).(T)
		}
	}
	return v
}

// fromWire undoes toWire.
func fromWire[T Value](v T, remap Remap) T {
	switch x := any(v).(type) {
	case math.Vec3:
		if remap == RemapVector {
			return any(coords.Vec(x)).(T)
		}
	case math.Quat:
		switch remap {
		case RemapRotation:
			return any(coords.FromWireRotation(x, false)).(T)
		case RemapViewRotation:
			return any(coords.FromWireRotation(x, true)).(T)
		}
	case float32:
		switch remap {
		case RemapAngle:
			return any(math.Radians(x)).(T)
		case RemapIntensity:
			return any(x * intensityScale).(T)
		}
	}
	return v
}

// encodeValue serializes a host value into its wire payload.
func encodeValue[T Value](v T, remap Remap) []byte {
	w := formats.NewWriter(16)
	switch x := any(toWire(v, remap)).(type) {
	case bool:
		if x {
			w.Raw([]byte{1})
		} else {
			w.Raw([]byte{0})
		}
	case int32:
		w.Int32(x)
	case float32:
		w.Float32(x)
	case math.Vec2:
		w.Float32(x.X)
		w.Float32(x.Y)
	case math.Vec3:
		w.Vec3(x)
	case math.Vec4:
		w.Float32s([]float32{x.X, x.Y, x.Z, x.W})
	case math.Quat:
		w.Quat(x)
	case math.Color:
		w.Color(x)
	case string:
		w.Raw([]byte(x))
	}
	return w.Bytes()
}

// decodeValue parses a wire payload into a host value.
func decodeValue[T Value](payload []byte, remap Remap) (T, error) {
	var zero T
	typ := TypeOf[T]()
	if size := typ.Size(); size >= 0 && len(payload) != size {
		return zero, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrPayloadSize, typ, size, len(payload))
	}

	r := formats.NewReader(payload)
	var v any
	switch any(zero).(type) {
	case bool:
		v = payload[0] != 0
	case int32:
		v = r.Int32()
	case float32:
		v = r.Float32()
	case math.Vec2:
		v = math.Vec2{X: r.Float32(), Y: r.Float32()}
	case math.Vec3:
		v = r.Vec3()
	case math.Vec4:
		v = math.Vec4{X: r.Float32(), Y: r.Float32(), Z: r.Float32(), W: r.Float32()}
	case math.Quat:
		v = r.Quat()
	case math.Color:
		v = r.Color()
	case string:
		if !utf8.Valid(payload) {
			return zero, fmt.Errorf("%w: string payload is not UTF-8", ErrPayloadSize)
		}
		v = string(payload)
	}
	if err := r.Err(); err != nil {
		return zero, err
	}
	return fromWire(v.(T), remap), nil
}
