package sceneobject

import "fmt"

// Param is the type-erased view of a Parameter used by objects and the
// update handler.
type Param interface {
	ID() uint16
	Name() string
	Type() ParameterType
	Distribute() bool
	Reactions() []Reaction
	// Value returns the current value in host conventions.
	Value() any
	// Encode returns the wire payload for the current value.
	Encode() []byte
	// Decode applies a payload received from a peer.
	Decode(payload []byte) error
	// SetAny performs a local edit. v must have the parameter's Go type.
	SetAny(v any) error
}

// Parameter is a typed, named value owned by an Object.
type Parameter[T Value] struct {
	id         uint16
	name       string
	value      T
	remap      Remap
	distribute bool
	reactions  []Reaction
	owner      *Object
}

// ID returns the index of the parameter in its object.
func (p *Parameter[T]) ID() uint16 { return p.id }

// Name returns the host-side parameter name.
func (p *Parameter[T]) Name() string { return p.name }

// Type returns the wire tag.
func (p *Parameter[T]) Type() ParameterType { return TypeOf[T]() }

// Distribute reports whether local edits are sent to peers.
func (p *Parameter[T]) Distribute() bool { return p.distribute }

// Reactions returns the attached observers.
func (p *Parameter[T]) Reactions() []Reaction { return p.reactions }

// Remap returns the wire conversion.
func (p *Parameter[T]) Remap() Remap { return p.remap }

// Get returns the typed value.
func (p *Parameter[T]) Get() T { return p.value }

// Value returns the value as any.
func (p *Parameter[T]) Value() any { return p.value }

// Encode returns the wire payload.
func (p *Parameter[T]) Encode() []byte { return encodeValue(p.value, p.remap) }

// Set performs a local edit. Unchanged values are ignored.
func (p *Parameter[T]) Set(v T) error {
	if p.value == v {
		return nil
	}
	p.value = v
	return p.owner.dispatch(p, false)
}

// SetAny is Set for callers holding a Param.
func (p *Parameter[T]) SetAny(v any) error {
	tv, ok := v.(T)
	if !ok {
		return fmt.Errorf("%w: %s wants %s, got %T", ErrTypeMismatch, p.name, p.Type(), v)
	}
	return p.Set(tv)
}

// Decode applies a remote payload and fires the host reaction.
func (p *Parameter[T]) Decode(payload []byte) error {
	v, err := decodeValue[T](payload, p.remap)
	if err != nil {
		return fmt.Errorf("decode %s: %w", p.name, err)
	}
	p.value = v
	return p.owner.dispatch(p, true)
}

// Option configures a parameter at creation.
type Option func(*paramOptions)

type paramOptions struct {
	remap      Remap
	distribute bool
	reactions  []Reaction
}

// WithRemap sets the wire conversion.
func WithRemap(r Remap) Option {
	return func(o *paramOptions) { o.remap = r }
}

// Local marks a parameter as never distributed.
func Local() Option {
	return func(o *paramOptions) { o.distribute = false }
}

// WithReactions replaces the default observer list.
func WithReactions(rs ...Reaction) Option {
	return func(o *paramOptions) { o.reactions = rs }
}

// AddParameter appends a parameter to obj. Its ID is its position.
func AddParameter[T Value](obj *Object, name string, initial T, opts ...Option) *Parameter[T] {
	po := paramOptions{distribute: true, reactions: []Reaction{ReactHost, ReactNetwork}}
	for _, opt := range opts {
		opt(&po)
	}
	p := &Parameter[T]{
		id:         uint16(len(obj.params)),
		name:       name,
		value:      initial,
		remap:      po.remap,
		distribute: po.distribute,
		reactions:  po.reactions,
		owner:      obj,
	}
	obj.params = append(obj.params, p)
	return p
}
