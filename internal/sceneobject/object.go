package sceneobject

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/logger"
	"github.com/Faultbox/vpet-bridge/internal/scene"
)

// Object mirrors one editable host entity.
//
// Objects are not safe for concurrent use; callers serialize access through
// the scene state lock.
type Object struct {
	id      uint16
	sceneID uint8
	entity  string
	kind    scene.Kind
	locked  bool
	params  []Param
	arena   *Arena
}

// ID returns the 1-based object id.
func (o *Object) ID() uint16 { return o.id }

// SceneID returns the scene id sent with updates.
func (o *Object) SceneID() uint8 { return o.sceneID }

// Entity returns the host entity name.
func (o *Object) Entity() string { return o.entity }

// Kind returns the host entity kind.
func (o *Object) Kind() scene.Kind { return o.kind }

// Locked reports whether this participant holds the lock, which lets local
// edits reach the host object instead of the network.
func (o *Object) Locked() bool { return o.locked }

// Parameters returns the parameters in ID order.
func (o *Object) Parameters() []Param { return o.params }

// Parameter returns the parameter with the given ID.
func (o *Object) Parameter(id uint16) (Param, bool) {
	if int(id) >= len(o.params) {
		return nil, false
	}
	return o.params[id], true
}

// ParameterByName returns the first parameter named name.
func (o *Object) ParameterByName(name string) (Param, bool) {
	for _, p := range o.params {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// Edit performs a local edit on a parameter by ID.
func (o *Object) Edit(id uint16, v any) error {
	p, ok := o.Parameter(id)
	if !ok {
		return fmt.Errorf("%w: object %d parameter %d", ErrNoSuchParam, o.id, id)
	}
	return p.SetAny(v)
}

// SetLocked records a LOCK record and toggles host selectability.
func (o *Object) SetLocked(locked bool) error {
	if o.arena.released() {
		return ErrDetached
	}
	o.locked = locked
	return o.arena.host.SetSelectable(o.entity, !locked)
}

// dispatch runs the parameter's reactions. Local edits on an unlocked
// object go to the network only; local edits on a locked object and all
// remote edits go to the host only.
func (o *Object) dispatch(p Param, remote bool) error {
	if o.arena.released() {
		return ErrDetached
	}
	for _, r := range p.Reactions() {
		switch r {
		case ReactHost:
			if !remote && !o.locked {
				continue
			}
			if err := o.arena.host.ApplyParameter(o.entity, p.Name(), p.Value()); err != nil {
				return fmt.Errorf("apply %s.%s: %w", o.entity, p.Name(), err)
			}
		case ReactNetwork:
			if remote || o.locked || !p.Distribute() {
				continue
			}
			if o.arena.sink == nil {
				logger.Debug("no update sink, dropping edit",
					zap.Uint16("object", o.id), zap.String("param", p.Name()))
				continue
			}
			if err := o.arena.sink.QueueUpdate(o, p); err != nil {
				return fmt.Errorf("queue %s.%s: %w", o.entity, p.Name(), err)
			}
		}
	}
	return nil
}
