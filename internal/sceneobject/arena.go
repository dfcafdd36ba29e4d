package sceneobject

import (
	"fmt"
	gomath "math"

	"github.com/oklog/ulid/v2"

	"github.com/Faultbox/vpet-bridge/internal/scene"
)

// DefaultSceneID is the scene id the bridge uses in update records.
const DefaultSceneID uint8 = 254

// UpdateSink receives local edits that must be sent to peers.
type UpdateSink interface {
	QueueUpdate(obj *Object, p Param) error
}

// Arena owns the objects created by one serialization pass. Object IDs are
// 1-based positions in the arena; 0 is never assigned.
type Arena struct {
	pass    ulid.ULID
	sceneID uint8
	host    scene.Host
	sink    UpdateSink
	objects []*Object
	done    bool
}

// NewArena creates an empty arena for a pass.
func NewArena(pass ulid.ULID, sceneID uint8, host scene.Host, sink UpdateSink) *Arena {
	return &Arena{pass: pass, sceneID: sceneID, host: host, sink: sink}
}

// Pass returns the pass id.
func (a *Arena) Pass() ulid.ULID { return a.pass }

// SceneID returns the scene id assigned to objects.
func (a *Arena) SceneID() uint8 { return a.sceneID }

// Len returns the number of objects.
func (a *Arena) Len() int { return len(a.objects) }

// Objects returns all objects in ID order.
func (a *Arena) Objects() []*Object { return a.objects }

// SetSink replaces the update sink.
func (a *Arena) SetSink(sink UpdateSink) { a.sink = sink }

// New allocates an object with no parameters.
func (a *Arena) New(entity string, kind scene.Kind) (*Object, error) {
	if a.done {
		return nil, ErrDetached
	}
	if len(a.objects) >= gomath.MaxUint16 {
		return nil, ErrArenaFull
	}
	obj := &Object{
		id:      uint16(len(a.objects) + 1),
		sceneID: a.sceneID,
		entity:  entity,
		kind:    kind,
		arena:   a,
	}
	a.objects = append(a.objects, obj)
	return obj, nil
}

// Get returns the object with the given ID.
func (a *Arena) Get(id uint16) (*Object, bool) {
	if id == 0 || int(id) > len(a.objects) {
		return nil, false
	}
	return a.objects[id-1], true
}

// Lookup returns the object mirroring the named entity.
func (a *Arena) Lookup(entity string) (*Object, bool) {
	for _, o := range a.objects {
		if o.entity == entity {
			return o, true
		}
	}
	return nil, false
}

// Edit performs a local edit addressed by object and parameter ID.
func (a *Arena) Edit(objID, paramID uint16, v any) error {
	obj, ok := a.Get(objID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownObject, objID)
	}
	return obj.Edit(paramID, v)
}

// Release detaches all objects. Later edits fail with ErrDetached.
func (a *Arena) Release() { a.done = true }

func (a *Arena) released() bool { return a == nil || a.done }
