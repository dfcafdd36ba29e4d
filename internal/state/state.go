// Package state holds the scene state shared by the distribution server,
// the sync listener and local edits. Every task that touches objects goes
// through the state lock; distribution blobs are immutable once committed.
package state

import (
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/atomic"

	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/pkg/formats"
)

// Errors returned by State.
var (
	ErrPassInProgress = errors.New("distribution pass already in progress")
	ErrStalePass      = errors.New("pass was superseded")
	ErrNoScene        = errors.New("no scene distributed")
)

// State is the scene-state context of one bridge instance.
type State struct {
	busy atomic.Bool

	mu        sync.RWMutex
	pass      ulid.ULID
	pending   ulid.ULID
	result    *serializer.Result
	arena     *sceneobject.Arena
	digests   map[string]uint64
	committed time.Time
}

// New returns an empty state.
func New() *State {
	return &State{digests: make(map[string]uint64)}
}

// Begin claims the pass guard and returns a fresh pass id.
func (s *State) Begin() (ulid.ULID, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return ulid.ULID{}, ErrPassInProgress
	}
	id := ulid.Make()
	s.mu.Lock()
	s.pending = id
	s.mu.Unlock()
	return id, nil
}

// Abort releases the pass guard without changing the committed scene.
func (s *State) Abort(id ulid.ULID) {
	s.mu.Lock()
	if s.pending == id {
		s.pending = ulid.ULID{}
	}
	s.mu.Unlock()
	s.busy.Store(false)
}

// Commit publishes a finished pass and releases the guard. The previous
// arena is released so stale objects reject edits.
func (s *State) Commit(id ulid.ULID, res *serializer.Result, arena *sceneobject.Arena) error {
	defer s.busy.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != id {
		return ErrStalePass
	}
	if s.arena != nil {
		s.arena.Release()
	}
	s.pass = id
	s.pending = ulid.ULID{}
	s.result = res
	s.arena = arena
	s.committed = time.Now()

	s.digests = make(map[string]uint64, len(serializer.Commands))
	for cmd, blob := range res.Blobs.Table() {
		s.digests[cmd] = xxhash.Sum64(blob)
	}
	return nil
}

// Reset drops the committed scene.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.arena != nil {
		s.arena.Release()
	}
	s.pass = ulid.ULID{}
	s.pending = ulid.ULID{}
	s.result = nil
	s.arena = nil
	s.digests = make(map[string]uint64)
	s.committed = time.Time{}
}

// Pass returns the committed pass id. It is zero before the first commit.
func (s *State) Pass() ulid.ULID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pass
}

// Blob returns the committed blob for a distribution command. Unknown
// commands and an empty state return nil.
func (s *State) Blob(cmd string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	b, _ := s.result.Blobs.Lookup(cmd)
	return b
}

// Digest returns the xxhash of a committed blob.
func (s *State) Digest(cmd string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.digests[cmd]
	return d, ok
}

// WithArena runs fn with exclusive access to the live objects.
func (s *State) WithArena(fn func(a *sceneobject.Arena) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.arena == nil {
		return ErrNoScene
	}
	return fn(s.arena)
}

// Summary describes the committed pass.
type Summary struct {
	Pass        string              `json:"pass"`
	CommittedAt time.Time           `json:"committed_at"`
	Objects     int                 `json:"objects"`
	Nodes       int                 `json:"nodes"`
	Geometries  int                 `json:"geometries"`
	Materials   int                 `json:"materials"`
	Textures    int                 `json:"textures"`
	Characters  int                 `json:"characters"`
	Editable    []EditableInfo      `json:"editable"`
	Blobs       map[string]BlobInfo `json:"blobs"`
}

// EditableInfo names an editable node.
type EditableInfo struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	NodeID int32  `json:"node_id"`
}

// BlobInfo describes one blob.
type BlobInfo struct {
	Size   int    `json:"size"`
	Digest uint64 `json:"digest"`
}

// Summary returns the committed pass description, or ErrNoScene.
func (s *State) Summary() (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return Summary{}, ErrNoScene
	}
	r := s.result
	sum := Summary{
		Pass:        s.pass.String(),
		CommittedAt: s.committed,
		Objects:     r.ObjectCount,
		Nodes:       len(r.Nodes),
		Geometries:  len(r.Geometries),
		Materials:   len(r.Materials),
		Textures:    len(r.Textures),
		Characters:  len(r.Characters),
		Blobs:       make(map[string]BlobInfo, len(serializer.Commands)),
	}
	for _, e := range r.Editable {
		sum.Editable = append(sum.Editable, EditableInfo{Name: e.Name, Type: e.Type.String(), NodeID: e.NodeID})
	}
	for cmd, blob := range r.Blobs.Table() {
		sum.Blobs[cmd] = BlobInfo{Size: len(blob), Digest: s.digests[cmd]}
	}
	return sum, nil
}

// ObjectInfo describes a live scene object.
type ObjectInfo struct {
	ID         uint16      `json:"id"`
	Name       string      `json:"name"`
	Kind       string      `json:"kind"`
	Locked     bool        `json:"locked"`
	Parameters []ParamInfo `json:"parameters"`
}

// ParamInfo describes one parameter.
type ParamInfo struct {
	ID    uint16 `json:"id"`
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// Objects lists the live scene objects.
func (s *State) Objects() ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := s.WithArena(func(a *sceneobject.Arena) error {
		for _, o := range a.Objects() {
			info := ObjectInfo{ID: o.ID(), Name: o.Entity(), Kind: o.Kind().String(), Locked: o.Locked()}
			for _, p := range o.Parameters() {
				info.Parameters = append(info.Parameters, ParamInfo{
					ID: p.ID(), Name: p.Name(), Type: p.Type().String(), Value: p.Value(),
				})
			}
			out = append(out, info)
		}
		return nil
	})
	return out, err
}

// Nodes returns the committed node records.
func (s *State) Nodes() []*formats.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	return s.result.Nodes
}
