// Package session ties the bridge together: it runs distribution passes
// over the host scene and owns the runtime tasks that serve and
// synchronize it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/clock"
	"github.com/Faultbox/vpet-bridge/internal/config"
	"github.com/Faultbox/vpet-bridge/internal/logger"
	"github.com/Faultbox/vpet-bridge/internal/network"
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/internal/state"
	"github.com/Faultbox/vpet-bridge/internal/updates"
)

// Errors returned by Session.
var (
	ErrRunning    = errors.New("session already running")
	ErrNotRunning = errors.New("session not running")
)

// Session is one bridge instance bound to a host.
type Session struct {
	cfg       *config.Config
	host      scene.Host
	endpoints network.Endpoints
	log       *zap.Logger

	state   *state.State
	clock   *clock.Clock
	rtt     *clock.RTT
	channel *updates.Channel

	mu      sync.Mutex
	socks   *network.Sockets
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	running bool
}

// Option adjusts a session at construction.
type Option func(*Session)

// WithEndpoints overrides the endpoints derived from the configuration.
func WithEndpoints(ep network.Endpoints) Option {
	return func(s *Session) { s.endpoints = ep }
}

// New creates a session for host.
func New(cfg *config.Config, host scene.Host, opts ...Option) *Session {
	st := state.New()
	clk := clock.New(cfg.Sync.FrameRate, time.Now())
	rtt := &clock.RTT{}

	s := &Session{
		cfg:       cfg,
		host:      host,
		endpoints: Endpoints(cfg),
		log:       logger.Named("session"),
		state:     st,
		clock:     clk,
		rtt:       rtt,
		channel:   updates.New(cfg.ResolvedClientID(), st, clk, rtt, cfg.Sync.DriftThreshold),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Endpoints derives the socket endpoints from cfg.
func Endpoints(cfg *config.Config) network.Endpoints {
	n := cfg.Network
	return network.Endpoints{
		Distribution: cfg.Endpoint(n.DistributionPort),
		Sync:         cfg.Endpoint(n.SyncPort),
		Update:       cfg.Endpoint(n.UpdatePort),
		Command:      cfg.Endpoint(n.CommandPort),
		Timeout:      n.ConnectTimeout,
		QueueDepth:   network.DefaultQueueDepth,
	}
}

// State returns the shared scene state.
func (s *Session) State() *state.State { return s.state }

// Channel returns the synchronization channel.
func (s *Session) Channel() *updates.Channel { return s.channel }

// Clock returns the shared clock.
func (s *Session) Clock() *clock.Clock { return s.clock }

// Distribute runs one pass: snapshot, serialize, build the scene objects
// and publish the result to the distribution server. It returns the number
// of objects transferred; an empty scene reports zero with
// serializer.ErrNoObjects.
func (s *Session) Distribute(ctx context.Context) (int, error) {
	id, err := s.state.Begin()
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			s.state.Abort(id)
		}
	}()

	snap, err := s.host.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("host snapshot: %w", err)
	}

	res, err := serializer.Serialize(ctx, snap, serializer.Options{
		ClientID:             s.channel.ClientID(),
		FrameRate:            s.clock.FrameRate(),
		LightIntensityFactor: s.cfg.Scene.LightIntensityFactor,
	})
	if errors.Is(err, serializer.ErrNoObjects) {
		s.log.Warn("nothing to distribute",
			zap.String("static", s.cfg.Scene.StaticCollection),
			zap.String("editable", s.cfg.Scene.EditableCollection))
		return 0, err
	}
	if err != nil {
		return 0, fmt.Errorf("serialize: %w", err)
	}

	arena, err := buildArena(id, s.host, s.channel, snap, res.Editable)
	if err != nil {
		return 0, err
	}

	committed = true
	if err := s.state.Commit(id, res, arena); err != nil {
		return 0, err
	}
	s.log.Info("scene distributed",
		zap.Stringer("pass", id),
		zap.Int("objects", res.ObjectCount),
		zap.Int("editable", arena.Len()),
		zap.Int("bytes", res.Blobs.Size()))
	return res.ObjectCount, nil
}

// buildArena creates scene objects in editable node order so object ids
// match the order clients see them in the node list.
func buildArena(id ulid.ULID, host scene.Host, sink sceneobject.UpdateSink, snap *scene.Snapshot, editable []serializer.EditableNode) (*sceneobject.Arena, error) {
	byName := make(map[string]*scene.Entity, len(snap.Editable))
	for _, e := range snap.Editable {
		byName[e.Name] = e
	}

	arena := sceneobject.NewArena(id, sceneobject.DefaultSceneID, host, sink)
	for _, n := range editable {
		e, ok := byName[n.Name]
		if !ok {
			return nil, fmt.Errorf("editable node %q missing from snapshot", n.Name)
		}
		if _, err := sceneobject.Build(arena, e); err != nil {
			return nil, fmt.Errorf("build %s: %w", n.Name, err)
		}
	}
	return arena, nil
}

// Edit is a local edit coming from the host: entity's parameter is set
// to v and routed according to the object's lock.
func (s *Session) Edit(entity, param string, v any) error {
	return s.state.WithArena(func(a *sceneobject.Arena) error {
		obj, ok := a.Lookup(entity)
		if !ok {
			return fmt.Errorf("%w: %s", sceneobject.ErrUnknownObject, entity)
		}
		p, ok := obj.ParameterByName(param)
		if !ok {
			return fmt.Errorf("%w: %s.%s", sceneobject.ErrNoSuchParam, entity, param)
		}
		return p.SetAny(v)
	})
}

// EditByID is Edit addressed by wire ids.
func (s *Session) EditByID(objID, paramID uint16, v any) error {
	return s.state.WithArena(func(a *sceneobject.Arena) error {
		return a.Edit(objID, paramID, v)
	})
}
