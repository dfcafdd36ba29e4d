// Package updates runs the synchronization channel: it applies peer
// parameter updates and lock requests to the live scene objects, corrects
// the shared clock from SYNC messages, and publishes local edits.
package updates

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/clock"
	"github.com/Faultbox/vpet-bridge/internal/logger"
	"github.com/Faultbox/vpet-bridge/internal/network/packets"
	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/internal/state"
)

// ErrNoPublisher is returned when an edit must go out but no publisher is set.
var ErrNoPublisher = errors.New("no update publisher")

// Publisher sends one encoded message to peers.
type Publisher interface {
	Publish(msg []byte) error
}

// Pinger performs one round trip on the command link.
type Pinger interface {
	Ping(ctx context.Context, clientID, now uint8) (packets.Header, error)
}

// Stats counts channel activity since creation.
type Stats struct {
	Applied     int64 `json:"applied"`
	Dropped     int64 `json:"dropped"`
	Echoes      int64 `json:"echoes"`
	Locks       int64 `json:"locks"`
	Corrections int64 `json:"corrections"`
	Sent        int64 `json:"sent"`
}

// Channel is the synchronization endpoint of one client.
type Channel struct {
	clientID  uint8
	state     *state.State
	clock     *clock.Clock
	rtt       *clock.RTT
	threshold int
	log       *zap.Logger

	pub atomic.Value // holds publisherBox

	applied     atomic.Int64
	dropped     atomic.Int64
	echoes      atomic.Int64
	locks       atomic.Int64
	corrections atomic.Int64
	sent        atomic.Int64
}

type publisherBox struct{ p Publisher }

// New returns a channel for clientID. threshold is the drift, in frames,
// tolerated before a SYNC moves the local clock.
func New(clientID uint8, st *state.State, clk *clock.Clock, rtt *clock.RTT, threshold int) *Channel {
	c := &Channel{
		clientID:  clientID,
		state:     st,
		clock:     clk,
		rtt:       rtt,
		threshold: threshold,
		log:       logger.Named("sync"),
	}
	c.pub.Store(publisherBox{})
	return c
}

// ClientID returns the id stamped on outbound messages.
func (c *Channel) ClientID() uint8 { return c.clientID }

// SetPublisher installs the outbound socket. nil disconnects.
func (c *Channel) SetPublisher(p Publisher) {
	c.pub.Store(publisherBox{p})
}

func (c *Channel) publish(msg []byte) error {
	p := c.pub.Load().(publisherBox).p
	if p == nil {
		return ErrNoPublisher
	}
	if err := p.Publish(msg); err != nil {
		return err
	}
	c.sent.Inc()
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Channel) Stats() Stats {
	return Stats{
		Applied:     c.applied.Load(),
		Dropped:     c.dropped.Load(),
		Echoes:      c.echoes.Load(),
		Locks:       c.locks.Load(),
		Corrections: c.corrections.Load(),
		Sent:        c.sent.Load(),
	}
}

// Handle processes one inbound message. Messages from this client and
// records naming unknown objects or parameters are dropped without error.
func (c *Channel) Handle(msg []byte) error {
	if len(msg) < packets.HeaderSize {
		c.dropped.Inc()
		return nil
	}
	if msg[0] == c.clientID {
		c.echoes.Inc()
		return nil
	}

	body, decodeErr := packets.Decode(msg)
	if decodeErr != nil {
		c.dropped.Inc()
		c.log.Debug("malformed message", zap.Stringer("type", body.Header.Type), zap.Error(decodeErr))
	}

	switch body.Header.Type {
	case packets.TypeParameterUpdate:
		return c.applyUpdates(body.Updates)
	case packets.TypeLock:
		if body.Lock == nil {
			return nil
		}
		return c.applyLock(*body.Lock)
	case packets.TypeSync:
		c.correct(int(body.Header.Time))
	case packets.TypeResendUpdate:
		return c.Resend()
	default:
		c.log.Debug("ignored message", zap.Stringer("type", body.Header.Type),
			zap.Uint8("client", body.Header.ClientID))
	}
	return nil
}

func (c *Channel) applyUpdates(records []packets.ParameterUpdate) error {
	if len(records) == 0 {
		return nil
	}
	err := c.state.WithArena(func(a *sceneobject.Arena) error {
		for i := range records {
			if err := c.applyUpdate(a, &records[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, state.ErrNoScene) {
		c.dropped.Add(int64(len(records)))
		return nil
	}
	return err
}

func (c *Channel) applyUpdate(a *sceneobject.Arena, rec *packets.ParameterUpdate) error {
	if rec.SceneID != a.SceneID() {
		c.drop(rec, "foreign scene")
		return nil
	}
	obj, ok := a.Get(rec.ObjectID)
	if !ok {
		c.drop(rec, "unknown object")
		return nil
	}
	p, ok := obj.Parameter(rec.ParamID)
	if !ok {
		c.drop(rec, "unknown parameter")
		return nil
	}
	if uint8(p.Type()) != rec.ParamType {
		c.drop(rec, "type mismatch")
		return nil
	}
	if err := p.Decode(rec.Payload); err != nil {
		if errors.Is(err, sceneobject.ErrPayloadSize) || errors.Is(err, sceneobject.ErrTypeMismatch) {
			c.drop(rec, err.Error())
			return nil
		}
		return fmt.Errorf("object %d parameter %d: %w", rec.ObjectID, rec.ParamID, err)
	}
	c.applied.Inc()
	return nil
}

func (c *Channel) drop(rec *packets.ParameterUpdate, reason string) {
	c.dropped.Inc()
	c.log.Debug("dropped update",
		zap.String("reason", reason),
		zap.Uint8("scene", rec.SceneID),
		zap.Uint16("object", rec.ObjectID),
		zap.Uint16("param", rec.ParamID))
}

func (c *Channel) applyLock(l packets.Lock) error {
	err := c.state.WithArena(func(a *sceneobject.Arena) error {
		obj, ok := a.Get(l.ObjectID)
		if !ok {
			c.dropped.Inc()
			return nil
		}
		if err := obj.SetLocked(l.Locked); err != nil {
			return fmt.Errorf("lock object %d: %w", l.ObjectID, err)
		}
		c.locks.Inc()
		c.log.Debug("lock", zap.Uint16("object", l.ObjectID), zap.Bool("locked", l.Locked))
		return nil
	})
	if errors.Is(err, state.ErrNoScene) {
		c.dropped.Inc()
		return nil
	}
	return err
}

func (c *Channel) correct(peer int) {
	before := c.clock.Now()
	if c.clock.Correct(peer, c.rtt.Estimate(), c.threshold) {
		c.corrections.Inc()
		c.log.Debug("clock corrected",
			zap.Int("from", before), zap.Int("to", c.clock.Now()), zap.Int("peer", peer))
	}
}

// QueueUpdate publishes a local edit as a single PARAMETERUPDATE. The
// arenas built by a session use the channel as their update sink.
func (c *Channel) QueueUpdate(obj *sceneobject.Object, p sceneobject.Param) error {
	msg, err := packets.Updates(c.clientID, c.now(), record(obj, p))
	if err != nil {
		return err
	}
	return c.publish(msg)
}

func record(obj *sceneobject.Object, p sceneobject.Param) packets.ParameterUpdate {
	return packets.ParameterUpdate{
		SceneID:   obj.SceneID(),
		ObjectID:  obj.ID(),
		ParamID:   p.ID(),
		ParamType: uint8(p.Type()),
		Payload:   p.Encode(),
	}
}

// Resend publishes the current value of every distributed parameter,
// packing as many records per message as the length field allows.
func (c *Channel) Resend() error {
	var msgs [][]byte
	err := c.state.WithArena(func(a *sceneobject.Arena) error {
		var batch []packets.ParameterUpdate
		size := packets.HeaderSize
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			msg, err := packets.Updates(c.clientID, c.now(), batch...)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
			batch, size = nil, packets.HeaderSize
			return nil
		}

		for _, obj := range a.Objects() {
			for _, p := range obj.Parameters() {
				if !p.Distribute() {
					continue
				}
				rec := record(obj, p)
				if err := rec.Validate(); err != nil {
					c.log.Warn("parameter too large to resend",
						zap.String("entity", obj.Entity()), zap.String("param", p.Name()))
					continue
				}
				if size+rec.Size() > maxMessageSize {
					if err := flush(); err != nil {
						return err
					}
				}
				batch = append(batch, rec)
				size += rec.Size()
			}
		}
		return flush()
	})
	if errors.Is(err, state.ErrNoScene) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := c.publish(msg); err != nil {
			return err
		}
	}
	c.log.Debug("resent parameters", zap.Int("messages", len(msgs)))
	return nil
}

// maxMessageSize caps batched resend messages.
const maxMessageSize = 1024

// SendSync announces the local clock to peers.
func (c *Channel) SendSync() error {
	return c.publish(packets.Sync(c.clientID, c.now()))
}

// Measure pings once and feeds the round trip, in frames, to the estimator.
func (c *Channel) Measure(ctx context.Context, p Pinger) error {
	sent := c.clock.Now()
	if _, err := p.Ping(ctx, c.clientID, uint8(sent)); err != nil {
		return err
	}
	sample := clock.Delta(c.clock.Now(), sent, c.clock.Timesteps())
	c.rtt.Add(float64(sample))
	return nil
}

func (c *Channel) now() uint8 {
	return uint8(c.clock.Now())
}
