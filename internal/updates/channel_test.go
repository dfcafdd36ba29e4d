package updates

import (
	"context"
	"encoding/binary"
	"errors"
	gomath "math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/vpet-bridge/internal/clock"
	"github.com/Faultbox/vpet-bridge/internal/host"
	"github.com/Faultbox/vpet-bridge/internal/network/packets"
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/internal/state"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

const ownID uint8 = 7

type fakePublisher struct {
	msgs [][]byte
	err  error
}

func (p *fakePublisher) Publish(msg []byte) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

type fakePinger struct {
	clk     *clock.Clock
	advance int
	err     error
}

func (p *fakePinger) Ping(_ context.Context, clientID, now uint8) (packets.Header, error) {
	if p.err != nil {
		return packets.Header{}, p.err
	}
	p.clk.Set(p.clk.Now() + p.advance)
	return packets.Header{ClientID: 254, Time: now, Type: packets.TypePing}, nil
}

type fixture struct {
	host  *host.Memory
	state *state.State
	clock *clock.Clock
	rtt   *clock.RTT
	ch    *Channel
	pub   *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cube := &scene.Entity{
		Name:     "Cube",
		Kind:     scene.KindMesh,
		Position: math.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Mesh:     host.Cube("Cube", 1),
	}
	h := host.NewMemory(&scene.Snapshot{Editable: []*scene.Entity{cube}})

	f := &fixture{
		host:  h,
		state: state.New(),
		clock: clock.New(60, time.Now()),
		rtt:   &clock.RTT{},
		pub:   &fakePublisher{},
	}
	f.ch = New(ownID, f.state, f.clock, f.rtt, 3)
	f.ch.SetPublisher(f.pub)

	snap, err := h.Snapshot(context.Background())
	require.NoError(t, err)
	res, err := serializer.Serialize(context.Background(), snap, serializer.Options{FrameRate: 60})
	require.NoError(t, err)

	id, err := f.state.Begin()
	require.NoError(t, err)
	arena := sceneobject.NewArena(id, sceneobject.DefaultSceneID, h, f.ch)
	_, err = sceneobject.Build(arena, snap.Editable[0])
	require.NoError(t, err)
	require.NoError(t, f.state.Commit(id, res, arena))
	return f
}

func vec3Payload(v math.Vec3) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:], gomath.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], gomath.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], gomath.Float32bits(v.Z))
	return b
}

func positionUpdate(objID, paramID uint16, wire math.Vec3) packets.ParameterUpdate {
	return packets.ParameterUpdate{
		SceneID:   sceneobject.DefaultSceneID,
		ObjectID:  objID,
		ParamID:   paramID,
		ParamType: uint8(sceneobject.TypeVec3),
		Payload:   vec3Payload(wire),
	}
}

func updates(t *testing.T, from uint8, recs ...packets.ParameterUpdate) []byte {
	t.Helper()
	msg, err := packets.Updates(from, 0, recs...)
	require.NoError(t, err)
	return msg
}

func (f *fixture) cube(t *testing.T) scene.Entity {
	t.Helper()
	e, ok := f.host.Entity("Cube")
	require.True(t, ok)
	return e
}

func TestRemoteUpdateAppliesToHost(t *testing.T) {
	f := newFixture(t)

	// Wire order is (x, z, y).
	msg := updates(t, 3, positionUpdate(1, 0, math.Vec3{X: 4, Y: 6, Z: 5}))
	require.NoError(t, f.ch.Handle(msg))

	assert.Equal(t, math.Vec3{X: 4, Y: 5, Z: 6}, f.cube(t).Position)
	assert.Equal(t, int64(1), f.ch.Stats().Applied)
	assert.Empty(t, f.pub.msgs, "remote edits must not be republished")
}

func TestSelfEchoIgnored(t *testing.T) {
	f := newFixture(t)

	msg := updates(t, ownID, positionUpdate(1, 0, math.Vec3{X: 9, Y: 9, Z: 9}))
	require.NoError(t, f.ch.Handle(msg))

	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, f.cube(t).Position)
	assert.Equal(t, int64(1), f.ch.Stats().Echoes)
	assert.Zero(t, f.ch.Stats().Applied)
}

func TestOutOfRangeDropped(t *testing.T) {
	f := newFixture(t)

	wrongType := positionUpdate(1, 0, math.Vec3{})
	wrongType.ParamType = uint8(sceneobject.TypeFloat)
	foreign := positionUpdate(1, 0, math.Vec3{})
	foreign.SceneID = 3

	msg := updates(t, 3,
		positionUpdate(0, 0, math.Vec3{X: 9}),
		positionUpdate(2, 0, math.Vec3{X: 9}),
		positionUpdate(1, 40, math.Vec3{X: 9}),
		wrongType,
		foreign,
	)
	require.NoError(t, f.ch.Handle(msg))

	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, f.cube(t).Position)
	assert.Equal(t, int64(5), f.ch.Stats().Dropped)
}

func TestMultipleRecordsInOneMessage(t *testing.T) {
	f := newFixture(t)

	msg := updates(t, 3,
		positionUpdate(1, 0, math.Vec3{X: 1, Y: 1, Z: 1}),
		positionUpdate(1, 2, math.Vec3{X: 2, Y: 3, Z: 4}),
	)
	require.NoError(t, f.ch.Handle(msg))

	e := f.cube(t)
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, e.Position)
	assert.Equal(t, math.Vec3{X: 2, Y: 4, Z: 3}, e.Scale)
	assert.Equal(t, int64(2), f.ch.Stats().Applied)
}

func TestTruncatedTailKeepsEarlierRecords(t *testing.T) {
	f := newFixture(t)

	msg := updates(t, 3,
		positionUpdate(1, 0, math.Vec3{X: 5, Y: 5, Z: 5}),
		positionUpdate(1, 2, math.Vec3{X: 2, Y: 2, Z: 2}),
	)
	require.NoError(t, f.ch.Handle(msg[:len(msg)-3]))

	assert.Equal(t, math.Vec3{X: 5, Y: 5, Z: 5}, f.cube(t).Position)
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, f.cube(t).Scale)
	assert.Equal(t, int64(1), f.ch.Stats().Dropped)
}

func TestLocalEditUnlockedPublishes(t *testing.T) {
	f := newFixture(t)

	err := f.state.WithArena(func(a *sceneobject.Arena) error {
		return a.Edit(1, 0, math.Vec3{X: 7, Y: 8, Z: 9})
	})
	require.NoError(t, err)

	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, f.cube(t).Position, "host must not change")
	require.Len(t, f.pub.msgs, 1)

	body, err := packets.Decode(f.pub.msgs[0])
	require.NoError(t, err)
	assert.Equal(t, ownID, body.Header.ClientID)
	assert.Equal(t, packets.TypeParameterUpdate, body.Header.Type)
	require.Len(t, body.Updates, 1)

	rec := body.Updates[0]
	assert.Equal(t, uint16(1), rec.ObjectID)
	assert.Equal(t, uint16(0), rec.ParamID)
	assert.Equal(t, uint8(sceneobject.TypeVec3), rec.ParamType)
	assert.Equal(t, vec3Payload(math.Vec3{X: 7, Y: 9, Z: 8}), rec.Payload)
	assert.Equal(t, int64(1), f.ch.Stats().Sent)
}

func TestLockThenLocalEditMutatesHost(t *testing.T) {
	f := newFixture(t)

	lock := packets.LockMessage(3, 0, packets.Lock{SceneID: sceneobject.DefaultSceneID, ObjectID: 1, Locked: true})
	require.NoError(t, f.ch.Handle(lock))
	assert.False(t, f.host.Selectable("Cube"))
	assert.Equal(t, int64(1), f.ch.Stats().Locks)

	err := f.state.WithArena(func(a *sceneobject.Arena) error {
		return a.Edit(1, 0, math.Vec3{X: 7, Y: 8, Z: 9})
	})
	require.NoError(t, err)
	assert.Equal(t, math.Vec3{X: 7, Y: 8, Z: 9}, f.cube(t).Position)
	assert.Empty(t, f.pub.msgs)

	unlock := packets.LockMessage(3, 0, packets.Lock{SceneID: sceneobject.DefaultSceneID, ObjectID: 1})
	require.NoError(t, f.ch.Handle(unlock))
	assert.True(t, f.host.Selectable("Cube"))
}

func TestLockUnknownObjectDropped(t *testing.T) {
	f := newFixture(t)
	lock := packets.LockMessage(3, 0, packets.Lock{ObjectID: 12, Locked: true})
	require.NoError(t, f.ch.Handle(lock))
	assert.Equal(t, int64(1), f.ch.Stats().Dropped)
	assert.Zero(t, f.ch.Stats().Locks)
}

func TestSyncCorrectsLargeDrift(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(0)

	require.NoError(t, f.ch.Handle(packets.Sync(3, 2)))
	assert.Equal(t, 0, f.clock.Now(), "drift within threshold must not move the clock")

	require.NoError(t, f.ch.Handle(packets.Sync(3, 50)))
	assert.Equal(t, 50, f.clock.Now())
	assert.Equal(t, int64(1), f.ch.Stats().Corrections)
}

func TestSyncUsesRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(0)
	for range 5 {
		f.rtt.Add(10)
	}

	require.NoError(t, f.ch.Handle(packets.Sync(3, 40)))
	assert.Equal(t, 45, f.clock.Now())
}

func TestResendPublishesAllParameters(t *testing.T) {
	f := newFixture(t)

	msg := []byte{3, 0, byte(packets.TypeResendUpdate)}
	require.NoError(t, f.ch.Handle(msg))

	require.Len(t, f.pub.msgs, 1)
	body, err := packets.Decode(f.pub.msgs[0])
	require.NoError(t, err)
	require.Len(t, body.Updates, 3)
	for i, rec := range body.Updates {
		assert.Equal(t, uint16(i), rec.ParamID)
	}
}

func TestSendSync(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(33)
	require.NoError(t, f.ch.SendSync())
	require.Len(t, f.pub.msgs, 1)
	assert.Equal(t, []byte{ownID, 33, byte(packets.TypeSync)}, f.pub.msgs[0])
}

func TestMeasure(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(126)

	p := &fakePinger{clk: f.clock, advance: 4}
	require.NoError(t, f.ch.Measure(context.Background(), p))
	assert.Equal(t, 1, f.rtt.Len())
	assert.InDelta(t, 4.0, f.rtt.Estimate(), 1e-9)

	p.err = errors.New("timeout")
	assert.Error(t, f.ch.Measure(context.Background(), p))
	assert.Equal(t, 1, f.rtt.Len())
}

func TestNoSceneDropsUpdates(t *testing.T) {
	ch := New(ownID, state.New(), clock.New(60, time.Now()), &clock.RTT{}, 3)
	msg := updates(t, 3, positionUpdate(1, 0, math.Vec3{}))
	require.NoError(t, ch.Handle(msg))
	assert.Equal(t, int64(1), ch.Stats().Dropped)
}

func TestShortMessageDropped(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ch.Handle([]byte{1, 2}))
	assert.Equal(t, int64(1), f.ch.Stats().Dropped)
}

func TestNoPublisher(t *testing.T) {
	f := newFixture(t)
	f.ch.SetPublisher(nil)

	err := f.state.WithArena(func(a *sceneobject.Arena) error {
		return a.Edit(1, 0, math.Vec3{X: 7})
	})
	assert.ErrorIs(t, err, ErrNoPublisher)
}
