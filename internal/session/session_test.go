package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	gomath "math"
	"net"
	"testing"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/vpet-bridge/internal/config"
	"github.com/Faultbox/vpet-bridge/internal/host"
	"github.com/Faultbox/vpet-bridge/internal/network"
	"github.com/Faultbox/vpet-bridge/internal/network/packets"
	"github.com/Faultbox/vpet-bridge/internal/scene"
	"github.com/Faultbox/vpet-bridge/internal/sceneobject"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/internal/updates"
	"github.com/Faultbox/vpet-bridge/pkg/math"
)

func testScene() *scene.Snapshot {
	ground := &scene.Entity{
		Name:     "Ground",
		Kind:     scene.KindMesh,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Mesh:     host.Plane("Ground", 10),
	}
	cube := &scene.Entity{
		Name:     "Cube",
		Kind:     scene.KindMesh,
		Position: math.Vec3{X: 1, Y: 2, Z: 3},
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Mesh:     host.Cube("Cube", 1),
	}
	lamp := &scene.Entity{
		Name:     "Lamp",
		Kind:     scene.KindLight,
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
		Light:    &scene.Light{Kind: scene.LightPoint, Energy: 1000, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
	}
	return &scene.Snapshot{
		Static:   []*scene.Entity{ground},
		Editable: []*scene.Entity{cube, lamp},
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sync.ClientID = 7
	cfg.Sync.ListenInterval = 2 * time.Millisecond
	cfg.Sync.PingInterval = 20 * time.Millisecond
	cfg.Network.ConnectTimeout = 200 * time.Millisecond
	return cfg
}

func TestEndpointsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Network.ServerIP = "10.0.0.4"

	ep := Endpoints(cfg)
	assert.Equal(t, "tcp://10.0.0.4:5565", ep.Distribution)
	assert.Equal(t, "tcp://10.0.0.4:5556", ep.Sync)
	assert.Equal(t, "tcp://10.0.0.4:5557", ep.Update)
	assert.Equal(t, "tcp://10.0.0.4:5558", ep.Command)
	assert.Equal(t, network.DefaultQueueDepth, ep.QueueDepth)
}

func TestDistribute(t *testing.T) {
	h := host.NewMemory(testScene())
	s := New(testConfig(), h)

	n, err := s.Distribute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sum, err := s.State().Summary()
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Objects)
	require.Len(t, sum.Editable, 2)

	objs, err := s.State().Objects()
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "Cube", objs[0].Name)
	assert.Equal(t, uint16(1), objs[0].ID)
	assert.Equal(t, "Lamp", objs[1].Name)
	assert.Equal(t, uint16(2), objs[1].ID)

	assert.NotEmpty(t, s.State().Blob(serializer.CmdNodes))
}

func TestDistributeReplacesPass(t *testing.T) {
	s := New(testConfig(), host.NewMemory(testScene()))

	_, err := s.Distribute(context.Background())
	require.NoError(t, err)
	first := s.State().Pass()

	_, err = s.Distribute(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, s.State().Pass())
}

func TestDistributeEmptyScene(t *testing.T) {
	s := New(testConfig(), host.NewMemory(&scene.Snapshot{}))

	n, err := s.Distribute(context.Background())
	assert.Zero(t, n)
	assert.ErrorIs(t, err, serializer.ErrNoObjects)
	assert.Equal(t, ulid.ULID{}, s.State().Pass())

	// The pass guard must be free again.
	id, err := s.State().Begin()
	require.NoError(t, err)
	s.State().Abort(id)
}

func TestEditErrors(t *testing.T) {
	s := New(testConfig(), host.NewMemory(testScene()))
	_, err := s.Distribute(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, s.Edit("Nope", sceneobject.ParamPosition, math.Vec3{}), sceneobject.ErrUnknownObject)
	assert.ErrorIs(t, s.Edit("Cube", "Nope", math.Vec3{}), sceneobject.ErrNoSuchParam)
	assert.ErrorIs(t, s.Edit("Cube", sceneobject.ParamPosition, float32(1)), sceneobject.ErrTypeMismatch)

	// Unlocked and not started: the edit has nowhere to go.
	assert.ErrorIs(t, s.Edit("Cube", sceneobject.ParamPosition, math.Vec3{X: 5}), updates.ErrNoPublisher)
}

func TestEditLockedAppliesToHost(t *testing.T) {
	h := host.NewMemory(testScene())
	s := New(testConfig(), h)
	_, err := s.Distribute(context.Background())
	require.NoError(t, err)

	lock := packets.LockMessage(3, 0, packets.Lock{SceneID: sceneobject.DefaultSceneID, ObjectID: 1, Locked: true})
	require.NoError(t, s.Channel().Handle(lock))

	require.NoError(t, s.EditByID(1, 0, math.Vec3{X: 5, Y: 6, Z: 7}))
	e, _ := h.Entity("Cube")
	assert.Equal(t, math.Vec3{X: 5, Y: 6, Z: 7}, e.Position)
}

// syncServer stands in for the VPET sync server on inproc endpoints.
type syncServer struct {
	peers   zmq4.Socket // PUB, our subscriber connects
	updates chan []byte // messages our publisher sent
	ep      network.Endpoints
}

func newSyncServer(ctx context.Context, t *testing.T, name string) *syncServer {
	t.Helper()
	srv := &syncServer{
		updates: make(chan []byte, 64),
		ep: network.Endpoints{
			Distribution: "inproc://" + name + "-dist",
			Sync:         "inproc://" + name + "-sync",
			Update:       "inproc://" + name + "-update",
			Command:      "inproc://" + name + "-command",
			Timeout:      time.Second,
		},
	}

	srv.peers = zmq4.NewPub(ctx)
	require.NoError(t, srv.peers.Listen(srv.ep.Sync))
	t.Cleanup(func() { srv.peers.Close() })

	sub := zmq4.NewSub(ctx)
	require.NoError(t, sub.Listen(srv.ep.Update))
	require.NoError(t, sub.SetOption(zmq4.OptionSubscribe, ""))
	t.Cleanup(func() { sub.Close() })
	go func() {
		for {
			msg, err := sub.Recv()
			if err != nil {
				return
			}
			srv.updates <- msg.Frames[0]
		}
	}()

	rep := zmq4.NewRep(ctx)
	require.NoError(t, rep.Listen(srv.ep.Command))
	t.Cleanup(func() { rep.Close() })
	go func() {
		for {
			msg, err := rep.Recv()
			if err != nil {
				return
			}
			if err := rep.Send(zmq4.NewMsg(msg.Frames[0])); err != nil {
				return
			}
		}
	}()
	return srv
}

func vec3Payload(v math.Vec3) []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint32(b[0:], gomath.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], gomath.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], gomath.Float32bits(v.Z))
	return b
}

func TestStartServeSyncStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := newSyncServer(ctx, t, "session-run")
	h := host.NewMemory(testScene())
	s := New(testConfig(), h, WithEndpoints(srv.ep))

	_, err := s.Distribute(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(ctx), ErrRunning)

	// Pull the scene like a client would.
	req, err := network.DialRequester(ctx, srv.ep.Distribution, time.Second)
	require.NoError(t, err)
	blobs, err := req.Pull(ctx, serializer.Commands)
	require.NoError(t, err)
	req.Close()
	for _, cmd := range serializer.Commands {
		assert.True(t, bytes.Equal(s.State().Blob(cmd), blobs[cmd]), cmd)
	}

	// A peer moves the cube.
	msg, err := packets.Updates(3, 0, packets.ParameterUpdate{
		SceneID:   sceneobject.DefaultSceneID,
		ObjectID:  1,
		ParamID:   0,
		ParamType: uint8(sceneobject.TypeVec3),
		Payload:   vec3Payload(math.Vec3{X: 4, Y: 6, Z: 5}),
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = srv.peers.Send(zmq4.NewMsg(msg))
		e, _ := h.Entity("Cube")
		return e.Position == math.Vec3{X: 4, Y: 5, Z: 6}
	}, 3*time.Second, 20*time.Millisecond)

	// A local edit on the unlocked cube goes out as one update.
	x := float32(10)
	var got []byte
	require.Eventually(t, func() bool {
		x++
		if err := s.Edit("Cube", sceneobject.ParamPosition, math.Vec3{X: x}); err != nil {
			return false
		}
		select {
		case got = <-srv.updates:
			return true
		default:
			return false
		}
	}, 3*time.Second, 20*time.Millisecond)

	body, err := packets.Decode(got)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), body.Header.ClientID)
	require.Len(t, body.Updates, 1)
	assert.Equal(t, uint16(1), body.Updates[0].ObjectID)

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	assert.Equal(t, ulid.ULID{}, s.State().Pass(), "stop must clear the scene state")
	assert.Zero(t, s.Clock().Now())
	assert.Zero(t, s.Clock().Tick(time.Now()), "stopped time must not count after a restart")
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}

func TestStartFailureClosesSockets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dist := "tcp://" + l.Addr().String()
	require.NoError(t, l.Close())

	s := New(testConfig(), host.NewMemory(testScene()), WithEndpoints(network.Endpoints{
		Distribution: dist,
		Sync:         "bogus://nowhere",
		Timeout:      100 * time.Millisecond,
	}))

	err = s.Start(ctx)
	require.Error(t, err)
	assert.False(t, s.Running())
	assert.Nil(t, s.Done())

	srv, err := network.ListenDistribution(ctx, dist, s.State())
	require.NoError(t, err)
	srv.Close()
}

func TestStopBeforeStart(t *testing.T) {
	s := New(testConfig(), host.NewMemory(testScene()))
	assert.True(t, errors.Is(s.Stop(), ErrNotRunning))
}
