package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/network/packets"
)

// ErrBadPong is returned when the command link answers a ping with
// something other than a PING message.
var ErrBadPong = errors.New("unexpected ping reply")

// CommandLink is a request/reply link to the sync server used for clock
// pings. A lost reply leaves a REQ socket unusable, so the link drops the
// socket and dials again on the next call.
type CommandLink struct {
	ctx      context.Context
	endpoint string
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	req    *Requester
	closed bool

	resets atomic.Int64
}

// DialCommand connects the command link. The socket lives as long as ctx.
func DialCommand(ctx context.Context, endpoint string, timeout time.Duration) (*CommandLink, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	req, err := DialRequester(ctx, endpoint, timeout)
	if err != nil {
		return nil, err
	}
	return &CommandLink{
		ctx:      ctx,
		endpoint: endpoint,
		timeout:  timeout,
		log:      named("command"),
		req:      req,
	}, nil
}

// Ping sends a PING stamped with now and returns the header of the reply.
func (c *CommandLink) Ping(ctx context.Context, clientID, now uint8) (packets.Header, error) {
	reply, err := c.roundTrip(ctx, packets.Ping(clientID, now))
	if err != nil {
		return packets.Header{}, err
	}
	h, err := packets.DecodeHeader(reply)
	if err != nil {
		return packets.Header{}, fmt.Errorf("%w: %v", ErrBadPong, err)
	}
	if h.Type != packets.TypePing {
		return h, fmt.Errorf("%w: type %s", ErrBadPong, h.Type)
	}
	return h, nil
}

func (c *CommandLink) roundTrip(ctx context.Context, msg []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if c.req == nil {
		req, err := DialRequester(c.ctx, c.endpoint, c.timeout)
		if err != nil {
			return nil, err
		}
		c.req = req
	}

	reply, err := c.req.roundTrip(ctx, msg)
	if err != nil {
		c.log.Debug("command link reset", zap.String("endpoint", c.endpoint), zap.Error(err))
		c.req.Close()
		c.req = nil
		c.resets.Inc()
		return nil, err
	}
	return reply, nil
}

// Resets returns how many times the socket was dropped after a failure.
func (c *CommandLink) Resets() int64 { return c.resets.Load() }

// Close releases the socket.
func (c *CommandLink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.req != nil {
		c.req.Close()
		c.req = nil
	}
}
