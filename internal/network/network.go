// Package network holds the ZeroMQ sockets of the bridge: the scene
// distribution server, the synchronization publisher and subscriber, and
// the command link used for clock pings.
package network

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/logger"
)

// Errors returned by the sockets.
var (
	ErrTimeout = errors.New("no reply before timeout")
	ErrClosed  = errors.New("socket closed")
)

// Endpoints lists the addresses Open binds or connects.
type Endpoints struct {
	Distribution string // bound, REP
	Sync         string // connected, SUB
	Update       string // connected, PUB
	Command      string // connected, REQ
	Timeout      time.Duration
	QueueDepth   int
}

// Sockets is the full set of runtime sockets.
type Sockets struct {
	Dist    *DistributionServer
	Sub     *Subscriber
	Pub     *Publisher
	Command *CommandLink
}

// Open creates every socket in order. If one fails, the ones already
// opened are closed before the error is returned.
func Open(ctx context.Context, ep Endpoints, src BlobSource) (*Sockets, error) {
	s := &Sockets{}
	var err error

	if s.Dist, err = ListenDistribution(ctx, ep.Distribution, src); err != nil {
		return nil, err
	}
	if s.Sub, err = DialSubscriber(ctx, ep.Sync, ep.QueueDepth); err != nil {
		s.Close()
		return nil, err
	}
	if s.Pub, err = DialPublisher(ctx, ep.Update); err != nil {
		s.Close()
		return nil, err
	}
	if s.Command, err = DialCommand(ctx, ep.Command, ep.Timeout); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes every open socket.
func (s *Sockets) Close() {
	if s.Command != nil {
		s.Command.Close()
	}
	if s.Pub != nil {
		s.Pub.Close()
	}
	if s.Sub != nil {
		s.Sub.Close()
	}
	if s.Dist != nil {
		s.Dist.Close()
	}
}

// payload returns the first frame of msg.
func payload(msg zmq4.Msg) []byte {
	if len(msg.Frames) == 0 {
		return nil
	}
	return msg.Frames[0]
}

type recvResult struct {
	msg zmq4.Msg
	err error
}

// recvTimeout waits for one message. On timeout the receive keeps running
// in the background until the socket is closed.
func recvTimeout(ctx context.Context, sock zmq4.Socket, timeout time.Duration) ([]byte, error) {
	ch := make(chan recvResult, 1)
	go func() {
		msg, err := sock.Recv()
		ch <- recvResult{msg, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return payload(r.msg), nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func closeSocket(log *zap.Logger, sock zmq4.Socket, endpoint string) {
	if err := sock.Close(); err != nil {
		log.Debug("close socket", zap.String("endpoint", endpoint), zap.Error(err))
	}
}

func dialError(kind, endpoint string, err error) error {
	return fmt.Errorf("connecting %s to %s: %w", kind, endpoint, err)
}

func named(component string) *zap.Logger {
	return logger.Named("network").Named(component)
}
