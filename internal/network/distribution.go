package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// BlobSource resolves a distribution command to its blob. A nil result
// means the command is unknown or nothing has been distributed yet.
type BlobSource interface {
	Blob(cmd string) []byte
}

// DistributionServer answers scene pull requests, one reply per request.
type DistributionServer struct {
	src      BlobSource
	sock     zmq4.Socket
	endpoint string
	log      *zap.Logger

	served    atomic.Int64
	closeOnce sync.Once
}

// ListenDistribution binds a REP socket on endpoint.
func ListenDistribution(ctx context.Context, endpoint string, src BlobSource) (*DistributionServer, error) {
	sock := zmq4.NewRep(ctx)
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("binding distribution server to %s: %w", endpoint, err)
	}
	s := &DistributionServer{
		src:      src,
		sock:     sock,
		endpoint: endpoint,
		log:      named("distribution"),
	}
	s.log.Info("distribution server listening", zap.String("endpoint", endpoint))
	return s, nil
}

// Reply returns the bytes sent back for cmd: the blob verbatim, or an
// empty reply for unknown commands.
func (s *DistributionServer) Reply(cmd string) []byte {
	if b := s.src.Blob(cmd); b != nil {
		return b
	}
	return []byte{}
}

// Serve answers requests until ctx is done or the socket is closed.
func (s *DistributionServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.Close)
	defer stop()

	for {
		msg, err := s.sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("distribution receive: %w", err)
		}

		cmd := string(payload(msg))
		reply := s.Reply(cmd)
		if len(reply) == 0 {
			s.log.Debug("unknown or empty command", zap.String("cmd", cmd))
		}
		if err := s.sock.Send(zmq4.NewMsg(reply)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("distribution reply: %w", err)
		}
		s.served.Inc()
		s.log.Debug("served", zap.String("cmd", cmd), zap.Int("bytes", len(reply)))
	}
}

// Served returns the number of replies sent.
func (s *DistributionServer) Served() int64 { return s.served.Load() }

// Close releases the socket. It is safe to call more than once.
func (s *DistributionServer) Close() {
	s.closeOnce.Do(func() { closeSocket(s.log, s.sock, s.endpoint) })
}

// Requester pulls blobs from a distribution server.
type Requester struct {
	sock     zmq4.Socket
	endpoint string
	timeout  time.Duration
	log      *zap.Logger
}

// DialRequester connects a REQ socket to endpoint.
func DialRequester(ctx context.Context, endpoint string, timeout time.Duration) (*Requester, error) {
	sock := zmq4.NewReq(ctx)
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, dialError("requester", endpoint, err)
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Requester{sock: sock, endpoint: endpoint, timeout: timeout, log: named("requester")}, nil
}

// Request sends cmd and waits for the reply. After ErrTimeout the socket
// is out of step and must be closed.
func (r *Requester) Request(ctx context.Context, cmd string) ([]byte, error) {
	return r.roundTrip(ctx, []byte(cmd))
}

func (r *Requester) roundTrip(ctx context.Context, req []byte) ([]byte, error) {
	if err := r.sock.Send(zmq4.NewMsg(req)); err != nil {
		return nil, fmt.Errorf("sending to %s: %w", r.endpoint, err)
	}
	return recvTimeout(ctx, r.sock, r.timeout)
}

// Pull fetches every blob in cmds, keyed by command.
func (r *Requester) Pull(ctx context.Context, cmds []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(cmds))
	for _, cmd := range cmds {
		b, err := r.Request(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("pulling %s: %w", cmd, err)
		}
		out[cmd] = b
	}
	return out, nil
}

// Close releases the socket.
func (r *Requester) Close() {
	closeSocket(r.log, r.sock, r.endpoint)
}
