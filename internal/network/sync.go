package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// DefaultQueueDepth bounds the inbound queue; older messages are dropped first.
const DefaultQueueDepth = 64

// Publisher sends synchronization messages to peers.
type Publisher struct {
	mu       sync.Mutex
	sock     zmq4.Socket
	endpoint string
	log      *zap.Logger
	sent     atomic.Int64
	closed   bool
}

// DialPublisher connects a PUB socket to endpoint.
func DialPublisher(ctx context.Context, endpoint string) (*Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, dialError("publisher", endpoint, err)
	}
	return newPublisher(sock, endpoint), nil
}

// ListenPublisher binds a PUB socket on endpoint.
func ListenPublisher(ctx context.Context, endpoint string) (*Publisher, error) {
	sock := zmq4.NewPub(ctx)
	if err := sock.Listen(endpoint); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("binding publisher to %s: %w", endpoint, err)
	}
	return newPublisher(sock, endpoint), nil
}

func newPublisher(sock zmq4.Socket, endpoint string) *Publisher {
	p := &Publisher{sock: sock, endpoint: endpoint, log: named("publisher")}
	p.log.Info("publisher ready", zap.String("endpoint", endpoint))
	return p
}

// Publish sends one message. Safe for concurrent use.
func (p *Publisher) Publish(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.sock.Send(zmq4.NewMsg(msg)); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.endpoint, err)
	}
	p.sent.Inc()
	return nil
}

// Sent returns the number of messages published.
func (p *Publisher) Sent() int64 { return p.sent.Load() }

// Close releases the socket.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	closeSocket(p.log, p.sock, p.endpoint)
}

// Subscriber receives every message on a sync endpoint into a bounded
// queue that Poll drains without blocking.
type Subscriber struct {
	sock     zmq4.Socket
	endpoint string
	log      *zap.Logger
	queue    chan []byte
	done     chan struct{}

	received  atomic.Int64
	dropped   atomic.Int64
	closeOnce sync.Once
}

// DialSubscriber connects a SUB socket to endpoint, subscribed to all topics.
func DialSubscriber(ctx context.Context, endpoint string, depth int) (*Subscriber, error) {
	sock := zmq4.NewSub(ctx)
	if err := sock.Dial(endpoint); err != nil {
		_ = sock.Close()
		return nil, dialError("subscriber", endpoint, err)
	}
	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = sock.Close()
		return nil, fmt.Errorf("subscribing on %s: %w", endpoint, err)
	}
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	s := &Subscriber{
		sock:     sock,
		endpoint: endpoint,
		log:      named("subscriber"),
		queue:    make(chan []byte, depth),
		done:     make(chan struct{}),
	}
	go s.receive()
	s.log.Info("subscriber connected", zap.String("endpoint", endpoint))
	return s, nil
}

func (s *Subscriber) receive() {
	defer close(s.done)
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			s.log.Debug("receive loop stopped", zap.Error(err))
			return
		}
		b := payload(msg)
		if len(b) == 0 {
			continue
		}
		s.received.Inc()
		s.push(b)
	}
}

// push enqueues b, discarding the oldest entry when the queue is full.
func (s *Subscriber) push(b []byte) {
	for {
		select {
		case s.queue <- b:
			return
		default:
		}
		select {
		case <-s.queue:
			s.dropped.Inc()
		default:
		}
	}
}

// Poll returns up to limit queued messages, or all of them when limit <= 0.
// It never blocks.
func (s *Subscriber) Poll(limit int) [][]byte {
	var out [][]byte
	for limit <= 0 || len(out) < limit {
		select {
		case b := <-s.queue:
			out = append(out, b)
		default:
			return out
		}
	}
	return out
}

// Done is closed once the receive loop exits.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Received returns the number of messages read from the socket.
func (s *Subscriber) Received() int64 { return s.received.Load() }

// Dropped returns the number of messages evicted from a full queue.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

// Close releases the socket and stops the receive loop.
func (s *Subscriber) Close() {
	s.closeOnce.Do(func() { closeSocket(s.log, s.sock, s.endpoint) })
}
