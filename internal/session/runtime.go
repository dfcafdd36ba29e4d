package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/vpet-bridge/internal/admin"
	"github.com/Faultbox/vpet-bridge/internal/network"
)

// errSubscriberStopped is returned when the sync socket dies under a live session.
var errSubscriberStopped = errors.New("sync subscriber stopped")

// Start opens the sockets and launches the periodic tasks: the
// distribution server, the update listener, the clock ticker, the pinger
// and, when configured, the admin server. A startup failure leaves nothing
// open.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	socks, err := network.Open(runCtx, s.endpoints, s.state)
	if err != nil {
		cancel()
		return fmt.Errorf("opening sockets: %w", err)
	}

	var adminLn net.Listener
	if s.cfg.Admin.Addr != "" {
		if adminLn, err = admin.Listen(s.cfg.Admin.Addr); err != nil {
			socks.Close()
			cancel()
			return err
		}
	}

	s.channel.SetPublisher(socks.Pub)

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return socks.Dist.Serve(gctx) })
	g.Go(func() error { return s.listen(gctx, socks.Sub) })
	g.Go(func() error { return s.tick(gctx) })
	g.Go(func() error { return s.ping(gctx, socks.Command) })
	if adminLn != nil {
		h := admin.NewHandler(s.state, s.channel)
		g.Go(func() error { return admin.Serve(gctx, adminLn, h) })
	}

	done := make(chan struct{})
	go func() {
		s.err = g.Wait()
		close(done)
	}()

	s.socks = socks
	s.cancel = cancel
	s.done = done
	s.running = true
	s.log.Info("session started",
		zap.Uint8("client_id", s.channel.ClientID()),
		zap.String("distribution", s.endpoints.Distribution),
		zap.String("sync", s.endpoints.Sync),
		zap.String("update", s.endpoints.Update),
		zap.String("command", s.endpoints.Command))
	return nil
}

// Done is closed when every task has exited, either after Stop or
// because one of them failed. It is nil before Start.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop cancels the tasks, closes every socket and clears all scene state.
// It returns the first task error, if any.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ErrNotRunning
	}

	s.cancel()
	<-s.done
	s.socks.Close()
	s.channel.SetPublisher(nil)
	s.state.Reset()
	s.rtt.Reset()
	s.clock.Reset(time.Now())

	err := s.err
	s.socks, s.cancel, s.done, s.err = nil, nil, nil, nil
	s.running = false
	s.log.Info("session stopped")
	return err
}

func (s *Session) listen(ctx context.Context, sub *network.Subscriber) error {
	t := time.NewTicker(interval(s.cfg.Sync.ListenInterval, 10*time.Millisecond))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.Done():
			if ctx.Err() != nil {
				return nil
			}
			return errSubscriberStopped
		case <-t.C:
			for _, msg := range sub.Poll(0) {
				if err := s.channel.Handle(msg); err != nil {
					s.log.Warn("applying update", zap.Error(err))
				}
			}
		}
	}
}

func (s *Session) tick(ctx context.Context) error {
	t := time.NewTicker(interval(s.cfg.Sync.TickInterval, 5*time.Millisecond))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			s.clock.Tick(now)
		}
	}
}

func (s *Session) ping(ctx context.Context, link *network.CommandLink) error {
	t := time.NewTicker(interval(s.cfg.Sync.PingInterval, time.Second))
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := s.channel.Measure(ctx, link); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Debug("ping failed", zap.Error(err))
				continue
			}
			if s.cfg.Sync.AnnounceClock {
				if err := s.channel.SendSync(); err != nil {
					s.log.Debug("sync announce failed", zap.Error(err))
				}
			}
		}
	}
}

func interval(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
