// Package main is the entry point for the VPET bridge daemon.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Faultbox/vpet-bridge/internal/config"
	"github.com/Faultbox/vpet-bridge/internal/host"
	"github.com/Faultbox/vpet-bridge/internal/logger"
	"github.com/Faultbox/vpet-bridge/internal/serializer"
	"github.com/Faultbox/vpet-bridge/internal/session"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== VPET Bridge ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("bridge error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("bridge stopped normally")
}

func run(cfg *config.Config) error {
	snap, err := host.LoadFile(cfg.Scene.File)
	if err != nil {
		return err
	}
	h := host.NewMemory(snap)
	sess := session.New(cfg, h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	distribute(ctx, sess)

	if err := sess.Start(ctx); err != nil {
		return err
	}

	// SIGHUP reloads the scene file and runs a new pass.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return sess.Stop()
		case <-sess.Done():
			return sess.Stop()
		case <-hup:
			snap, err := host.LoadFile(cfg.Scene.File)
			if err != nil {
				logger.Error("reload failed, keeping current scene", zap.Error(err))
				continue
			}
			h.Replace(snap)
			distribute(ctx, sess)
		}
	}
}

func distribute(ctx context.Context, sess *session.Session) {
	n, err := sess.Distribute(ctx)
	switch {
	case errors.Is(err, serializer.ErrNoObjects):
		logger.Warn("scene is empty, nothing distributed")
	case err != nil:
		logger.Error("distribution failed", zap.Error(err))
	default:
		logger.Info("objects distributed", zap.Int("count", n))
	}
}
