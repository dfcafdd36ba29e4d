package config

import "flag"

var (
	flagConfig   = flag.String("config", "", "Path to config file")
	flagDebug    = flag.Bool("debug", false, "Enable debug logging")
	flagServer   = flag.String("server", "", "Address the ZeroMQ sockets bind on")
	flagClientID = flag.Int("client-id", 0, "Sender id used on the sync channel")
	flagScene    = flag.String("scene", "", "Scene file to distribute")
	flagAdmin    = flag.String("admin", "", "Admin HTTP listen address")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via -config.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagServer != "" {
		cfg.Network.ServerIP = *flagServer
	}
	if *flagClientID > 0 {
		cfg.Sync.ClientID = *flagClientID
	}
	if *flagScene != "" {
		cfg.Scene.File = *flagScene
	}
	if *flagAdmin != "" {
		cfg.Admin.Addr = *flagAdmin
	}
}
