// Package config handles bridge configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Config holds all bridge settings.
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Scene   SceneConfig   `yaml:"scene"`
	Sync    SyncConfig    `yaml:"sync"`
	Admin   AdminConfig   `yaml:"admin"`
	Logging LoggingConfig `yaml:"logging"`
}

// NetworkConfig holds the ZeroMQ endpoints. The distribution port is bound
// on ServerIP; the sync server ports are connected there.
type NetworkConfig struct {
	ServerIP         string        `yaml:"server_ip"`
	DistributionPort int           `yaml:"distribution_port"` // REP, scene pull
	SyncPort         int           `yaml:"sync_port"`         // peer updates (SUB connects here)
	UpdatePort       int           `yaml:"update_port"`       // our outbound updates (PUB connects here)
	CommandPort      int           `yaml:"command_port"`      // REQ ping/pong
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
}

// SceneConfig selects which host objects are shipped.
type SceneConfig struct {
	File                 string  `yaml:"file"`
	StaticCollection     string  `yaml:"static_collection"`
	EditableCollection   string  `yaml:"editable_collection"`
	LightIntensityFactor float32 `yaml:"light_intensity_factor"`
}

// SyncConfig holds clock and update loop settings.
type SyncConfig struct {
	ClientID       int           `yaml:"client_id"` // 0 derives it from server_ip
	FrameRate      int           `yaml:"frame_rate"`
	DriftThreshold int           `yaml:"drift_threshold"` // frames
	PingInterval   time.Duration `yaml:"ping_interval"`
	ListenInterval time.Duration `yaml:"listen_interval"`
	TickInterval   time.Duration `yaml:"tick_interval"`
	AnnounceClock  bool          `yaml:"announce_clock"` // publish SYNC after every ping
}

// AdminConfig holds the optional HTTP status endpoint.
type AdminConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the stock VPET ports and a 60 fps clock.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			ServerIP:         "127.0.0.1",
			DistributionPort: 5565,
			SyncPort:         5556,
			UpdatePort:       5557,
			CommandPort:      5558,
			ConnectTimeout:   2 * time.Second,
		},
		Scene: SceneConfig{
			File:                 "scene.yaml",
			StaticCollection:     "VPET_Collection",
			EditableCollection:   "VPET_Editable",
			LightIntensityFactor: 1.0,
		},
		Sync: SyncConfig{
			ClientID:       0,
			FrameRate:      60,
			DriftThreshold: 3,
			PingInterval:   time.Second,
			ListenInterval: 10 * time.Millisecond,
			TickInterval:   5 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ErrInvalid is returned for values that do not fit the sync protocol.
var ErrInvalid = errors.New("invalid config")

// Validate checks the values that travel in one-byte wire fields.
func (c *Config) Validate() error {
	if c.Sync.FrameRate < 1 || c.Sync.FrameRate > 255 {
		return fmt.Errorf("%w: sync.frame_rate %d outside 1-255", ErrInvalid, c.Sync.FrameRate)
	}
	if c.Sync.ClientID < 0 || c.Sync.ClientID > 255 {
		return fmt.Errorf("%w: sync.client_id %d outside 0-255", ErrInvalid, c.Sync.ClientID)
	}
	return nil
}

// ResolvedClientID returns Sync.ClientID, or the last octet of ServerIP when it is unset.
func (c *Config) ResolvedClientID() uint8 {
	if c.Sync.ClientID > 0 {
		return uint8(c.Sync.ClientID)
	}
	ip := net.ParseIP(c.Network.ServerIP)
	if v4 := ip.To4(); v4 != nil {
		return v4[3]
	}
	return 1
}

// Endpoint formats a tcp:// endpoint for port on the configured server address.
func (c *Config) Endpoint(port int) string {
	return "tcp://" + net.JoinHostPort(c.Network.ServerIP, strconv.Itoa(port))
}
