package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Server holds all configuration for the game server. Intervals are
// plain milliseconds in the file; use the accessor methods for
// durations.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Board
	BoardPath string `yaml:"board_path"`

	// Tick cadence
	BroadcastIntervalMs int `yaml:"broadcast_interval_ms"` // snapshot fan-out period (default: 250)
	SimulationTickMs    int `yaml:"simulation_tick_ms"`    // bullet/respawn tick period (default: 50)

	// Game rules
	RespawnDelayMs    int `yaml:"respawn_delay_ms"`    // dead → respawn attempt (default: 2000)
	DisconnectGraceMs int `yaml:"disconnect_grace_ms"` // reconnect window after drop (default: 60000)
	SpawnClearRadius  int `yaml:"spawn_clear_radius"`  // Manhattan radius kept clear around a spawn (default: 3)

	// Write queue / timeouts
	WriteTimeoutMs int `yaml:"write_timeout_ms"` // per-write deadline (default: 5000)
	SendQueueSize  int `yaml:"send_queue_size"`  // per-client outbox capacity (default: 64)

	// Logging
	LogLevel string `yaml:"log_level"` // debug|info|warn|error (default: info)
}

// Default returns Server config with sensible defaults for local play.
func Default() Server {
	return Server{
		BindAddress:         "0.0.0.0",
		Port:                8765,
		BoardPath:           "boards/default.json",
		BroadcastIntervalMs: 250,
		SimulationTickMs:    50,
		RespawnDelayMs:      2000,
		DisconnectGraceMs:   60000,
		SpawnClearRadius:    3,
		WriteTimeoutMs:      5000,
		SendQueueSize:       64,
		LogLevel:            "info",
	}
}

// Load loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func Load(path string) (Server, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// ParseLogLevel converts string log level to slog.Level.
// Defaults to Info if invalid or empty.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Addr returns the host:port the server binds to.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

// BroadcastInterval returns the snapshot fan-out period.
func (s Server) BroadcastInterval() time.Duration {
	return time.Duration(s.BroadcastIntervalMs) * time.Millisecond
}

// SimulationTick returns the bullet/respawn tick period.
func (s Server) SimulationTick() time.Duration {
	return time.Duration(s.SimulationTickMs) * time.Millisecond
}

// RespawnDelay returns the delay between death and respawn attempt.
func (s Server) RespawnDelay() time.Duration {
	return time.Duration(s.RespawnDelayMs) * time.Millisecond
}

// DisconnectGrace returns the reconnect window after a dropped
// transport.
func (s Server) DisconnectGrace() time.Duration {
	return time.Duration(s.DisconnectGraceMs) * time.Millisecond
}

// WriteTimeout returns the per-write deadline.
func (s Server) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMs) * time.Millisecond
}
