package hostbridge

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/driver-activity/internal/config"
)

// Settings is the bridge's resolved view of config.BridgeConfig.
type Settings struct {
	Enabled      bool
	Host         string
	Port         int
	MaxBodyBytes int64
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// envOverride lets DRIVER_ACTIVITY_BRIDGE_* variables replace one field of
// the bridge config. Unparseable values are ignored.
type envOverride struct {
	name  string
	apply func(b *config.BridgeConfig, value string)
}

var envOverrides = []envOverride{
	{"DRIVER_ACTIVITY_BRIDGE_ENABLED", func(b *config.BridgeConfig, v string) {
		if enabled, err := strconv.ParseBool(v); err == nil {
			b.Enabled = &enabled
		}
	}},
	{"DRIVER_ACTIVITY_BRIDGE_HOST", func(b *config.BridgeConfig, v string) { b.Host = v }},
	{"DRIVER_ACTIVITY_BRIDGE_PORT", func(b *config.BridgeConfig, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			b.Port = port
		}
	}},
	{"DRIVER_ACTIVITY_BRIDGE_MAX_BODY_BYTES", func(b *config.BridgeConfig, v string) {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			b.MaxBodyBytes = n
		}
	}},
}

// SettingsFromConfig resolves the bridge section of cfg, applies
// environment overrides and fills defaults for anything still unset.
func SettingsFromConfig(cfg *config.Config) Settings {
	var bridge config.BridgeConfig
	if cfg != nil {
		bridge = cfg.Project.Bridge
	}
	for _, o := range envOverrides {
		if value := strings.TrimSpace(os.Getenv(o.name)); value != "" {
			o.apply(&bridge, value)
		}
	}
	resolved := bridge.Resolved()
	return Settings{
		Enabled:      resolved.IsEnabled(),
		Host:         resolved.Host,
		Port:         resolved.Port,
		MaxBodyBytes: resolved.MaxBodyBytes,
		ReadTimeout:  resolved.ReadTimeout,
		WriteTimeout: resolved.WriteTimeout,
		IdleTimeout:  resolved.IdleTimeout,
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}
