// internal/config/config.go
//
// This package handles configuration and the .driver-activity directory.
// The form reads its activity list, host connection and bridge settings from
// .driver-activity/config.yaml in the directory it is launched from.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/driver-activity/internal/activity"
)

const (
	// AppDir is the name of the directory created in the working directory.
	AppDir = ".driver-activity"

	// DefaultPasswordEnv holds the MyGeotab password unless password_env says otherwise.
	DefaultPasswordEnv = "DRIVER_ACTIVITY_GEOTAB_PASSWORD"

	defaultDeviceSentinel = "device.id"

	// Bridge defaults used for any bridge field left unset.
	DefaultBridgeHost               = "127.0.0.1"
	DefaultBridgePort               = 8766
	DefaultBridgeMaxBodyBytes int64 = 4 << 10
	DefaultBridgeReadTimeout        = 5 * time.Second
	DefaultBridgeWriteTimeout       = 10 * time.Second
	DefaultBridgeIdleTimeout        = 60 * time.Second
)

const defaultProjectConfigYAML = `# driver activity form configuration
version: 1

# Activities shown to the driver, in display order.
activities:
  - Pre-Trip Inspection
  - "At Stop: Loading"
  - "At Stop: Unloading"
  - "At Stop: Paperwork"
  - "On Break: Meal"
  - "On Break: Personal"
  - Fueling Vehicle
  - Vehicle Maintenance
  - "Delayed: Weather"
  - "Delayed: Traffic"

# Value the host resolves to "the device this form runs on".
device_sentinel: device.id

# MyGeotab connection. Leave server empty to run without a host.
geotab:
  server: ""
  database: ""
  username: ""
  # Environment variable holding the password.
  password_env: DRIVER_ACTIVITY_GEOTAB_PASSWORD
  timeout: 30s

# Local HTTP bridge for host readiness, health and metrics.
bridge:
  enabled: false
  host: 127.0.0.1
  port: 8766
  # Largest accepted POST /ready body, in bytes.
  max_body_bytes: 4096
  read_timeout: 5s
  write_timeout: 10s
  idle_timeout: 60s
`

// GeotabConfig describes the MyGeotab account used for submissions.
type GeotabConfig struct {
	Server      string        `yaml:"server"`
	Database    string        `yaml:"database"`
	UserName    string        `yaml:"username"`
	PasswordEnv string        `yaml:"password_env,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// BridgeConfig captures optional bridge overrides.
type BridgeConfig struct {
	Enabled      *bool         `yaml:"enabled,omitempty"`
	Host         string        `yaml:"host,omitempty"`
	Port         int           `yaml:"port,omitempty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
	IdleTimeout  time.Duration `yaml:"idle_timeout,omitempty"`
}

// IsEnabled reports whether the bridge was switched on. It is off unless
// enabled explicitly.
func (b BridgeConfig) IsEnabled() bool {
	return b.Enabled != nil && *b.Enabled
}

// Resolved returns b with every unset or out-of-range field replaced by
// its default.
func (b BridgeConfig) Resolved() BridgeConfig {
	b.Host = strings.TrimSpace(b.Host)
	if b.Host == "" {
		b.Host = DefaultBridgeHost
	}
	if b.Port <= 0 || b.Port > 65535 {
		b.Port = DefaultBridgePort
	}
	if b.MaxBodyBytes <= 0 {
		b.MaxBodyBytes = DefaultBridgeMaxBodyBytes
	}
	if b.ReadTimeout <= 0 {
		b.ReadTimeout = DefaultBridgeReadTimeout
	}
	if b.WriteTimeout <= 0 {
		b.WriteTimeout = DefaultBridgeWriteTimeout
	}
	if b.IdleTimeout <= 0 {
		b.IdleTimeout = DefaultBridgeIdleTimeout
	}
	return b
}

// ProjectConfig models .driver-activity/config.yaml.
type ProjectConfig struct {
	Version        int          `yaml:"version"`
	Activities     []string     `yaml:"activities,omitempty"`
	DeviceSentinel string       `yaml:"device_sentinel,omitempty"`
	Geotab         GeotabConfig `yaml:"geotab"`
	Bridge         BridgeConfig `yaml:"bridge"`
}

// Config holds the runtime configuration for the form.
type Config struct {
	// ProjectDir is the directory the form was launched from.
	ProjectDir string

	// AppProjectDir is ProjectDir/.driver-activity
	AppProjectDir string

	Project ProjectConfig
}

// InitDir creates the .driver-activity directory structure and writes the
// default config file when none exists.
//
// .driver-activity/
// ├── config.yaml
// └── logs/
func InitDir(projectDir string) error {
	appDir := filepath.Join(projectDir, AppDir)
	if err := os.MkdirAll(filepath.Join(appDir, "logs"), 0o755); err != nil {
		return fmt.Errorf("config: create %s: %w", appDir, err)
	}
	return ensureProjectConfig(filepath.Join(appDir, "config.yaml"))
}

// NewConfig loads the project settings, falling back to defaults when the
// config file is missing.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir:    projectDir,
		AppProjectDir: filepath.Join(projectDir, AppDir),
		Project:       defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.AppProjectDir, "logs")
}

// LogPath returns the diagnostic log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.LogsDir(), "activity.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.AppProjectDir, "config.yaml")
}

// Catalog returns the configured activities.
func (c *Config) Catalog() activity.Catalog {
	labels := make([]activity.Label, 0, len(c.Project.Activities))
	for _, a := range c.Project.Activities {
		labels = append(labels, activity.Label(a))
	}
	return activity.NewCatalog(labels)
}

// DeviceSentinel returns the configured device placeholder.
func (c *Config) DeviceSentinel() string {
	return c.Project.DeviceSentinel
}

// HasGeotab reports whether a MyGeotab server is configured.
func (c *Config) HasGeotab() bool {
	return c.Project.Geotab.Server != ""
}

// GeotabPassword reads the password from the configured environment variable.
func (c *Config) GeotabPassword() string {
	return os.Getenv(c.Project.Geotab.PasswordEnv)
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	pc := ProjectConfig{}
	pc.applyDefaults()
	return pc
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if len(pc.Activities) == 0 {
		for _, l := range activity.DefaultLabels {
			pc.Activities = append(pc.Activities, string(l))
		}
	}
	if strings.TrimSpace(pc.DeviceSentinel) == "" {
		pc.DeviceSentinel = defaultDeviceSentinel
	}
	if strings.TrimSpace(pc.Geotab.PasswordEnv) == "" {
		pc.Geotab.PasswordEnv = DefaultPasswordEnv
	}
}

func (pc *ProjectConfig) normalize() {
	for i := range pc.Activities {
		pc.Activities[i] = strings.TrimSpace(pc.Activities[i])
	}
	pc.DeviceSentinel = strings.TrimSpace(pc.DeviceSentinel)
	pc.Geotab.Server = strings.TrimSpace(pc.Geotab.Server)
	pc.Geotab.Database = strings.TrimSpace(pc.Geotab.Database)
	pc.Geotab.UserName = strings.TrimSpace(pc.Geotab.UserName)
	pc.Geotab.PasswordEnv = strings.TrimSpace(pc.Geotab.PasswordEnv)
	pc.Bridge.Host = strings.TrimSpace(pc.Bridge.Host)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	for i, a := range pc.Activities {
		if a == "" {
			return fmt.Errorf("activities[%d]: label is required", i)
		}
	}
	if pc.Geotab.Server != "" {
		if pc.Geotab.Database == "" {
			return fmt.Errorf("geotab.database is required when geotab.server is set")
		}
		if pc.Geotab.UserName == "" {
			return fmt.Errorf("geotab.username is required when geotab.server is set")
		}
	}
	if pc.Geotab.Timeout < 0 {
		return fmt.Errorf("geotab.timeout must not be negative")
	}
	if pc.Bridge.Port < 0 || pc.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 0 and 65535")
	}
	if pc.Bridge.MaxBodyBytes < 0 {
		return fmt.Errorf("bridge.max_body_bytes must not be negative")
	}
	if pc.Bridge.ReadTimeout < 0 || pc.Bridge.WriteTimeout < 0 || pc.Bridge.IdleTimeout < 0 {
		return fmt.Errorf("bridge timeouts must not be negative")
	}
	return nil
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644)
}
