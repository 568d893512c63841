// Package config loads the glowline YAML settings.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/glowline/internal/core/hud"
	"github.com/zeusync/glowline/internal/core/observability/log"
	"github.com/zeusync/glowline/internal/core/scanner"
)

// Environment overrides.
const (
	EnvConfig         = "GLOWLINE_CONFIG"
	EnvLogLevel       = "GLOWLINE_LOG_LEVEL"
	EnvPermissionAddr = "GLOWLINE_PERMISSION_ADDR"
	EnvServerPort     = "GLOWLINE_SERVER_PORT"
)

const (
	TransportWebSocket = "websocket"
	TransportQUIC      = "quic"
)

var (
	ErrUnknownTransport = errors.New("unknown transport")
	ErrEmptyPath        = errors.New("empty file path")
	ErrInvalidPort      = errors.New("invalid port")
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Selection  SelectionConfig  `yaml:"selection"`
	Scanner    ScannerConfig    `yaml:"scanner"`
	Permission PermissionConfig `yaml:"permission"`
	HUD        HUDConfig        `yaml:"hud"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type SelectionConfig struct {
	// File is the persisted selection document.
	File string `yaml:"file"`
	// Watch reloads the file when it is edited by hand.
	Watch bool `yaml:"watch"`
}

type ScannerConfig struct {
	Radius        int `yaml:"radius"`
	IntervalTicks int `yaml:"interval_ticks"`
	Workers       int `yaml:"workers"`
}

type PermissionConfig struct {
	// Required is false for offline play, where outlines are always allowed.
	Required    bool          `yaml:"required"`
	Transport   string        `yaml:"transport"`
	Addr        string        `yaml:"addr"`
	Path        string        `yaml:"path"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// InsecureSkipVerify accepts self-signed QUIC certificates.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

type HUDConfig struct {
	NotificationDuration time.Duration `yaml:"notification_duration"`
}

type ServerConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Transport  string `yaml:"transport"`
	Path       string `yaml:"path"`
	PolicyFile string `yaml:"policy_file"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

func Default() *Config {
	sc := scanner.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info"},
		Selection: SelectionConfig{
			File:  "config/more-outlines-config.json",
			Watch: true,
		},
		Scanner: ScannerConfig{
			Radius:        sc.Radius,
			IntervalTicks: sc.IntervalTicks,
			Workers:       sc.Workers,
		},
		Permission: PermissionConfig{
			Required:    true,
			Transport:   TransportWebSocket,
			Addr:        "localhost:25580",
			Path:        "/permission",
			DialTimeout: 5 * time.Second,
		},
		HUD: HUDConfig{NotificationDuration: hud.DefaultDuration},
		Server: ServerConfig{
			Host:       "0.0.0.0",
			Port:       25580,
			Transport:  TransportWebSocket,
			Path:       "/permission",
			PolicyFile: "config/more-outlines-server.json",
		},
		Metrics: MetricsConfig{Addr: ":9464"},
	}
}

// Load reads path (or $GLOWLINE_CONFIG when path is empty) over the defaults,
// applies environment overrides and clamps. No file at all gives the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and applies environment overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvPermissionAddr); v != "" {
		c.Permission.Addr = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidPort, EnvServerPort, v)
		}
		c.Server.Port = port
	}
	return nil
}

// Normalize clamps numeric settings into their valid ranges.
func (c *Config) Normalize() {
	sc := c.ScanConfig()
	c.Scanner = ScannerConfig{Radius: sc.Radius, IntervalTicks: sc.IntervalTicks, Workers: sc.Workers}
	if c.HUD.NotificationDuration <= 0 {
		c.HUD.NotificationDuration = hud.DefaultDuration
	}
	if c.Permission.DialTimeout <= 0 {
		c.Permission.DialTimeout = 5 * time.Second
	}
	c.Permission.Transport = strings.ToLower(strings.TrimSpace(c.Permission.Transport))
	c.Server.Transport = strings.ToLower(strings.TrimSpace(c.Server.Transport))
}

func (c *Config) Validate() error {
	var errs []error
	if !knownTransport(c.Permission.Transport) {
		errs = append(errs, fmt.Errorf("permission.transport: %w: %q", ErrUnknownTransport, c.Permission.Transport))
	}
	if !knownTransport(c.Server.Transport) {
		errs = append(errs, fmt.Errorf("server.transport: %w: %q", ErrUnknownTransport, c.Server.Transport))
	}
	if strings.TrimSpace(c.Selection.File) == "" {
		errs = append(errs, fmt.Errorf("selection.file: %w", ErrEmptyPath))
	}
	if strings.TrimSpace(c.Server.PolicyFile) == "" {
		errs = append(errs, fmt.Errorf("server.policy_file: %w", ErrEmptyPath))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %w: %d", ErrInvalidPort, c.Server.Port))
	}
	return errors.Join(errs...)
}

func (c *Config) ScanConfig() scanner.Config {
	return scanner.Config{
		Radius:        c.Scanner.Radius,
		IntervalTicks: c.Scanner.IntervalTicks,
		Workers:       c.Scanner.Workers,
	}.Normalize()
}

func (c *Config) LogLevel() log.Level {
	return log.ParseLevel(c.Log.Level)
}

// ServerAddr is host:port for the permission server.
func (c *Config) ServerAddr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func knownTransport(t string) bool {
	return t == TransportWebSocket || t == TransportQUIC
}
