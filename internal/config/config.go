package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"goxlr-controller/internal/command"
)

// DaemonConfig - connection to the GoXLR daemon websocket
type DaemonConfig struct {
	URL               string `json:"url" yaml:"url"`
	RequestTimeout    string `json:"request_timeout" yaml:"request_timeout"`
	RetryDelay        string `json:"retry_delay" yaml:"retry_delay"`
	HeartbeatInterval string `json:"heartbeat_interval" yaml:"heartbeat_interval"`
}

// QueueConfig - per-device command queue
type QueueConfig struct {
	RateLimit float64 `json:"command_rate_limit" yaml:"command_rate_limit"`
	RateBurst int     `json:"command_rate_burst" yaml:"command_rate_burst"`
	Depth     int     `json:"depth" yaml:"depth"`
}

// ColourConfig - colour parsing policy for loosely typed input
type ColourConfig struct {
	CasePolicy string `json:"case_policy" yaml:"case_policy"`
}

// ServerConfig - HTTP server
type ServerConfig struct {
	Port           string   `json:"port" yaml:"port"`
	WebFilesDir    string   `json:"web_files_dir" yaml:"web_files_dir"`
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// EmbeddedBrokerConfig - in-process MQTT broker for installs without one
type EmbeddedBrokerConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address" yaml:"address"`
}

// MQTTConfig - MQTT bridge
type MQTTConfig struct {
	Enabled        bool                 `json:"enabled" yaml:"enabled"`
	Broker         string               `json:"broker" yaml:"broker"` // tcp://IP:PORT
	Username       string               `json:"username" yaml:"username"`
	Password       string               `json:"password" yaml:"password"`
	ClientID       string               `json:"client_id" yaml:"client_id"`
	TopicPrefix    string               `json:"topic_prefix" yaml:"topic_prefix"`
	EmbeddedBroker EmbeddedBrokerConfig `json:"embedded_broker" yaml:"embedded_broker"`
}

// LogConfig - optional rotated log file
type LogConfig struct {
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// Config - root structure
type Config struct {
	Daemon DaemonConfig `json:"daemon" yaml:"daemon"`
	Queue  QueueConfig  `json:"queue" yaml:"queue"`
	Colour ColourConfig `json:"colour" yaml:"colour"`
	Server ServerConfig `json:"server" yaml:"server"`
	MQTT   MQTTConfig   `json:"mqtt" yaml:"mqtt"`
	Log    LogConfig    `json:"log" yaml:"log"`

	// File system settings
	ScriptsDir    string `json:"scripts_dir" yaml:"scripts_dir"`
	SchedulesFile string `json:"schedules_file" yaml:"schedules_file"`
}

// Load reads the file at path (JSON, or YAML for .yaml/.yml), applies env overrides,
// defaults and validation. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return fmt.Errorf("failed to decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode json: %w", err)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GOXLR_DAEMON_URL"); v != "" {
		c.Daemon.URL = v
	}
	if v := os.Getenv("GOXLR_SERVER_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("GOXLR_MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
	}
	if v := os.Getenv("GOXLR_COLOUR_CASE"); v != "" {
		c.Colour.CasePolicy = v
	}
}

func (c *Config) sanitize() {
	c.Daemon.URL = strings.TrimSpace(c.Daemon.URL)
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.Colour.CasePolicy = strings.ToLower(strings.TrimSpace(c.Colour.CasePolicy))
	c.MQTT.TopicPrefix = strings.Trim(strings.TrimSpace(c.MQTT.TopicPrefix), "/")
	c.ScriptsDir = strings.TrimSpace(c.ScriptsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)
	c.Log.File = strings.TrimSpace(c.Log.File)
}

func (c *Config) setDefaults() {
	// Daemon Defaults
	if c.Daemon.URL == "" {
		c.Daemon.URL = "ws://localhost:14564/api/websocket"
	}
	if c.Daemon.RequestTimeout == "" {
		c.Daemon.RequestTimeout = "5s"
	}
	if c.Daemon.RetryDelay == "" {
		c.Daemon.RetryDelay = "5s"
	}
	if c.Daemon.HeartbeatInterval == "" {
		c.Daemon.HeartbeatInterval = "30s"
	}

	// Queue Defaults
	if c.Queue.RateLimit == 0 {
		c.Queue.RateLimit = 20
	}
	if c.Queue.RateBurst <= 0 {
		c.Queue.RateBurst = 10
	}
	if c.Queue.Depth <= 0 {
		c.Queue.Depth = 64
	}

	if c.Colour.CasePolicy == "" {
		c.Colour.CasePolicy = "strict"
	}

	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:" + c.Server.Port}
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "goxlr-controller"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "goxlr"
	}
	if c.MQTT.EmbeddedBroker.Address == "" {
		c.MQTT.EmbeddedBroker.Address = ":1883"
	}

	// File Defaults
	if c.ScriptsDir == "" {
		c.ScriptsDir = "scripts"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}

	// Log Defaults
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 10
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 28
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Daemon.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("config error: 'daemon.url' must be a ws:// or wss:// URL, got %q", c.Daemon.URL)
	}
	durations := map[string]string{
		"daemon.request_timeout":    c.Daemon.RequestTimeout,
		"daemon.retry_delay":        c.Daemon.RetryDelay,
		"daemon.heartbeat_interval": c.Daemon.HeartbeatInterval,
	}
	for name, v := range durations {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config error: '%s': %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("config error: '%s' must be positive", name)
		}
	}
	if c.Queue.RateLimit < 0 {
		return fmt.Errorf("config error: 'queue.command_rate_limit' must be positive")
	}
	if _, err := command.ParseCasePolicy(c.Colour.CasePolicy); err != nil {
		return fmt.Errorf("config error: 'colour.case_policy': %w", err)
	}
	return nil
}

// RequestTimeout returns the parsed daemon request timeout.
func (c *Config) RequestTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.RequestTimeout)
	return d
}

// RetryDelay returns the parsed daemon reconnect delay.
func (c *Config) RetryDelay() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.RetryDelay)
	return d
}

// HeartbeatInterval returns the parsed daemon ping interval.
func (c *Config) HeartbeatInterval() time.Duration {
	d, _ := time.ParseDuration(c.Daemon.HeartbeatInterval)
	return d
}

// CasePolicy returns the configured colour case policy.
func (c *Config) CasePolicy() command.CasePolicy {
	p, _ := command.ParseCasePolicy(c.Colour.CasePolicy)
	return p
}
