// Package config loads service settings from defaults, an optional YAML file
// and DCF77_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the top-level configuration struct.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Journal JournalConfig `mapstructure:"journal"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Log     LogConfig     `mapstructure:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
	Century    int    `mapstructure:"century"`
}

// AuthConfig holds bearer-token settings.
type AuthConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Token      string `mapstructure:"token"`
	PublicRead bool   `mapstructure:"public_read"`
}

// StreamConfig holds SSE settings.
type StreamConfig struct {
	MaxConcurrentPerIP int           `mapstructure:"max_concurrent_per_ip"`
	KeepaliveInterval  time.Duration `mapstructure:"keepalive_interval"`
	Buffer             int           `mapstructure:"buffer"`
}

// JournalConfig holds snapshot persistence settings.
type JournalConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Dir      string        `mapstructure:"dir"`
	MaxFiles int           `mapstructure:"max_files"`
	Interval time.Duration `mapstructure:"interval"`
}

// MQTTConfig holds MQTT publishing settings.
type MQTTConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Broker      string        `mapstructure:"broker"`
	TopicPrefix string        `mapstructure:"topic_prefix"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	QoS         int           `mapstructure:"qos"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Defaults.
const (
	DefaultServerAddr         = ":8080"
	DefaultCentury            = 2000
	DefaultStreamMaxPerIP     = 10
	DefaultStreamKeepalive    = 30 * time.Second
	DefaultStreamBuffer       = 16
	DefaultJournalEnabled     = true
	DefaultJournalDir         = "/tmp/dcf77/journal"
	DefaultJournalMaxFiles    = 5
	DefaultJournalInterval    = time.Minute
	DefaultMQTTTopicPrefix    = "dcf77"
	DefaultMQTTTimeout        = 5 * time.Second
	DefaultLogLevel           = "info"
	maxQoS                    = 2
	minJournalInterval        = time.Second
	minStreamKeepaliveSeconds = 1
)

// Sentinel validation errors.
var (
	ErrMissingAddr     = errors.New("server.addr must not be empty")
	ErrInvalidCentury  = errors.New("server.century must be a non-negative multiple of 100")
	ErrMissingToken    = errors.New("auth.token is required when auth is enabled")
	ErrInvalidStream   = errors.New("stream settings must be positive")
	ErrInvalidJournal  = errors.New("journal needs a dir, max_files >= 1 and interval >= 1s")
	ErrMissingBroker   = errors.New("mqtt.broker is required when mqtt is enabled")
	ErrInvalidQoS      = errors.New("mqtt.qos must be 0, 1 or 2")
	ErrInvalidLogLevel = errors.New("log.level must be debug, info, warn or error")
)

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrMissingAddr
	}
	if c.Server.Century < 0 || c.Server.Century%100 != 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCentury, c.Server.Century)
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		return ErrMissingToken
	}
	if c.Stream.MaxConcurrentPerIP < 1 || c.Stream.Buffer < 1 ||
		c.Stream.KeepaliveInterval < minStreamKeepaliveSeconds*time.Second {
		return ErrInvalidStream
	}
	if c.Journal.Enabled && (c.Journal.Dir == "" || c.Journal.MaxFiles < 1 || c.Journal.Interval < minJournalInterval) {
		return ErrInvalidJournal
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return ErrMissingBroker
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > maxQoS {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, c.MQTT.QoS)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLogLevel, s)
	}
}
