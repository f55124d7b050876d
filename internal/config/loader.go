package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".dcf77"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix, e.g. DCF77_SERVER_ADDR.
const envPrefix = "DCF77"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults registers every key so AutomaticEnv can override it.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", DefaultServerAddr)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.century", DefaultCentury)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.public_read", false)

	v.SetDefault("stream.max_concurrent_per_ip", DefaultStreamMaxPerIP)
	v.SetDefault("stream.keepalive_interval", DefaultStreamKeepalive)
	v.SetDefault("stream.buffer", DefaultStreamBuffer)

	v.SetDefault("journal.enabled", DefaultJournalEnabled)
	v.SetDefault("journal.dir", DefaultJournalDir)
	v.SetDefault("journal.max_files", DefaultJournalMaxFiles)
	v.SetDefault("journal.interval", DefaultJournalInterval)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic_prefix", DefaultMQTTTopicPrefix)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.timeout", DefaultMQTTTimeout)

	v.SetDefault("log.level", DefaultLogLevel)
}
