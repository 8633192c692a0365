// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerPort                = 8090
	defaultServerHost                = "0.0.0.0"
	defaultReadTimeout               = 15 * time.Second
	defaultWriteTimeout              = 15 * time.Second
	defaultDatabasePath              = "./data/telezap.db"
	defaultLogLevel                  = "info"
	defaultLogPretty                 = false
	defaultStreamServer              = "239.255.1.1:1234"
	defaultTimeSyncQueryTimeout      = 5 * time.Second
	defaultTimeSyncResyncInterval    = 30 * time.Minute
	defaultPreflightHost             = "noc.internal.lan:80"
	defaultPreflightMaxAttempts      = 10
	defaultPreflightProbeTimeout     = 2 * time.Second
	defaultPreflightRetryDelay       = 1 * time.Second
	defaultSessionDebounceWindow     = 3 * time.Second
	defaultSessionMaxDigits          = 4
	defaultSessionNetworkStreamLimit = 2
	defaultPlayerBinary              = "mpv"
	envPrefix                        = "TELEZAP"
)

// defaultTimeServers is the built-in time server fallback set, tried in
// declared order after any user override.
var defaultTimeServers = []string{
	"ntp.internal.lan",
	"0.pool.ntp.org",
	"1.pool.ntp.org",
}

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Stream    StreamConfig
	TimeSync  TimeSyncConfig
	Preflight PreflightConfig
	Session   SessionConfig
	Player    PlayerConfig
}

// ServerConfig holds control API server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// StreamConfig holds stream addressing configuration
type StreamConfig struct {
	// DefaultServer seeds the {serverip} endpoint before settings are loaded.
	DefaultServer string
}

// TimeSyncConfig holds time synchronization configuration
type TimeSyncConfig struct {
	Servers        []string
	QueryTimeout   time.Duration
	ResyncInterval time.Duration
}

// PreflightConfig holds the network reachability gate configuration
type PreflightConfig struct {
	Host         string
	MaxAttempts  int
	ProbeTimeout time.Duration
	RetryDelay   time.Duration
}

// SessionConfig holds playback session configuration
type SessionConfig struct {
	DebounceWindow time.Duration
	MaxDigits      int
	// NetworkStreamLimit is the ceiling the carrier network enforces on
	// simultaneously open multicast streams. The session controller always
	// releases before acquiring, so it stays at one open stream regardless.
	NetworkStreamLimit int
}

// PlayerConfig holds the external media player configuration
type PlayerConfig struct {
	// Binary is the player executable; the resolved stream address is passed
	// as its final argument.
	Binary string
	Args   []string
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/telezap")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.readtimeout", defaultReadTimeout)
	v.SetDefault("server.writetimeout", defaultWriteTimeout)

	v.SetDefault("database.path", defaultDatabasePath)

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("stream.defaultserver", defaultStreamServer)

	v.SetDefault("timesync.servers", defaultTimeServers)
	v.SetDefault("timesync.querytimeout", defaultTimeSyncQueryTimeout)
	v.SetDefault("timesync.resyncinterval", defaultTimeSyncResyncInterval)

	v.SetDefault("preflight.host", defaultPreflightHost)
	v.SetDefault("preflight.maxattempts", defaultPreflightMaxAttempts)
	v.SetDefault("preflight.probetimeout", defaultPreflightProbeTimeout)
	v.SetDefault("preflight.retrydelay", defaultPreflightRetryDelay)

	v.SetDefault("session.debouncewindow", defaultSessionDebounceWindow)
	v.SetDefault("session.maxdigits", defaultSessionMaxDigits)
	v.SetDefault("session.networkstreamlimit", defaultSessionNetworkStreamLimit)

	v.SetDefault("player.binary", defaultPlayerBinary)
	v.SetDefault("player.args", []string{"--no-terminal"})
}

// Validate checks that configuration values are valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLevels, ", "))
	}

	if len(c.TimeSync.Servers) == 0 {
		return fmt.Errorf("timesync server list must not be empty")
	}
	if c.TimeSync.QueryTimeout <= 0 {
		return fmt.Errorf("invalid timesync query timeout: %v (must be > 0)", c.TimeSync.QueryTimeout)
	}

	if c.Preflight.Host == "" {
		return fmt.Errorf("preflight host must not be empty")
	}
	if c.Preflight.MaxAttempts < 1 {
		return fmt.Errorf("invalid preflight max attempts: %d (must be >= 1)", c.Preflight.MaxAttempts)
	}
	if c.Preflight.ProbeTimeout <= 0 {
		return fmt.Errorf("invalid preflight probe timeout: %v (must be > 0)", c.Preflight.ProbeTimeout)
	}
	if c.Preflight.RetryDelay < 0 {
		return fmt.Errorf("invalid preflight retry delay: %v (must be >= 0)", c.Preflight.RetryDelay)
	}

	if c.Session.DebounceWindow <= 0 {
		return fmt.Errorf("invalid session debounce window: %v (must be > 0)", c.Session.DebounceWindow)
	}
	if c.Session.MaxDigits < 1 {
		return fmt.Errorf("invalid session max digits: %d (must be >= 1)", c.Session.MaxDigits)
	}
	if c.Session.NetworkStreamLimit < 1 {
		return fmt.Errorf("invalid network stream limit: %d (must be >= 1)", c.Session.NetworkStreamLimit)
	}

	if c.Player.Binary == "" {
		return fmt.Errorf("player binary must not be empty")
	}

	return nil
}

// contains checks if a string slice contains a specific value
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
