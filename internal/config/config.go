// Package config loads the client configuration. Values are layered:
// built-in defaults, an optional YAML file, the environment (after .env is
// loaded) and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/eyes-gesture/eyes-client/pkg/debug"
	"github.com/eyes-gesture/eyes-client/pkg/env"
)

// Flag names
const (
	FlagConfig            = "config"
	FlagEnvFile           = "env-file"
	FlagHost              = "host"
	FlagPort              = "port"
	FlagTLS               = "tls"
	FlagPollInterval      = "poll-interval"
	FlagGestureDisplay    = "gesture-display"
	FlagRequestTimeout    = "request-timeout"
	FlagReconnectAttempts = "reconnect-attempts"
	FlagAutoStream        = "auto-stream"
	FlagLogFile           = "log-file"
	FlagCAFile            = "ca-file"
)

// Config holds the client configuration
type Config struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UseTLS bool   `yaml:"use_tls"`
	// CAFile is an extra PEM root trusted for https/wss, for backends
	// behind a self-signed certificate.
	CAFile string `yaml:"ca_file"`

	PollInterval     time.Duration `yaml:"poll_interval"`
	GestureDisplay   time.Duration `yaml:"gesture_display"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteWait        time.Duration `yaml:"write_wait"`

	// ReconnectAttempts bounds automatic redials of a dropped push session.
	// Zero disables reconnection.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	// AutoStream follows the backend's running flag when true.
	AutoStream bool `yaml:"auto_stream"`

	LogFile string `yaml:"log_file"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:              "localhost",
		Port:              8000,
		PollInterval:      2 * time.Second,
		GestureDisplay:    2 * time.Second,
		RequestTimeout:    5 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		WriteWait:         10 * time.Second,
		ReconnectAttempts: 0,
		AutoStream:        true,
	}
}

// RegisterFlags adds the configuration flags to fs. Flags only override the
// other layers when they are set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagConfig, "", "path to a YAML config file (env EYES_CONFIG)")
	fs.String(FlagEnvFile, "", "path to a .env file (env EYES_ENV_FILE, default ./.env)")
	fs.String(FlagHost, d.Host, "backend host")
	fs.Int(FlagPort, d.Port, "backend port")
	fs.Bool(FlagTLS, d.UseTLS, "use https/wss")
	fs.String(FlagCAFile, d.CAFile, "PEM file with an extra CA to trust for https/wss")
	fs.Duration(FlagPollInterval, d.PollInterval, "status poll interval")
	fs.Duration(FlagGestureDisplay, d.GestureDisplay, "how long a detected gesture stays on screen")
	fs.Duration(FlagRequestTimeout, d.RequestTimeout, "REST request timeout")
	fs.Int(FlagReconnectAttempts, d.ReconnectAttempts, "push channel redial attempts (0 disables)")
	fs.Bool(FlagAutoStream, d.AutoStream, "stream whenever the backend reports it is running")
	fs.String(FlagLogFile, d.LogFile, "write debug logs to this file")
}

// Load builds the configuration. fs may be nil; otherwise it must have been
// prepared with RegisterFlags and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := loadEnvFile(stringFlagOrEnv(fs, FlagEnvFile, "EYES_ENV_FILE")); err != nil {
		return nil, err
	}
	// DEBUG and LOG_LEVEL may have come from .env
	debug.Reinitialize()

	cfg := Default()
	if path := stringFlagOrEnv(fs, FlagConfig, "EYES_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if fs != nil {
		if err := cfg.applyFlags(fs); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	debug.Info("Configuration loaded: host=%s port=%d tls=%v poll=%v auto_stream=%v",
		cfg.Host, cfg.Port, cfg.UseTLS, cfg.PollInterval, cfg.AutoStream)
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
		debug.Info("Loaded environment from %s", path)
		return nil
	}
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			debug.Warning("Failed to load .env file: %v", err)
		}
		return nil
	}
	debug.Debug("Loaded environment from .env")
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	debug.Info("Loaded config file %s", path)
	return nil
}

func (c *Config) applyEnv() {
	c.Host = env.GetOrDefault("EYES_HOST", c.Host)
	c.Port = env.GetIntOrDefault("EYES_PORT", c.Port)
	c.UseTLS = env.GetBoolOrDefault("USE_TLS", c.UseTLS)
	c.CAFile = env.GetOrDefault("EYES_CA_FILE", c.CAFile)
	c.PollInterval = env.GetDurationOrDefault("EYES_POLL_INTERVAL", c.PollInterval)
	c.GestureDisplay = env.GetDurationOrDefault("EYES_GESTURE_DISPLAY", c.GestureDisplay)
	c.RequestTimeout = env.GetDurationOrDefault("EYES_REQUEST_TIMEOUT", c.RequestTimeout)
	c.HandshakeTimeout = env.GetDurationOrDefault("EYES_HANDSHAKE_TIMEOUT", c.HandshakeTimeout)
	c.WriteWait = env.GetDurationOrDefault("EYES_WRITE_WAIT", c.WriteWait)
	c.ReconnectAttempts = env.GetIntOrDefault("EYES_RECONNECT_ATTEMPTS", c.ReconnectAttempts)
	c.AutoStream = env.GetBoolOrDefault("EYES_AUTO_STREAM", c.AutoStream)
	c.LogFile = env.GetOrDefault("EYES_LOG_FILE", c.LogFile)
}

func (c *Config) applyFlags(fs *pflag.FlagSet) error {
	var err error
	if fs.Changed(FlagHost) {
		if c.Host, err = fs.GetString(FlagHost); err != nil {
			return err
		}
	}
	if fs.Changed(FlagPort) {
		if c.Port, err = fs.GetInt(FlagPort); err != nil {
			return err
		}
	}
	if fs.Changed(FlagTLS) {
		if c.UseTLS, err = fs.GetBool(FlagTLS); err != nil {
			return err
		}
	}
	if fs.Changed(FlagCAFile) {
		if c.CAFile, err = fs.GetString(FlagCAFile); err != nil {
			return err
		}
	}
	if fs.Changed(FlagPollInterval) {
		if c.PollInterval, err = fs.GetDuration(FlagPollInterval); err != nil {
			return err
		}
	}
	if fs.Changed(FlagGestureDisplay) {
		if c.GestureDisplay, err = fs.GetDuration(FlagGestureDisplay); err != nil {
			return err
		}
	}
	if fs.Changed(FlagRequestTimeout) {
		if c.RequestTimeout, err = fs.GetDuration(FlagRequestTimeout); err != nil {
			return err
		}
	}
	if fs.Changed(FlagReconnectAttempts) {
		if c.ReconnectAttempts, err = fs.GetInt(FlagReconnectAttempts); err != nil {
			return err
		}
	}
	if fs.Changed(FlagAutoStream) {
		if c.AutoStream, err = fs.GetBool(FlagAutoStream); err != nil {
			return err
		}
	}
	if fs.Changed(FlagLogFile) {
		if c.LogFile, err = fs.GetString(FlagLogFile); err != nil {
			return err
		}
	}
	return nil
}

// stringFlagOrEnv prefers an explicitly set flag over the environment
func stringFlagOrEnv(fs *pflag.FlagSet, name, key string) string {
	if fs != nil && fs.Lookup(name) != nil && fs.Changed(name) {
		if value, err := fs.GetString(name); err == nil {
			return value
		}
	}
	return os.Getenv(key)
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	for name, d := range map[string]time.Duration{
		"poll interval":     c.PollInterval,
		"gesture display":   c.GestureDisplay,
		"request timeout":   c.RequestTimeout,
		"handshake timeout": c.HandshakeTimeout,
		"write wait":        c.WriteWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}
	if c.ReconnectAttempts < 0 {
		return fmt.Errorf("reconnect attempts must not be negative: %d", c.ReconnectAttempts)
	}
	return nil
}

// GetAddress returns host:port, used by the mock backend to listen on
func (c *Config) GetAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
