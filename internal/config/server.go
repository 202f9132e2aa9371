package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "TALLY_SERVER_HOST"
	EnvServerPort              = "TALLY_SERVER_PORT"
	EnvServerReadTimeout       = "TALLY_SERVER_READ_TIMEOUT"
	EnvServerReadHeaderTimeout = "TALLY_SERVER_READ_HEADER_TIMEOUT"
	EnvServerWriteTimeout      = "TALLY_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "TALLY_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout   = "TALLY_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener parameters. Timeouts are Go duration
// strings.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadTimeout       string `toml:"read_timeout"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ServerTimeouts are the parsed ServerConfig durations.
type ServerTimeouts struct {
	Read       time.Duration
	ReadHeader time.Duration
	Write      time.Duration
	Idle       time.Duration
	Shutdown   time.Duration
}

// Timeouts parses every timeout. Values are validated by Finalize.
func (c *ServerConfig) Timeouts() ServerTimeouts {
	parse := func(s string) time.Duration {
		d, _ := time.ParseDuration(s)
		return d
	}
	return ServerTimeouts{
		Read:       parse(c.ReadTimeout),
		ReadHeader: parse(c.ReadHeaderTimeout),
		Write:      parse(c.WriteTimeout),
		Idle:       parse(c.IdleTimeout),
		Shutdown:   parse(c.ShutdownTimeout),
	}
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for dst, v := range c.durations(overlay) {
		if v != "" {
			*dst = v
		}
	}
}

// durations pairs each timeout field of c with the same field of src.
func (c *ServerConfig) durations(src *ServerConfig) map[*string]string {
	return map[*string]string{
		&c.ReadTimeout:       src.ReadTimeout,
		&c.ReadHeaderTimeout: src.ReadHeaderTimeout,
		&c.WriteTimeout:      src.WriteTimeout,
		&c.IdleTimeout:       src.IdleTimeout,
		&c.ShutdownTimeout:   src.ShutdownTimeout,
	}
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	c.Merge(&ServerConfig{
		ReadTimeout:       defaultIfEmpty(c.ReadTimeout, "1m"),
		ReadHeaderTimeout: defaultIfEmpty(c.ReadHeaderTimeout, "10s"),
		WriteTimeout:      defaultIfEmpty(c.WriteTimeout, "2m"),
		IdleTimeout:       defaultIfEmpty(c.IdleTimeout, "2m"),
		ShutdownTimeout:   defaultIfEmpty(c.ShutdownTimeout, "30s"),
	})
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	c.Merge(&ServerConfig{
		ReadTimeout:       os.Getenv(EnvServerReadTimeout),
		ReadHeaderTimeout: os.Getenv(EnvServerReadHeaderTimeout),
		WriteTimeout:      os.Getenv(EnvServerWriteTimeout),
		IdleTimeout:       os.Getenv(EnvServerIdleTimeout),
		ShutdownTimeout:   os.Getenv(EnvServerShutdownTimeout),
	})
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	named := map[string]string{
		"read_timeout":        c.ReadTimeout,
		"read_header_timeout": c.ReadHeaderTimeout,
		"write_timeout":       c.WriteTimeout,
		"idle_timeout":        c.IdleTimeout,
		"shutdown_timeout":    c.ShutdownTimeout,
	}
	for name, v := range named {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: negative duration %s", name, v)
		}
	}
	return nil
}

func defaultIfEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
