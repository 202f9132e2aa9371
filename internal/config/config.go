package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/tally/pkg/database"
	"github.com/JaimeStill/tally/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvTallyEnv             = "TALLY_ENV"
	EnvTallyShutdownTimeout = "TALLY_SHUTDOWN_TIMEOUT"
	EnvTallyVersion         = "TALLY_VERSION"
)

var databaseEnv = &database.Env{
	DSN:             "TALLY_DB_DSN",
	Host:            "TALLY_DB_HOST",
	Port:            "TALLY_DB_PORT",
	Name:            "TALLY_DB_NAME",
	User:            "TALLY_DB_USER",
	Password:        "TALLY_DB_PASSWORD",
	SSLMode:         "TALLY_DB_SSL_MODE",
	MaxOpenConns:    "TALLY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "TALLY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "TALLY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "TALLY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "TALLY_STORAGE_CONTAINER_NAME",
	ConnectionString: "TALLY_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the tally service and CLI.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	API             APIConfig       `toml:"api"`
	Rates           RatesConfig     `toml:"rates"`
	Pipeline        PipelineConfig  `toml:"pipeline"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the TALLY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvTallyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml from the working directory (if present), merges
// the config.<TALLY_ENV>.toml overlay, and finalizes every section. With
// no files, defaults and environment variables provide all configuration.
func Load() (*Config, error) {
	return LoadFrom(".")
}

// LoadFrom is Load rooted at dir.
func LoadFrom(dir string) (*Config, error) {
	cfg := &Config{}

	base := filepath.Join(dir, BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(dir); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Rates.Merge(&overlay.Rates)
	c.Pipeline.Merge(&overlay.Pipeline)
}

// finalize settles the root fields, then each section in turn. The first
// failing section is reported by its TOML table name.
func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()
	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"rates", c.Rates.Finalize},
		{"pipeline", c.Pipeline.Finalize},
	}
	for _, sec := range sections {
		if err := sec.finalize(); err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvTallyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvTallyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

// load decodes one TOML file. Unknown keys are rejected so that a
// misspelled setting fails loudly instead of silently keeping its default.
func load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse %s: %s", filepath.Base(path), strict.String())
		}
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvTallyEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
