package storage

import (
	"errors"
	"os"
)

const defaultContainer = "tally"

// Config selects the blob container. An empty connection string disables
// storage.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
}

// Env names the variables that override Config.
type Env struct {
	ContainerName    string
	ConnectionString string
}

func (c *Config) Enabled() bool {
	return c.ConnectionString != ""
}

func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = defaultContainer
	}
	if env != nil {
		c.Merge(&Config{
			ContainerName:    lookupEnv(env.ContainerName),
			ConnectionString: lookupEnv(env.ConnectionString),
		})
	}
	if c.ContainerName == "" {
		return errors.New("container_name required")
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
