package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JaimeStill/tally/pkg/storage"
)

const (
	EnvRatesCSVPath         = "TALLY_RATES_CSV_PATH"
	EnvRatesUseDatabase     = "TALLY_RATES_USE_DATABASE"
	EnvRatesBlobKey         = "TALLY_RATES_BLOB_KEY"
	EnvRatesRefreshInterval = "TALLY_RATES_REFRESH_INTERVAL"
)

// RatesConfig names the sources of the HSN rate table. Sources are layered
// in order: the CSV file, then the hsn_rates table, then the blob CSV.
// Every source is optional.
type RatesConfig struct {
	CSVPath         string `toml:"csv_path"`
	UseDatabase     bool   `toml:"use_database"`
	BlobKey         string `toml:"blob_key"`
	RefreshInterval string `toml:"refresh_interval"`
}

// RefreshIntervalDuration returns RefreshInterval as a time.Duration.
// Zero disables periodic refresh.
func (c *RatesConfig) RefreshIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.RefreshInterval)
	return d
}

// Finalize applies environment variable overrides and validation.
func (c *RatesConfig) Finalize() error {
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *RatesConfig) Merge(overlay *RatesConfig) {
	if overlay.CSVPath != "" {
		c.CSVPath = overlay.CSVPath
	}
	if overlay.UseDatabase {
		c.UseDatabase = true
	}
	if overlay.BlobKey != "" {
		c.BlobKey = overlay.BlobKey
	}
	if overlay.RefreshInterval != "" {
		c.RefreshInterval = overlay.RefreshInterval
	}
}

func (c *RatesConfig) loadEnv() {
	if v := os.Getenv(EnvRatesCSVPath); v != "" {
		c.CSVPath = v
	}
	if v := os.Getenv(EnvRatesUseDatabase); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UseDatabase = b
		}
	}
	if v := os.Getenv(EnvRatesBlobKey); v != "" {
		c.BlobKey = v
	}
	if v := os.Getenv(EnvRatesRefreshInterval); v != "" {
		c.RefreshInterval = v
	}
}

func (c *RatesConfig) validate() error {
	if c.BlobKey != "" {
		if err := storage.ValidateKey(c.BlobKey); err != nil {
			return fmt.Errorf("invalid blob_key: %w", err)
		}
	}
	if c.RefreshInterval != "" {
		d, err := time.ParseDuration(c.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid refresh_interval: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("refresh_interval must not be negative")
		}
	}
	return nil
}
