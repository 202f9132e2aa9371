package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/reconcile"
)

const (
	EnvPipelineWorkers        = "TALLY_PIPELINE_WORKERS"
	EnvPipelineTaxTolerance   = "TALLY_PIPELINE_TAX_TOLERANCE"
	EnvPipelineTotalTolerance = "TALLY_PIPELINE_TOTAL_TOLERANCE"
)

// PipelineConfig overrides extraction and reconciliation tunables. Zero
// values keep the package defaults. Decimal values are strings so that
// TOML floats never round them.
type PipelineConfig struct {
	Workers         int      `toml:"workers"`
	ItemWindow      int      `toml:"item_window"`
	GSTINWindow     int      `toml:"gstin_window"`
	HeaderFragments int      `toml:"header_fragments"`
	MaxItems        int      `toml:"max_items"`
	MinItemValue    string   `toml:"min_item_value"`
	MinTextLength   int      `toml:"min_text_length"`
	PaymentWindow   int      `toml:"payment_window"`
	Slabs           []string `toml:"slabs"`
	SlabTolerance   string   `toml:"slab_tolerance"`
	TaxTolerance    string   `toml:"tax_tolerance"`
	TotalTolerance  string   `toml:"total_tolerance"`
}

// InvoiceOptions returns the extraction options with overrides applied.
func (c *PipelineConfig) InvoiceOptions() invoice.Options {
	opts := invoice.DefaultOptions()
	setInt(&opts.ItemWindow, c.ItemWindow)
	setInt(&opts.GSTINWindow, c.GSTINWindow)
	setInt(&opts.HeaderFragments, c.HeaderFragments)
	setInt(&opts.MaxItems, c.MaxItems)
	setDecimal(&opts.MinItemValue, c.MinItemValue)
	return opts
}

// ReconcileOptions returns the reconciliation options with overrides applied.
func (c *PipelineConfig) ReconcileOptions() reconcile.Options {
	opts := reconcile.DefaultOptions()
	setInt(&opts.MinTextLength, c.MinTextLength)
	setInt(&opts.PaymentWindow, c.PaymentWindow)
	setDecimal(&opts.SlabTolerance, c.SlabTolerance)
	setDecimal(&opts.TaxTolerance, c.TaxTolerance)
	setDecimal(&opts.TotalTolerance, c.TotalTolerance)
	if len(c.Slabs) > 0 {
		opts.Slabs = make([]decimal.Decimal, 0, len(c.Slabs))
		for _, s := range c.Slabs {
			opts.Slabs = append(opts.Slabs, decimal.RequireFromString(s))
		}
	}
	return opts
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PipelineConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PipelineConfig) Merge(overlay *PipelineConfig) {
	setInt(&c.Workers, overlay.Workers)
	setInt(&c.ItemWindow, overlay.ItemWindow)
	setInt(&c.GSTINWindow, overlay.GSTINWindow)
	setInt(&c.HeaderFragments, overlay.HeaderFragments)
	setInt(&c.MaxItems, overlay.MaxItems)
	setInt(&c.MinTextLength, overlay.MinTextLength)
	setInt(&c.PaymentWindow, overlay.PaymentWindow)
	if overlay.MinItemValue != "" {
		c.MinItemValue = overlay.MinItemValue
	}
	if overlay.Slabs != nil {
		c.Slabs = overlay.Slabs
	}
	if overlay.SlabTolerance != "" {
		c.SlabTolerance = overlay.SlabTolerance
	}
	if overlay.TaxTolerance != "" {
		c.TaxTolerance = overlay.TaxTolerance
	}
	if overlay.TotalTolerance != "" {
		c.TotalTolerance = overlay.TotalTolerance
	}
}

func (c *PipelineConfig) loadDefaults() {
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
}

func (c *PipelineConfig) loadEnv() {
	if v := os.Getenv(EnvPipelineWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvPipelineTaxTolerance); v != "" {
		c.TaxTolerance = v
	}
	if v := os.Getenv(EnvPipelineTotalTolerance); v != "" {
		c.TotalTolerance = v
	}
}

func (c *PipelineConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	for name, v := range map[string]string{
		"min_item_value":  c.MinItemValue,
		"slab_tolerance":  c.SlabTolerance,
		"tax_tolerance":   c.TaxTolerance,
		"total_tolerance": c.TotalTolerance,
	} {
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil || d.IsNegative() {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	for _, s := range c.Slabs {
		if _, err := decimal.NewFromString(s); err != nil {
			return fmt.Errorf("invalid slab: %q", s)
		}
	}
	return nil
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDecimal(dst *decimal.Decimal, v string) {
	if v == "" {
		return
	}
	if d, err := decimal.NewFromString(v); err == nil {
		*dst = d
	}
}
