package openapi

import "os"

const (
	defaultTitle       = "Tally API"
	defaultDescription = "GST invoice extraction, tax reconciliation and anomaly flagging."
)

// Config sets the document's info block.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// Env names the variables that override Config. Empty names are skipped.
type Env struct {
	Title       string
	Description string
}

func (c *Config) Finalize(env *Env) error {
	c.Merge(&Config{Title: defaultTitle, Description: defaultDescription}, false)
	if env != nil {
		c.Merge(&Config{Title: getenv(env.Title), Description: getenv(env.Description)}, true)
	}
	return nil
}

// Merge copies non-empty overlay fields. Without override it only fills
// fields that are still empty.
func (c *Config) Merge(overlay *Config, override bool) {
	set := func(dst *string, v string) {
		if v != "" && (override || *dst == "") {
			*dst = v
		}
	}
	set(&c.Title, overlay.Title)
	set(&c.Description, overlay.Description)
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
