package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/middleware"
	"github.com/JaimeStill/tally/pkg/module"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/pagination"
)

const (
	EnvAPIBasePath      = "TALLY_API_BASE_PATH"
	EnvAPIMaxUploadSize = "TALLY_API_MAX_UPLOAD_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "TALLY_CORS_ENABLED",
	Origins:          "TALLY_CORS_ORIGINS",
	AllowedMethods:   "TALLY_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "TALLY_CORS_ALLOWED_HEADERS",
	AllowCredentials: "TALLY_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "TALLY_CORS_MAX_AGE",
}

var openapiEnv = &openapi.Env{
	Title:       "TALLY_OPENAPI_TITLE",
	Description: "TALLY_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.Env{
	DefaultPageSize: "TALLY_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "TALLY_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, request size, CORS, OpenAPI metadata and
// pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	OpenAPI       openapi.Config        `toml:"openapi"`
	Pagination    pagination.Config     `toml:"pagination"`
}

// MaxUploadSizeBytes returns the request body limit in bytes.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize settles the API section and its nested CORS, OpenAPI and
// pagination tables. The base path must be a single segment since the API
// is mounted as one module.
func (c *APIConfig) Finalize() error {
	c.Merge(&APIConfig{
		BasePath:      os.Getenv(EnvAPIBasePath),
		MaxUploadSize: os.Getenv(EnvAPIMaxUploadSize),
	})
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}

	if err := module.ValidatePrefix(c.BasePath); err != nil {
		return fmt.Errorf("base_path: %w", err)
	}
	if c.MaxUploadSizeBytes() <= 0 {
		return fmt.Errorf("invalid max_upload_size: %q", c.MaxUploadSize)
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	c.CORS.Merge(&overlay.CORS)
	c.OpenAPI.Merge(&overlay.OpenAPI, true)
	c.Pagination.Merge(&overlay.Pagination)
}
