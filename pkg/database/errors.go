package database

import "errors"

var (
	// ErrNotReady indicates the connection has not been established.
	ErrNotReady = errors.New("database not ready")
	// ErrDisabled indicates no database is configured.
	ErrDisabled = errors.New("database not configured")
)
