package storage_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/pkg/storage"
)

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_STORAGE_CONN", "UseDevelopmentStorage=true")

	cfg := storage.Config{}
	require.NoError(t, cfg.Finalize(&storage.Env{ConnectionString: "TEST_STORAGE_CONN"}))
	assert.True(t, cfg.Enabled())
	assert.Equal(t, "tally", cfg.ContainerName)

	off := storage.Config{}
	require.NoError(t, off.Finalize(nil))
	assert.False(t, off.Enabled())
}

func TestNewDisabled(t *testing.T) {
	_, err := storage.New(&storage.Config{}, nil)
	assert.ErrorIs(t, err, storage.ErrDisabled)
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, storage.ValidateKey("rates/hsn.csv"))
	assert.NoError(t, storage.ValidateKey("hsn..v2.csv"))
	assert.ErrorIs(t, storage.ValidateKey(""), storage.ErrEmptyKey)

	for _, bad := range []string{"../secrets", "/rates/hsn.csv", "rates//hsn.csv", "rates/./hsn.csv", `rates\hsn.csv`, "rates/"} {
		assert.ErrorIs(t, storage.ValidateKey(bad), storage.ErrInvalidKey, bad)
	}
}

func TestMapHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, storage.MapHTTPStatus(storage.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, storage.MapHTTPStatus(storage.ErrInvalidKey))
	assert.Equal(t, http.StatusServiceUnavailable, storage.MapHTTPStatus(storage.ErrDisabled))
	assert.Equal(t, http.StatusInternalServerError, storage.MapHTTPStatus(errors.New("boom")))
}
