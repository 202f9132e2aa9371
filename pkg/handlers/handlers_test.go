package handlers_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/pkg/handlers"
)

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	handlers.RespondJSON(rec, http.StatusCreated, map[string]int{"n": 1})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, rec.Body.String())
}

func TestRespondError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	handlers.RespondError(rec, logger, http.StatusNotFound, errors.New("invoice not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"invoice not found"}`, rec.Body.String())
}

type payload struct {
	Text string `json:"text"`
}

func TestDecodeJSON(t *testing.T) {
	v, err := handlers.DecodeJSON[payload](strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", v.Text)

	_, err = handlers.DecodeJSON[payload](strings.NewReader(`{"txt":"hi"}`))
	assert.ErrorIs(t, err, handlers.ErrInvalidBody)

	_, err = handlers.DecodeJSON[payload](strings.NewReader(`{"text":"a"} {"text":"b"}`))
	assert.ErrorIs(t, err, handlers.ErrInvalidBody)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, handlers.Status(handlers.ErrInvalidBody, 500))
	assert.Equal(t, http.StatusRequestEntityTooLarge, handlers.Status(&http.MaxBytesError{Limit: 1}, 500))
	assert.Equal(t, http.StatusTeapot, handlers.Status(errors.New("x"), http.StatusTeapot))
}
