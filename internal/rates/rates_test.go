package rates_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/internal/rates"
	"github.com/JaimeStill/tally/pkg/lifecycle"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/repository"
	"github.com/JaimeStill/tally/pkg/routes"
	"github.com/JaimeStill/tally/pkg/storage"
)

type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{blobs: make(map[string][]byte)}
}

func (m *memoryStore) Start(*lifecycle.Coordinator) error { return nil }

func (m *memoryStore) Ready() error { return nil }

func (m *memoryStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = bytes.Clone(data)
	return nil
}

func (m *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 2, MaxPageSize: 10}
}

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hsn.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRefreshFromFile(t *testing.T) {
	sys := rates.New(rates.Sources{CSVPath: writeCSV(t, "hsn,gst\n8471,18\n1006,5\n")}, discard(), pageConfig())

	assert.Zero(t, sys.Table().Len())

	summary, err := sys.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Entries)
	require.Len(t, summary.Sources, 1)
	assert.Equal(t, "file", summary.Sources[0].Name)

	rate, err := sys.Lookup("84713010")
	require.NoError(t, err)
	assert.Equal(t, "84713010", rate.Code)
	assert.True(t, rate.Percentage.Equal(decimal.NewFromInt(18)))
}

func TestLookupErrors(t *testing.T) {
	sys := rates.New(rates.Sources{}, discard(), pageConfig())

	_, err := sys.Lookup("12")
	assert.ErrorIs(t, err, rates.ErrInvalidCode)

	_, err = sys.Lookup("8471")
	assert.ErrorIs(t, err, rates.ErrNotFound)
}

func TestFailedRefreshKeepsTable(t *testing.T) {
	path := writeCSV(t, "8471,18\n")
	sys := rates.New(rates.Sources{CSVPath: path}, discard(), pageConfig())
	_, err := sys.Refresh(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	summary, err := sys.Refresh(context.Background())
	assert.ErrorIs(t, err, rates.ErrNoSourceLoaded)
	assert.True(t, summary.Preserved)
	assert.NotEmpty(t, summary.Sources[0].Error)
	assert.Equal(t, 1, sys.Table().Len())
}

func TestBlobOverridesFile(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Put(context.Background(), "rates/hsn.csv", []byte("8471,28\n"), "text/csv"))

	sys := rates.New(rates.Sources{
		CSVPath: writeCSV(t, "8471,18\n1006,5\n"),
		Storage: store,
		BlobKey: "rates/hsn.csv",
	}, discard(), pageConfig())

	summary, err := sys.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Entries)

	rate, err := sys.Lookup("8471")
	require.NoError(t, err)
	assert.True(t, rate.Percentage.Equal(decimal.NewFromInt(28)))
}

func TestMissingBlobDegradesToFile(t *testing.T) {
	sys := rates.New(rates.Sources{
		CSVPath: writeCSV(t, "8471,18\n"),
		Storage: newMemoryStore(),
		BlobKey: "rates/hsn.csv",
	}, discard(), pageConfig())

	summary, err := sys.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Entries)
	assert.Equal(t, storage.ErrNotFound.Error(), summary.Sources[1].Error)
}

func TestPublish(t *testing.T) {
	store := newMemoryStore()
	sys := rates.New(rates.Sources{Storage: store, BlobKey: "rates/hsn.csv"}, discard(), pageConfig())

	summary, err := sys.Publish(context.Background(), []byte("code,rate\n0401,5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Entries)

	assert.True(t, store.has("rates/hsn.csv"))

	_, err = sys.Publish(context.Background(), []byte("code,rate\n"))
	assert.ErrorIs(t, err, hsn.ErrEmptyTable)

	noBlob := rates.New(rates.Sources{}, discard(), pageConfig())
	_, err = noBlob.Publish(context.Background(), []byte("0401,5\n"))
	assert.ErrorIs(t, err, rates.ErrNoBlobSource)
}

func TestUpsertRequiresDatabase(t *testing.T) {
	sys := rates.New(rates.Sources{}, discard(), pageConfig())
	_, err := sys.Upsert(context.Background(), []hsn.Entry{{Code: "8471", Percentage: decimal.NewFromInt(18)}})
	assert.ErrorIs(t, err, rates.ErrNoDatabase)
}

func TestStartLoadsTable(t *testing.T) {
	sys := rates.New(rates.Sources{CSVPath: writeCSV(t, "8471,18\n")}, discard(), pageConfig())
	lc := lifecycle.New()
	require.NoError(t, sys.Start(lc))
	lc.WaitForStartup()
	assert.Equal(t, 1, sys.Table().Len())
}

func newServer(t *testing.T, sys rates.System) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHandlerLookupAndList(t *testing.T) {
	sys := rates.New(rates.Sources{CSVPath: writeCSV(t, "8471,18\n1006,5\n8501,12\n")}, discard(), pageConfig())
	_, err := sys.Refresh(context.Background())
	require.NoError(t, err)
	srv := newServer(t, sys)

	resp, err := http.Get(srv.URL + "/rates/847130")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var rate struct {
		Code       string `json:"code"`
		Percentage string `json:"percentage"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rate))
	assert.Equal(t, "847130", rate.Code)
	assert.Equal(t, "18", rate.Percentage)

	missing, err := http.Get(srv.URL + "/rates/9999")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(srv.URL + "/rates/12")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)

	list, err := http.Get(srv.URL + "/rates?search=8")
	require.NoError(t, err)
	defer list.Body.Close()

	var page pagination.PageResult[hsn.Entry]
	require.NoError(t, json.NewDecoder(list.Body).Decode(&page))
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "8471", page.Data[0].Code)
}

func TestHandlerRefreshFailure(t *testing.T) {
	sys := rates.New(rates.Sources{CSVPath: filepath.Join(t.TempDir(), "missing.csv")}, discard(), pageConfig())
	srv := newServer(t, sys)

	resp, err := http.Post(srv.URL+"/rates/refresh", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandlerUpsertBadBody(t *testing.T) {
	srv := newServer(t, rates.New(rates.Sources{}, discard(), pageConfig()))

	resp, err := http.Post(srv.URL+"/rates", "application/json", strings.NewReader(`{"code":"8471"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/rates", "application/json", strings.NewReader(`[{"code":"8471","percentage":"18"}]`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{rates.ErrNotFound, http.StatusNotFound},
		{rates.ErrInvalidCode, http.StatusBadRequest},
		{repository.MapError(&pgconn.PgError{Code: "23514"}, rates.ErrNotFound, rates.ErrInvalidEntries), http.StatusBadRequest},
		{hsn.ErrEmptyTable, http.StatusBadRequest},
		{rates.ErrNoDatabase, http.StatusServiceUnavailable},
		{rates.ErrNoSourceLoaded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rates.MapHTTPStatus(tt.err), tt.err.Error())
	}
}
