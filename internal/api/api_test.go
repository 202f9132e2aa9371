package api_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/internal/api"
	"github.com/JaimeStill/tally/internal/config"
	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/internal/rates"
	"github.com/JaimeStill/tally/pkg/module"
	"github.com/JaimeStill/tally/reconcile"
)

const taxInvoice = `TAX INVOICE
Acme Traders Pvt Ltd
GSTIN: 27ABCDE1234F1Z5
Invoice No: INV-2024/001
Invoice Date: 15-Mar-2024
HSN 8471 Laptop 1,000.00 CGST 9% 90.00 SGST 9% 90.00
Taxable Value 1,000.00
Total Tax 180.00
Grand Total 1,180.00
`

func newRouter(t *testing.T) *module.Router {
	t.Helper()

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "hsn.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("hsn,gst\n8471,18\n"), 0o644))

	cfg, err := config.LoadFrom(dir)
	require.NoError(t, err)
	cfg.Rates.CSVPath = csvPath

	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	m, err := api.NewModule(cfg, infra)
	require.NoError(t, err)

	require.NoError(t, infra.Start())
	infra.Lifecycle.WaitForStartup()
	t.Cleanup(func() {
		_ = infra.Lifecycle.Shutdown(time.Second)
	})

	router := module.NewRouter()
	router.Mount(m)
	return router
}

func TestRateLookupThroughModule(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/rates/8471", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rate rates.Rate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rate))
	assert.Equal(t, "8471", rate.Code)
	assert.Equal(t, "18", rate.Percentage.String())
}

func TestProcessThroughModule(t *testing.T) {
	router := newRouter(t)

	body := `{"transcript": {"text": ` + mustJSON(t, taxInvoice) + `}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/invoices/process", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var result reconcile.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "INV-2024/001", result.Document.InvoiceNumber)
	assert.NotContains(t, result.FlagKinds(), reconcile.KindNonstandardGSTSlab)
}

func TestListWithoutDatabase(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/invoices", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpenAPIDocument(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var spec struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]struct {
			Tags []string `json:"tags"`
		} `json:"paths"`
		Components struct {
			Schemas map[string]any `json:"schemas"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))

	assert.Equal(t, "Tally API", spec.Info.Title)
	assert.Contains(t, spec.Paths, "/invoices/process")
	assert.Contains(t, spec.Paths["/rates/{code}"], "get")
	assert.Equal(t, []string{"Invoices"}, spec.Paths["/invoices/{id}"]["delete"].Tags)
	assert.Contains(t, spec.Components.Schemas, "Record")
	assert.Contains(t, spec.Components.Schemas, "RateSummary")
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
