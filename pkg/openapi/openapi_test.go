package openapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/tally/pkg/openapi"
)

func TestNewSpec(t *testing.T) {
	spec := openapi.New(&openapi.Config{Title: "Tally API", Description: "invoices"}, "0.1.0", "/api")

	assert.Equal(t, "3.1.0", spec.OpenAPI)
	assert.Equal(t, "Tally API", spec.Info.Title)
	assert.Equal(t, "invoices", spec.Info.Description)
	require.Len(t, spec.Servers, 1)
	assert.Equal(t, "/api", spec.Servers[0].URL)

	for _, name := range []string{"BadRequest", "NotFound", "Conflict", "UnprocessableEntity", "ServiceUnavailable"} {
		resp := spec.Components.Responses[name]
		require.NotNil(t, resp, name)
		assert.Equal(t, "#/components/schemas/Error", resp.Content["application/json"].Schema.Ref)
	}
}

func TestAddOperation(t *testing.T) {
	spec := openapi.New(&openapi.Config{Title: "Test"}, "1.0.0")
	get := &openapi.Operation{Summary: "get"}
	post := &openapi.Operation{Summary: "post"}

	spec.AddOperation("/rates", "get", get)
	spec.AddOperation("/rates", "POST", post)
	spec.AddOperation("/rates", "PATCH", &openapi.Operation{})
	spec.AddOperation("", "GET", get)

	item := spec.Paths["/rates"]
	require.NotNil(t, item)
	assert.Same(t, get, item.Get)
	assert.Same(t, post, item.Post)
	assert.Nil(t, item.Put)
	assert.Contains(t, spec.Paths, "/")
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "#/components/schemas/Rate", openapi.SchemaRef("Rate").Ref)
	assert.Equal(t, "#/components/responses/NotFound", openapi.ResponseRef("NotFound").Ref)

	arr := openapi.ArrayOf("Rate")
	assert.Equal(t, "array", arr.Type)
	assert.Equal(t, "#/components/schemas/Rate", arr.Items.Ref)

	body := openapi.RequestBodyJSON("Document", true)
	assert.True(t, body.Required)
	assert.Equal(t, "#/components/schemas/Document", body.Content["application/json"].Schema.Ref)

	m := openapi.MapOf(&openapi.Schema{Type: "string"})
	assert.Equal(t, "object", m.Type)
	assert.Equal(t, "string", m.AdditionalProperties.Type)

	one := openapi.OneOf("either", m, &openapi.Schema{Type: "string"})
	assert.Len(t, one.OneOf, 2)
	assert.Empty(t, one.Type)

	p := openapi.PathParam("id", "uuid", "Record id")
	assert.Equal(t, "path", p.In)
	assert.True(t, p.Required)
	assert.Equal(t, "uuid", p.Schema.Format)

	q := openapi.QueryParam("persist", "boolean", "Store", false)
	assert.Equal(t, "query", q.In)
	assert.Equal(t, "boolean", q.Schema.Type)
}

func TestHandler(t *testing.T) {
	spec := openapi.New(&openapi.Config{Title: "Test"}, "1.0.0")
	spec.AddOperation("/rates", "GET", &openapi.Operation{
		Summary:   "list",
		Responses: map[int]*openapi.Response{200: {Description: "ok"}},
	})

	handler, err := spec.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	paths := decoded["paths"].(map[string]any)
	responses := paths["/rates"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)
	assert.Contains(t, responses, "200")
}

func TestConfig(t *testing.T) {
	t.Setenv("TEST_OPENAPI_TITLE", "Override")

	var cfg openapi.Config
	cfg.Merge(&openapi.Config{Description: "from file"}, true)
	require.NoError(t, cfg.Finalize(&openapi.Env{Title: "TEST_OPENAPI_TITLE"}))

	assert.Equal(t, "Override", cfg.Title)
	assert.Equal(t, "from file", cfg.Description)

	cfg.Merge(&openapi.Config{Title: "ignored"}, false)
	assert.Equal(t, "Override", cfg.Title)
}

func TestConfigDefaults(t *testing.T) {
	var cfg openapi.Config
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, "Tally API", cfg.Title)
	assert.NotEmpty(t, cfg.Description)
}
