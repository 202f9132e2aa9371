package rates

import "github.com/JaimeStill/tally/pkg/openapi"

var schemas = map[string]*openapi.Schema{
	"Rate": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"code":       {Type: "string", Description: "HSN/SAC classification code", Example: "8471"},
			"percentage": {Type: "string", Description: "Combined GST rate in percent", Example: "18"},
		},
		Required: []string{"code", "percentage"},
	},
	"RatePage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        openapi.ArrayOf("Rate"),
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
	"RateSummary": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"entries":   {Type: "integer", Description: "Codes in the active table"},
			"loaded_at": {Type: "string", Format: "date-time"},
			"preserved": {Type: "boolean", Description: "Every source failed and the previous table was kept"},
			"sources": {
				Type: "array",
				Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"name":    {Type: "string", Enum: []any{"file", "database", "blob"}},
						"entries": {Type: "integer"},
						"error":   {Type: "string"},
					},
				},
			},
		},
	},
}

var docs = struct {
	list, lookup, upsert, refresh, publish *openapi.Operation
}{
	list: &openapi.Operation{
		Summary:     "List rate table entries",
		Description: "Pages through the active table in code order. search filters by code prefix.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Code prefix", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Rate entries", "RatePage"),
		},
	},
	lookup: &openapi.Operation{
		Summary:     "Look up a classification code",
		Description: "Exact match first, then the longest stored prefix of the code.",
		Parameters:  []*openapi.Parameter{openapi.PathParam("code", "", "HSN/SAC code, 4 to 8 digits")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Matched rate", "Rate"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
		},
	},
	upsert: &openapi.Operation{
		Summary:     "Write rate overrides",
		Description: "Upserts entries into the database override table, then refreshes.",
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"application/json": {Schema: openapi.ArrayOf("Rate")},
			},
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Refreshed table summary", "RateSummary"),
			400: openapi.ResponseRef("BadRequest"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
	refresh: &openapi.Operation{
		Summary: "Reload the rate table from its sources",
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Refreshed table summary", "RateSummary"),
			503: openapi.ResponseJSON("No source loaded; previous table kept", "RateSummary"),
		},
	},
	publish: &openapi.Operation{
		Summary:     "Replace the blob-hosted rate CSV",
		Description: "Validates the CSV body, uploads it to the configured blob key, then refreshes.",
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"text/csv": {Schema: &openapi.Schema{Type: "string"}},
			},
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Refreshed table summary", "RateSummary"),
			400: openapi.ResponseRef("BadRequest"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
}
