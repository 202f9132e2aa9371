package invoices

import "github.com/JaimeStill/tally/pkg/openapi"

var money = &openapi.Schema{Type: "string", Description: "Decimal amount", Example: "1180.00"}

var schemas = map[string]*openapi.Schema{
	"Transcript": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"text": {Type: "string", Description: "Full OCR or vision-model text"},
			"fragments": {
				Type: "array",
				Items: &openapi.Schema{
					Type: "object",
					Properties: map[string]*openapi.Schema{
						"id":   {Type: "string"},
						"text": {Type: "string"},
						"top":  {Type: "number", Description: "Vertical anchor in [0, 1]"},
						"left": {Type: "number", Description: "Horizontal anchor in [0, 1]"},
						"tag":  {Type: "string", Example: "attestation"},
					},
				},
			},
		},
	},
	"TranscriptRequest": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":         {Type: "string", Description: "Caller reference echoed in logs"},
			"transcript": openapi.SchemaRef("Transcript"),
			"guesses": openapi.OneOf(
				"Upstream field guesses as an object, or raw model output holding one",
				openapi.MapOf(&openapi.Schema{Type: "string"}),
				&openapi.Schema{Type: "string"},
			),
		},
		Required: []string{"transcript"},
	},
	"Document": {
		Type:        "object",
		Description: "Structured invoice record. Absent values are omitted or null.",
		Properties: map[string]*openapi.Schema{
			"invoice_number":  {Type: "string"},
			"invoice_date":    {Type: "string", Format: "date"},
			"seller_gstin":    {Type: "string", Pattern: `^\d{2}[A-Z]{5}\d{4}[A-Z0-9]{3}$`},
			"buyer_gstin":     {Type: "string", Pattern: `^\d{2}[A-Z]{5}\d{4}[A-Z0-9]{3}$`},
			"vendor_name":     {Type: "string"},
			"totals":          {Type: "object", Properties: map[string]*openapi.Schema{"total_amount": money, "total_tax": money, "taxable_amount": money}},
			"items":           {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"flags":           {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"notes":           {Type: "array", Items: &openapi.Schema{Type: "string"}},
			"needs_review":    {Type: "boolean"},
			"sources":         openapi.MapOf(&openapi.Schema{Type: "string", Enum: []any{"upstream", "pattern", "layout"}}),
			"items_signature": {Type: "string", Description: "SHA-256 over the sorted item keys"},
		},
	},
	"Result": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"document":   openapi.SchemaRef("Document"),
			"auto_fixes": {Type: "array", Items: &openapi.Schema{Type: "object"}},
			"status":     {Type: "string", Enum: []any{"ok", "flagged"}},
		},
	},
	"Record": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":              {Type: "string", Format: "uuid"},
			"invoice_number":  {Type: "string"},
			"invoice_date":    {Type: "string", Format: "date"},
			"seller_gstin":    {Type: "string"},
			"buyer_gstin":     {Type: "string"},
			"vendor_name":     {Type: "string"},
			"total_amount":    money,
			"status":          {Type: "string", Enum: []any{"ok", "flagged"}},
			"needs_review":    {Type: "boolean"},
			"items_signature": {Type: "string"},
			"result":          openapi.SchemaRef("Result"),
			"created_at":      {Type: "string", Format: "date-time"},
		},
	},
	"RecordPage": {
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        openapi.ArrayOf("Record"),
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	},
}

var filterParams = []*openapi.Parameter{
	openapi.QueryParam("page", "integer", "Page number", false),
	openapi.QueryParam("page_size", "integer", "Results per page", false),
	openapi.QueryParam("search", "string", "Matches invoice number, vendor name or seller GSTIN", false),
	openapi.QueryParam("sort", "string", "Comma-separated sort fields, - prefix for descending", false),
	openapi.QueryParam("status", "string", "ok or flagged", false),
	openapi.QueryParam("seller_gstin", "string", "Exact seller GSTIN", false),
	openapi.QueryParam("invoice_number", "string", "Exact invoice number", false),
	openapi.QueryParam("items_signature", "string", "Exact items signature", false),
	openapi.QueryParam("needs_review", "boolean", "Review flag", false),
	openapi.QueryParam("date_from", "string", "Invoice date lower bound, inclusive", false),
	openapi.QueryParam("date_to", "string", "Invoice date upper bound, exclusive", false),
}

var docs = struct {
	extract, reconcile, process, list, search, find, delete *openapi.Operation
}{
	extract: &openapi.Operation{
		Summary:     "Extract a document from a transcript",
		RequestBody: openapi.RequestBodyJSON("TranscriptRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Extracted document", "Document"),
			400: openapi.ResponseRef("BadRequest"),
			422: openapi.ResponseRef("UnprocessableEntity"),
		},
	},
	reconcile: &openapi.Operation{
		Summary:     "Reconcile an extracted document",
		Description: "Fills rates from the active table, completes totals and raises anomaly flags.",
		RequestBody: openapi.RequestBodyJSON("Document", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Reconciled result", "Result"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	process: &openapi.Operation{
		Summary:     "Extract and reconcile a transcript",
		Description: "With persist=true the result is stored and the record returned with 201.",
		Parameters:  []*openapi.Parameter{openapi.QueryParam("persist", "boolean", "Store the result", false)},
		RequestBody: openapi.RequestBodyJSON("TranscriptRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Reconciled result", "Result"),
			201: openapi.ResponseJSON("Stored record", "Record"),
			400: openapi.ResponseRef("BadRequest"),
			409: openapi.ResponseRef("Conflict"),
			422: openapi.ResponseRef("UnprocessableEntity"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
	list: &openapi.Operation{
		Summary:    "List stored invoices",
		Parameters: filterParams,
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Stored invoices", "RecordPage"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
	search: &openapi.Operation{
		Summary:     "Search stored invoices",
		Description: "Accepts page request fields and filters in one JSON body.",
		RequestBody: openapi.RequestBodyJSON("PageRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Stored invoices", "RecordPage"),
			400: openapi.ResponseRef("BadRequest"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
	find: &openapi.Operation{
		Summary:    "Get a stored invoice",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "uuid", "Record id")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Stored record", "Record"),
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
	delete: &openapi.Operation{
		Summary:    "Delete a stored invoice",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "uuid", "Record id")},
		Responses: map[int]*openapi.Response{
			204: {Description: "Deleted"},
			400: openapi.ResponseRef("BadRequest"),
			404: openapi.ResponseRef("NotFound"),
			503: openapi.ResponseRef("ServiceUnavailable"),
		},
	},
}
