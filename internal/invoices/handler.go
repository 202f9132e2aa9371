package invoices

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/tally/internal/pipeline"
	"github.com/JaimeStill/tally/invoice"
	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/routes"
)

// Handler provides HTTP endpoints for the pipeline and stored invoices.
type Handler struct {
	sys        System
	runner     *pipeline.Runner
	logger     *slog.Logger
	pagination pagination.Config
}

// TranscriptRequest is the body of the extract and process endpoints.
// Guesses is either a JSON object of field values or a string holding raw
// model output, possibly wrapped in a markdown fence.
type TranscriptRequest struct {
	ID         string             `json:"id,omitempty"`
	Transcript invoice.Transcript `json:"transcript"`
	Guesses    json.RawMessage    `json:"guesses,omitempty"`
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler over the invoice system and pipeline runner.
func NewHandler(
	sys System,
	runner *pipeline.Runner,
	logger *slog.Logger,
	pagination pagination.Config,
) *Handler {
	return &Handler{
		sys:        sys,
		runner:     runner,
		logger:     logger.With("handler", "invoices"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for invoice endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/invoices",
		Tags:    []string{"Invoices"},
		Schemas: schemas,
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: docs.list},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: docs.find},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: docs.delete},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: docs.search},
			{Method: "POST", Pattern: "/extract", Handler: h.Extract, OpenAPI: docs.extract},
			{Method: "POST", Pattern: "/reconcile", Handler: h.Reconcile, OpenAPI: docs.reconcile},
			{Method: "POST", Pattern: "/process", Handler: h.Process, OpenAPI: docs.process},
		},
	}
}

// Extract returns the document recovered from a transcript.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	req, guesses, ok := h.decodeTranscript(w, r)
	if !ok {
		return
	}

	doc, err := h.runner.Extract(req.Transcript, guesses)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Reconcile reconciles a previously extracted document.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	doc, err := handlers.DecodeJSON[invoice.Document](r.Body)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, h.runner.Reconcile(&doc))
}

// Process extracts and reconciles a transcript. With persist=true the
// result is stored and the created record returned.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	persist, _ := strconv.ParseBool(r.URL.Query().Get("persist"))

	req, guesses, ok := h.decodeTranscript(w, r)
	if !ok {
		return
	}

	result, err := h.runner.Process(r.Context(), pipeline.Request{
		ID:         req.ID,
		Transcript: req.Transcript,
		Guesses:    guesses,
	})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	if !persist {
		handlers.RespondJSON(w, http.StatusOK, result)
		return
	}

	rec, err := h.sys.Save(r.Context(), result)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, rec)
}

// List returns a paginated list of stored invoices filtered by query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts pagination and filter criteria as a JSON body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		err = fmt.Errorf("%w: %w", handlers.ErrInvalidBody, err)
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns one stored invoice by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	rec, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, rec)
}

// Delete removes a stored invoice by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeTranscript(w http.ResponseWriter, r *http.Request) (TranscriptRequest, invoice.FieldGuesses, bool) {
	req, err := handlers.DecodeJSON[TranscriptRequest](r.Body)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return req, nil, false
	}

	guesses, err := ParseGuesses(req.Guesses)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return req, nil, false
	}
	return req, guesses, true
}

// ParseGuesses decodes upstream field guesses from a JSON object or from a
// JSON string of raw model output. Numbers keep their literal text and
// nulls are dropped.
func ParseGuesses(raw json.RawMessage) (invoice.FieldGuesses, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	object := []byte(raw)
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %w", handlers.ErrInvalidBody, err)
		}
		parsed, err := formatting.Parse[json.RawMessage](text)
		if err != nil {
			return nil, err
		}
		object = parsed
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(object, &values); err != nil {
		return nil, fmt.Errorf("%w: guesses must be an object", formatting.ErrParseFailed)
	}

	guesses := make(invoice.FieldGuesses, len(values))
	for k, v := range values {
		v = bytes.TrimSpace(v)
		switch {
		case len(v) == 0, bytes.Equal(v, []byte("null")):
			continue
		case v[0] == '"':
			var s string
			if err := json.Unmarshal(v, &s); err == nil && s != "" {
				guesses[invoice.Field(k)] = s
			}
		case v[0] == '-' || (v[0] >= '0' && v[0] <= '9'):
			guesses[invoice.Field(k)] = string(v)
		}
	}
	return guesses, nil
}
