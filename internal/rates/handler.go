package rates

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JaimeStill/tally/hsn"
	"github.com/JaimeStill/tally/pkg/handlers"
	"github.com/JaimeStill/tally/pkg/pagination"
	"github.com/JaimeStill/tally/pkg/routes"
)

// Handler provides HTTP endpoints for the rate table.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "rates"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for rate endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/rates",
		Tags:    []string{"Rates"},
		Schemas: schemas,
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: docs.list},
			{Method: "GET", Pattern: "/{code}", Handler: h.Lookup, OpenAPI: docs.lookup},
			{Method: "POST", Pattern: "", Handler: h.Upsert, OpenAPI: docs.upsert},
			{Method: "POST", Pattern: "/refresh", Handler: h.Refresh, OpenAPI: docs.refresh},
			{Method: "PUT", Pattern: "/source", Handler: h.Publish, OpenAPI: docs.publish},
		},
	}
}

// List returns a page of table entries. The search parameter filters by
// code prefix.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)

	entries := h.sys.Table().Entries()
	if page.Search != nil {
		filtered := entries[:0]
		for _, e := range entries {
			if strings.HasPrefix(e.Code, *page.Search) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	handlers.RespondJSON(w, http.StatusOK, pagination.Slice(entries, page))
}

// Lookup resolves the code path parameter with prefix fallback.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	rate, err := h.sys.Lookup(r.PathValue("code"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, rate)
}

// Upsert stores a JSON array of entries in the database source.
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	entries, err := handlers.DecodeJSON[[]hsn.Entry](r.Body)
	if err != nil {
		handlers.RespondError(w, h.logger, handlers.Status(err, http.StatusBadRequest), err)
		return
	}

	summary, err := h.sys.Upsert(r.Context(), entries)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, summary)
}

// Refresh reloads every source. A refresh in which no source loaded
// answers 503 with the summary of what failed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sys.Refresh(r.Context())
	if err != nil {
		h.logger.Warn("refresh kept previous table", "error", err)
		handlers.RespondJSON(w, http.StatusServiceUnavailable, summary)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, summary)
}

// Publish replaces the blob CSV with the request body.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		handlers.RespondError(w, h.logger, handlers.Status(err, http.StatusBadRequest), err)
		return
	}

	summary, err := h.sys.Publish(r.Context(), data)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, summary)
}
