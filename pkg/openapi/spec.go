// Package openapi builds an OpenAPI 3.1 document from route metadata and
// serves it as JSON.
package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const version = "3.1.0"

// Spec is the root OpenAPI document.
type Spec struct {
	OpenAPI    string               `json:"openapi"`
	Info       *Info                `json:"info"`
	Servers    []*Server            `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
}

// New starts a document titled and described by cfg, carrying the shared
// error components. Each server is a base URL the paths are relative to.
func New(cfg *Config, apiVersion string, servers ...string) *Spec {
	s := &Spec{
		OpenAPI:    version,
		Info:       &Info{Title: cfg.Title, Description: cfg.Description, Version: apiVersion},
		Paths:      make(map[string]*PathItem),
		Components: NewComponents(),
	}
	for _, url := range servers {
		s.Servers = append(s.Servers, &Server{URL: url})
	}
	return s
}

// AddOperation attaches op to path under method. An empty path is the
// root. Methods without a PathItem slot are ignored.
func (s *Spec) AddOperation(path, method string, op *Operation) {
	if path == "" {
		path = "/"
	}
	item := s.Paths[path]
	if item == nil {
		item = &PathItem{}
	}

	var slot **Operation
	switch strings.ToUpper(method) {
	case http.MethodGet:
		slot = &item.Get
	case http.MethodPost:
		slot = &item.Post
	case http.MethodPut:
		slot = &item.Put
	case http.MethodDelete:
		slot = &item.Delete
	default:
		return
	}
	*slot = op
	s.Paths[path] = item
}

// Handler serializes the document once and serves the bytes. Later
// changes to s are not reflected.
func (s *Spec) Handler() (http.HandlerFunc, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
	}, nil
}
