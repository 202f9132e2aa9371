package main

import (
	"encoding/json"
	"net/http"

	"github.com/JaimeStill/tally/internal/infrastructure"
	"github.com/JaimeStill/tally/pkg/module"
)

// buildRouter returns a router carrying the liveness and readiness probes.
// Modules are mounted on it afterwards.
func buildRouter(infra *infrastructure.Infrastructure, version string) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]any{"status": "ok", "version": version})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready, failures := infra.Lifecycle.Ready(); !ready {
			writeStatus(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "not ready",
				"failures": failures,
			})
			return
		}
		writeStatus(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	return router
}

func writeStatus(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
