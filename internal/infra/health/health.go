// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const probeTimeout = 2 * time.Second

// Probe is a dependency checked by the readiness endpoint.
type Probe interface {
	Name() string
	Check(ctx context.Context) error
}

// RunState is the process-wide ready flag. Set once all loops are started, cleared
// when shutdown begins.
type RunState struct {
	ready atomic.Bool
}

func (s *RunState) SetReady(v bool) { s.ready.Store(v) }

func (s *RunState) Ready() bool { return s.ready.Load() }

type response struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// NewRouter mounts /internal/isAlive and /internal/isReady.
func NewRouter(state *RunState, probes ...Probe) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/internal/isAlive", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, response{Status: "alive"})
	})

	r.Get("/internal/isReady", func(w http.ResponseWriter, req *http.Request) {
		if !state.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, response{Status: "not ready"})
			return
		}
		ctx, cancel := context.WithTimeout(req.Context(), probeTimeout)
		defer cancel()

		components := make(map[string]string, len(probes))
		status, code := "ready", http.StatusOK
		for _, p := range probes {
			if err := p.Check(ctx); err != nil {
				components[p.Name()] = err.Error()
				status, code = "degraded", http.StatusServiceUnavailable
				continue
			}
			components[p.Name()] = "ok"
		}
		writeJSON(w, code, response{Status: status, Components: components})
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
