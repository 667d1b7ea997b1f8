package httpx

import (
	"net/http"

	"canvas-collab/internal/app"
	"canvas-collab/internal/store"
	"canvas-collab/internal/ws"
	"canvas-collab/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, gw *ws.Gateway, db *store.Postgres) http.Handler {
	mw := NewMiddleware(cfg)
	api := &SnapshotsAPI{DB: db}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// Collaboration endpoint
	mux.Handle("/ws", http.HandlerFunc(gw.ServeWS))

	// Snapshot read surface (JWT-protected)
	if db != nil {
		mux.Handle("/api/projects", mw.Auth(http.HandlerFunc(api.List)))
		mux.Handle("/api/projects/{id}/snapshot", mw.Auth(http.HandlerFunc(api.Get)))
	}

	return mw.Wrap(mux)
}
