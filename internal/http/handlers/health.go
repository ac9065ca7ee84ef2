package handlers

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness and, when a database backs the store, its reachability.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{"status": "ok", "store": "memory"}
	if a.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Store.Ping(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("health check: store unreachable")
			a.json(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unreachable"})
			return
		}
		resp["store"] = "ok"
	}
	a.json(w, http.StatusOK, resp)
}
