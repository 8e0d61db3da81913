package api

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readyResponse struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

func live(start time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", UptimeSeconds: time.Since(start).Seconds()})
	}
}

func ready(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, readyResponse{Ready: false, Error: err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, readyResponse{Ready: true})
	}
}
