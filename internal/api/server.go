package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/chrome-keepalive/internal/proxy"
	"github.com/shehryarbajwa/chrome-keepalive/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(recordHandler *RecordHandler, proxyServer *proxy.Server, rateLimiter *ratelimit.Limiter, requestsPerHour int) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()

	// saves hit the store, so they share a rate limit
	rateLimitedAPI := api.PathPrefix("").Subrouter()
	rateLimitedAPI.Use(RateLimitMiddleware(rateLimiter, requestsPerHour))
	rateLimitedAPI.HandleFunc("/session/save", h.SaveSession).Methods("POST")
	rateLimitedAPI.HandleFunc("/records/cookies", recordHandler.ListCookies).Methods("GET")
	rateLimitedAPI.HandleFunc("/records/storage", recordHandler.ListStorage).Methods("GET")

	api.HandleFunc("/session", h.GetSession).Methods("GET")
	api.HandleFunc("/session/debug", h.GetDebugURL).Methods("GET")
	api.HandleFunc("/session/ws", proxyServer.HandleDebugConnection).Methods("GET")

	r.Use(corsMiddleware)

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
