package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// SetupRoutes configures the application routes: health check, WebSocket
// endpoint, test console and Prometheus metrics. Responses carry CORS headers
// for the configured origins.
func SetupRoutes(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/test", TestPageHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return cors.New(cors.Options{
		AllowOriginFunc: isOriginAllowed,
		AllowedMethods:  []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:  []string{"Accept", "Content-Type"},
		MaxAge:          300,
	}).Handler(mux)
}
