// Package server wires HTTP handlers into a ServeMux for the relay via
// routing helpers.
package server

import "net/http"

// Routes lists the optional endpoints mounted next to the chat endpoints.
type Routes struct {
	// MetricsPath and MetricsHandler mount a metrics endpoint when both are set.
	MetricsPath    string
	MetricsHandler http.Handler
}

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, chat page and optionally metrics.
func SetupRoutes(hub *Hub, routes Routes) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/chat", ChatPageHandler)
	if routes.MetricsPath != "" && routes.MetricsHandler != nil {
		mux.Handle(routes.MetricsPath, routes.MetricsHandler)
	}
	return mux
}
