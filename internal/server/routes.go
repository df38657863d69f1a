package server

import "net/http"

// Route paths served by the gateway.
const (
	PathWebSocket = "/ws"
	PathHealth    = "/healthz"
	PathTestPage  = "/test"
)

// SetupRoutes configures and returns an HTTP ServeMux with the gateway routes:
// the WebSocket endpoint, health check, and test page.
func SetupRoutes(g *Gateway) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc(PathHealth, g.HealthHandler)
	mux.HandleFunc(PathWebSocket, g.WebSocketHandler)
	mux.HandleFunc(PathTestPage, g.TestPageHandler)
	return mux
}
