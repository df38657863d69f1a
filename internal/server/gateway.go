package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Gateway owns the registry and hub of the single room and exposes the HTTP
// handlers that feed them. It does not authenticate clients: the display
// name asserted at join is taken as is.
type Gateway struct {
	cfg      Config
	registry *Registry
	hub      *Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewGateway creates a gateway with its own registry and hub. Call Run to
// start the hub loop.
func NewGateway(cfg Config, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.Sanitize()
	registry := NewRegistry()
	policy := newOriginPolicy(cfg.AllowedOrigins, log)

	return &Gateway{
		cfg:      cfg,
		registry: registry,
		hub:      NewHub(registry, log.Named("hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		log: log,
	}
}

// Config returns the sanitized configuration in use.
func (g *Gateway) Config() Config {
	return g.cfg
}

// Registry returns the connection registry of the room.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// Run starts the hub loop and blocks until Shutdown.
func (g *Gateway) Run() {
	g.log.Info("Hub started and ready to manage WebSocket connections")
	g.hub.Run()
}

// Shutdown closes every connection and waits for client goroutines.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	return g.hub.Shutdown(timeout)
}

// accept registers an upgraded connection and starts its pumps.
func (g *Gateway) accept(conn *websocket.Conn, addr string) {
	entry := NewConnection(addr, g.cfg.SendBufferSize)
	handle := g.registry.Register(entry)
	session := NewSession(handle, g.registry, g.hub, g.log)
	client := NewClient(conn, entry, session, g.registry, g.cfg, g.log)

	g.log.Info("Client registered",
		zap.Stringer("handle", handle),
		zap.String("addr", addr),
		zap.Int("clients", g.registry.Len()))

	g.hub.Track(client.writePump)
	g.hub.Track(client.readPump)
}

// Handler returns the routes of the gateway mounted on a new ServeMux.
func (g *Gateway) Handler() http.Handler {
	return SetupRoutes(g)
}
