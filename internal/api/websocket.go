package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/plazahq/plaza-server/internal/rooms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin more strictly
		return true
	},
}

// WebSocketHandler upgrades the connection and hands it to a connection
// handler. Auth happens in-band over the socket, so unauthenticated
// spectators upgrade the same way participants do.
func (r *Router) WebSocketHandler(w http.ResponseWriter, req *http.Request) {
	_, span := otel.Tracer("websocket-server").Start(req.Context(), "WebSocketConnection")
	defer span.End()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to upgrade WebSocket connection")
		return
	}
	span.SetStatus(codes.Ok, "WebSocket connection established")

	client := rooms.NewClient(conn, r.clientDeps)
	client.Start()
}
