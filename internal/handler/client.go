package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"camserver/internal/logger"
	"camserver/internal/service"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all
// origins, matching the CORS policy of the rest of the API.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler registers a viewer in the hub, which then pushes frame
// and motion messages to it. The handler only reads to notice disconnects.
func ViewWebsocketHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hub := manager.GetWebsocketService()
		if hub == nil {
			writeText(w, http.StatusServiceUnavailable, "Live view unavailable")
			return
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		ctx := r.Context()
		if !hub.Register(ctx, connection) {
			connection.Close()
			return
		}
		defer hub.Unregister(ctx, connection)

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Debug("Viewer closed the connection")
				} else {
					logger.Debug("Viewer read error: %v", err)
				}
				return
			}
		}
	}
}
