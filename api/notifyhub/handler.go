package notifyhub

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/moyoez/fleet-notify/api/middlewares"
	"github.com/moyoez/fleet-notify/present"
	"github.com/moyoez/fleet-notify/tool"
	"github.com/moyoez/fleet-notify/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// any page in the browser is a loopback peer, so the origin decides
		origin := r.Header.Get("Origin")
		return origin == "" || middlewares.IsLocalOrigin(origin)
	},
}

// StateSource provides the current state sent to a client right after it connects.
type StateSource interface {
	Snapshot() types.Snapshot
	Status() types.ConnectionStatus
}

// HandleNotifyWS upgrades the request to WebSocket, sends the current state and
// registers the connection with the hub.
func HandleNotifyWS(hub *Hub, source StateSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				tool.DefaultLogger.Debugf("[NotifyHub] Failed to close WebSocket connection: %v", err)
			}
		}()

		hub.Register(conn)
		defer hub.Unregister(conn)

		if source != nil {
			if err := hub.Send(conn, FrameConnection, source.Status()); err != nil {
				return
			}
			if err := hub.Send(conn, FrameSnapshot, present.NewSnapshotView(source.Snapshot(), time.Now())); err != nil {
				return
			}
		}

		// Read loop to detect client close and keep connection alive
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
