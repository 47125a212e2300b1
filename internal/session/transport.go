package session

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// upgrader is the gorilla/websocket handshake upgrader, configured the
// same way Insightify's interactionWSUpgrader is: origin checking is
// left to the reverse proxy/CLI's own bind-address choice, not this
// layer, since hotproxy is a local development tool.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(_ *http.Request) bool { return true },
}

// Upgrade completes the websocket handshake and returns the raw
// connection as a Conn, ready to be wrapped in a Session once Negotiate
// has approved the request.
func Upgrade(w http.ResponseWriter, r *http.Request) (Conn, error) {
	return upgrader.Upgrade(w, r, nil)
}
