// Package handlers contains the gateway's HTTP endpoints.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/codeshark2/freesoft/pkg/gateway/live/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 16,
	// Vendor keys arrive in the start_session payload, not cookies, so
	// cross-origin browser clients are safe to accept.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Live upgrades the connection and runs one voice session on it.
func Live(cfg session.Config, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
			return
		}
		logger.Debug("connection accepted", "remote", r.RemoteAddr)
		session.New(ws, cfg, logger).Run()
	}
}
